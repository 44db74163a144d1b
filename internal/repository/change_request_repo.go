package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeRequestFilter narrows List. Zero values mean "any".
type ChangeRequestFilter struct {
	Status    string
	Kind      string
	SubjectID *uuid.UUID
	Offset    int
	Limit     int
}

type ChangeRequestRepository interface {
	LockSubject(ctx context.Context, subjectID uuid.UUID) error
	HasPending(ctx context.Context, subjectID uuid.UUID) (bool, error)
	Create(ctx context.Context, req *model.ChangeRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error)
	List(ctx context.Context, filter ChangeRequestFilter) ([]model.ChangeRequest, int64, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, status string, decidedBy uuid.UUID, decidedAt time.Time, note string) error
}

type changeRequestRepository struct {
	db *gorm.DB
}

func NewChangeRequestRepository(db *gorm.DB) ChangeRequestRepository {
	return &changeRequestRepository{db: db}
}

// LockSubject serializes submissions for one subject until the surrounding transaction ends.
func (r *changeRequestRepository) LockSubject(ctx context.Context, subjectID uuid.UUID) error {
	if !inTx(ctx) {
		return fmt.Errorf("lock subject %s: no transaction in context", subjectID)
	}
	return GetDB(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "change_request:"+subjectID.String()).Error
}

func (r *changeRequestRepository) HasPending(ctx context.Context, subjectID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ChangeRequest{}).
		Where("subject_id = ? AND status = ?", subjectID, model.ChangeStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new request. A violation of the one-pending-per-subject index yields ErrPendingExists.
func (r *changeRequestRepository) Create(ctx context.Context, req *model.ChangeRequest) error {
	err := GetDB(ctx, r.db).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPendingExists
	}
	return err
}

func (r *changeRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	var req model.ChangeRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &req, nil
}

func (r *changeRequestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	var req model.ChangeRequest
	if err := GetDB(ctx, r.db).Preload("Subject").Preload("Decider").First(&req, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &req, nil
}

func (r *changeRequestRepository) List(ctx context.Context, filter ChangeRequestFilter) ([]model.ChangeRequest, int64, error) {
	var requests []model.ChangeRequest
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.SubjectID != nil {
			q = q.Where("subject_id = ?", *filter.SubjectID)
		}
		return q
	}

	if err := db.Model(&model.ChangeRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Scopes(scope).
		Preload("Subject").
		Preload("Decider").
		Order("submitted_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// TransitionFromPending stamps the decision only if the row is still pending.
// Zero affected rows means another decision won the race and yields ErrNotPending.
func (r *changeRequestRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, status string, decidedBy uuid.UUID, decidedAt time.Time, note string) error {
	res := GetDB(ctx, r.db).Model(&model.ChangeRequest{}).
		Where("id = ? AND status = ?", id, model.ChangeStatusPending).
		Updates(map[string]interface{}{
			"status":        status,
			"decided_by":    decidedBy,
			"decided_at":    decidedAt,
			"decision_note": note,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
