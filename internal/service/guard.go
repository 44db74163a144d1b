package service

import (
	"context"
	"errors"
	"fmt"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
)

// PendingGuard enforces at most one pending change request per subject, across both kinds.
type PendingGuard struct {
	requests repository.ChangeRequestRepository
}

func NewPendingGuard(requests repository.ChangeRequestRepository) *PendingGuard {
	return &PendingGuard{requests: requests}
}

func (g *PendingGuard) HasPending(ctx context.Context, subjectID uuid.UUID) (bool, error) {
	pending, err := g.requests.HasPending(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending requests: %w", err)
	}
	return pending, nil
}

// Recheck runs inside the submission transaction right before the insert. It takes the
// per-subject lock first so concurrent submissions for one subject are serialized.
func (g *PendingGuard) Recheck(txCtx context.Context, subjectID uuid.UUID) error {
	if err := g.requests.LockSubject(txCtx, subjectID); err != nil {
		return fmt.Errorf("failed to lock subject: %w", err)
	}
	pending, err := g.HasPending(txCtx, subjectID)
	if err != nil {
		return err
	}
	if pending {
		return ErrConflict
	}
	return nil
}

// Insert stores req as pending. A violation of the one-pending-per-subject index, which
// catches writers that slipped past Recheck, is reported as ErrConflict.
func (g *PendingGuard) Insert(txCtx context.Context, req *model.ChangeRequest) error {
	err := g.requests.Create(txCtx, req)
	if errors.Is(err, repository.ErrPendingExists) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create change request: %w", err)
	}
	return nil
}
