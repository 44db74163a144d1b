package repository

import (
	"context"
	"fmt"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmployeeRepository is the workflow's view of the HR-owned employee store.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Employee, error)
	UpdateFields(ctx context.Context, id uuid.UUID, values map[string]interface{}) error
	ActivateDocument(ctx context.Context, doc *model.EmployeeDocument) error
	ListActiveDocuments(ctx context.Context, employeeID uuid.UUID) ([]model.EmployeeDocument, error)
}

type employeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	var emp model.Employee
	if err := GetDB(ctx, r.db).First(&emp, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &emp, nil
}

func (r *employeeRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Employee, error) {
	var emp model.Employee
	if err := GetDB(ctx, r.db).First(&emp, "user_id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &emp, nil
}

// UpdateFields writes all values in a single UPDATE statement so the change lands as a whole or not at all.
func (r *employeeRepository) UpdateFields(ctx context.Context, id uuid.UUID, values map[string]interface{}) error {
	if len(values) == 0 {
		return fmt.Errorf("update employee %s: no fields", id)
	}
	res := GetDB(ctx, r.db).Model(&model.Employee{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ActivateDocument deactivates the employee's current document of the same type and stores doc as active.
// Callers run it inside a transaction.
func (r *employeeRepository) ActivateDocument(ctx context.Context, doc *model.EmployeeDocument) error {
	db := GetDB(ctx, r.db)
	err := db.Model(&model.EmployeeDocument{}).
		Where("employee_id = ? AND document_type = ? AND is_active = ?", doc.EmployeeID, doc.DocumentType, true).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("deactivate previous %s document: %w", doc.DocumentType, err)
	}
	doc.IsActive = true
	return db.Create(doc).Error
}

func (r *employeeRepository) ListActiveDocuments(ctx context.Context, employeeID uuid.UUID) ([]model.EmployeeDocument, error) {
	var docs []model.EmployeeDocument
	err := GetDB(ctx, r.db).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Order("document_type ASC, created_at DESC").
		Find(&docs).Error
	return docs, err
}
