package service

import (
	"context"
	"fmt"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
)

// Executor applies an approved change to the canonical employee record.
// It must run inside the decision transaction so a failure leaves nothing behind.
type Executor interface {
	Apply(ctx context.Context, req *model.ChangeRequest, approverID uuid.UUID) error
}

type executor struct {
	employees repository.EmployeeRepository
	auditRepo repository.AuditRepository
}

func NewExecutor(employees repository.EmployeeRepository, auditRepo repository.AuditRepository) Executor {
	return &executor{employees: employees, auditRepo: auditRepo}
}

func (e *executor) Apply(ctx context.Context, req *model.ChangeRequest, approverID uuid.UUID) error {
	switch req.Kind {
	case model.ChangeKindPersonalInfo:
		return e.applyPersonalInfo(ctx, req, approverID)
	case model.ChangeKindDocument:
		return e.activateDocument(ctx, req, approverID)
	default:
		return fmt.Errorf("unknown change request kind: %s", req.Kind)
	}
}

func (e *executor) applyPersonalInfo(ctx context.Context, req *model.ChangeRequest, approverID uuid.UUID) error {
	if len(req.Changes) == 0 {
		return fmt.Errorf("change request %s has no changes", req.ID)
	}
	values, err := columnValues(req.Changes)
	if err != nil {
		return err
	}
	if err := e.employees.UpdateFields(ctx, req.SubjectID, values); err != nil {
		return fmt.Errorf("failed to update employee %s: %w", req.SubjectID, err)
	}
	return writeAudit(ctx, e.auditRepo, &approverID, model.ActionApplyPersonalInfo,
		req.SubjectID.String(), req.ID.String(), map[string]interface{}{
			"change_request_id": req.ID.String(),
			"changes":           req.Changes,
		})
}

func (e *executor) activateDocument(ctx context.Context, req *model.ChangeRequest, approverID uuid.UUID) error {
	doc := &model.EmployeeDocument{
		EmployeeID:      req.SubjectID,
		ChangeRequestID: req.ID,
		DocumentType:    req.Document.Type,
		FileName:        req.Document.FileName,
		FilePath:        req.Document.FilePath,
		FileSize:        req.Document.FileSize,
		MimeType:        req.Document.MimeType,
		Notes:           req.Document.Notes,
	}
	if err := e.employees.ActivateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to activate document: %w", err)
	}
	return writeAudit(ctx, e.auditRepo, &approverID, model.ActionActivateDocument,
		req.SubjectID.String(), req.Document.FileName, map[string]interface{}{
			"change_request_id": req.ID.String(),
			"document_id":       doc.ID.String(),
			"document_type":     doc.DocumentType,
		})
}
