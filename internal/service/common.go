package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
)

// Clock abstracts time so age checks and stamps are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Notifier delivers best-effort outbound notifications.
type Notifier interface {
	Publish(topic string, payload interface{})
}

// ObjectStore is the slice of object storage the workflow uses.
type ObjectStore interface {
	Put(ctx context.Context, path string, r io.Reader) (string, error)
	Remove(ctx context.Context, path string) error
	SignedURL(path string, ttl time.Duration) (string, error)
}

// Notification topics
const (
	TopicChangeRequestSubmitted = "change_request.submitted"
	TopicChangeRequestDecided   = "change_request.decided"
)

// ChangeRequestEvent is the payload published on both topics.
type ChangeRequestEvent struct {
	RequestID string `json:"request_id"`
	SubjectID string `json:"subject_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
}

// --- DTOs ---

type DocumentResponse struct {
	DocumentType string `json:"document_type"`
	FileName     string `json:"file_name"`
	FilePath     string `json:"file_path"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
	Notes        string `json:"notes,omitempty"`
}

type ChangeRequestResponse struct {
	ID           string             `json:"id"`
	SubjectID    string             `json:"subject_id"`
	SubjectName  string             `json:"subject_name,omitempty"`
	Department   string             `json:"department,omitempty"`
	Kind         string             `json:"kind"`
	Status       string             `json:"status"`
	Changes      model.FieldChanges `json:"changes,omitempty"`
	Document     *DocumentResponse  `json:"document,omitempty"`
	SubmittedAt  string             `json:"submitted_at"`
	DecidedAt    *string            `json:"decided_at"`
	DecidedBy    *string            `json:"decided_by"`
	DeciderName  string             `json:"decider_name,omitempty"`
	DecisionNote string             `json:"decision_note"`
}

func toChangeRequestResponse(c model.ChangeRequest) ChangeRequestResponse {
	resp := ChangeRequestResponse{
		ID:           c.ID.String(),
		SubjectID:    c.SubjectID.String(),
		Kind:         c.Kind,
		Status:       c.Status,
		SubmittedAt:  c.SubmittedAt.Format(time.RFC3339),
		DecisionNote: c.DecisionNote,
	}

	switch c.Kind {
	case model.ChangeKindPersonalInfo:
		resp.Changes = c.Changes
	case model.ChangeKindDocument:
		resp.Document = &DocumentResponse{
			DocumentType: c.Document.Type,
			FileName:     c.Document.FileName,
			FilePath:     c.Document.FilePath,
			FileSize:     c.Document.FileSize,
			MimeType:     c.Document.MimeType,
			Notes:        c.Document.Notes,
		}
	}

	if c.Subject != nil {
		resp.SubjectName = c.Subject.FullName
		resp.Department = c.Subject.Department
	}
	if c.DecidedAt != nil {
		s := c.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &s
	}
	if c.DecidedBy != nil {
		s := c.DecidedBy.String()
		resp.DecidedBy = &s
	}
	if c.Decider != nil {
		resp.DeciderName = c.Decider.Username
	}

	return resp
}

// --- Helpers ---

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid(field, "must be a UUID")
	}
	return id, nil
}

// resolveSubject maps the authenticated user to the employee record the request concerns.
func resolveSubject(ctx context.Context, employees repository.EmployeeRepository, userID string) (*model.Employee, error) {
	uid, err := parseID("user_id", userID)
	if err != nil {
		return nil, err
	}
	emp, err := employees.GetByUserID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: no employee record linked to user %s", ErrNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee record: %w", err)
	}
	return emp, nil
}

func writeAudit(ctx context.Context, audit repository.AuditRepository, actor *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := &model.AuditLog{
		UserID:     actor,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := audit.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}
