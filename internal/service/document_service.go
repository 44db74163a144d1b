package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxDocumentSize is the upload ceiling for document intake.
const MaxDocumentSize = 10 << 20

const maxNotesLength = 500

// AllowedDocumentMimeTypes is the intake allow-list: PDF, DOC, DOCX, JPEG, PNG.
var AllowedDocumentMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/jpeg",
	"image/png",
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type SubmitDocumentRequest struct {
	DocumentType string
	FileName     string
	Notes        string
	Content      []byte
}

type EmployeeDocumentResponse struct {
	ID           string `json:"id"`
	DocumentType string `json:"document_type"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
	Notes        string `json:"notes,omitempty"`
	URL          string `json:"url"`
	CreatedAt    string `json:"created_at"`
}

type DocumentService interface {
	SubmitDocument(ctx context.Context, userID string, req SubmitDocumentRequest) (ChangeRequestResponse, error)
	ListMyDocuments(ctx context.Context, userID string) ([]EmployeeDocumentResponse, error)
}

type documentService struct {
	employees repository.EmployeeRepository
	requests  repository.ChangeRequestRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	guard     *PendingGuard
	store     ObjectStore
	urlTTL    time.Duration
	notifier  Notifier
	clock     Clock
	log       logrus.FieldLogger
}

func NewDocumentService(
	employees repository.EmployeeRepository,
	requests repository.ChangeRequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	store ObjectStore,
	urlTTL time.Duration,
	notifier Notifier,
	clock Clock,
	log logrus.FieldLogger,
) DocumentService {
	return &documentService{
		employees: employees,
		requests:  requests,
		auditRepo: auditRepo,
		txManager: txManager,
		guard:     NewPendingGuard(requests),
		store:     store,
		urlTTL:    urlTTL,
		notifier:  notifier,
		clock:     clock,
		log:       log,
	}
}

// DetectDocumentMime sniffs content and returns its MIME type if it is on the allow-list.
func DetectDocumentMime(content []byte) (string, error) {
	detected := mimetype.Detect(content)
	for _, allowed := range AllowedDocumentMimeTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", invalid("file", "type %s is not accepted; upload a PDF, DOC, DOCX, JPEG or PNG", detected.String())
}

func (s *documentService) SubmitDocument(ctx context.Context, userID string, req SubmitDocumentRequest) (ChangeRequestResponse, error) {
	resp, err := s.submitDocument(ctx, userID, req)
	if err != nil {
		metrics.ChangeRequestFailures.WithLabelValues("submit_document", Kind(err)).Inc()
		return ChangeRequestResponse{}, err
	}
	return resp, nil
}

func (s *documentService) submitDocument(ctx context.Context, userID string, req SubmitDocumentRequest) (ChangeRequestResponse, error) {
	mimeType, err := validateDocument(req)
	if err != nil {
		return ChangeRequestResponse{}, err
	}

	emp, err := resolveSubject(ctx, s.employees, userID)
	if err != nil {
		return ChangeRequestResponse{}, err
	}

	// Refuse early so no object is stored for a request that can never be recorded.
	pending, err := s.guard.HasPending(ctx, emp.ID)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	if pending {
		return ChangeRequestResponse{}, ErrConflict
	}

	now := s.clock.Now()
	fileName := sanitizeFileName(req.FileName)
	objectPath := fmt.Sprintf("employees/%s/%s/%d-%s-%s",
		emp.ID, req.DocumentType, now.UnixNano(), uuid.NewString()[:8], fileName)

	storedPath, err := s.store.Put(ctx, objectPath, bytes.NewReader(req.Content))
	if err != nil {
		return ChangeRequestResponse{}, fmt.Errorf("%w: upload %s: %v", ErrStorage, objectPath, err)
	}

	created := model.ChangeRequest{
		SubjectID: emp.ID,
		Kind:      model.ChangeKindDocument,
		Status:    model.ChangeStatusPending,
		Document: model.DocumentPayload{
			Type:     req.DocumentType,
			FileName: fileName,
			FilePath: storedPath,
			FileSize: int64(len(req.Content)),
			MimeType: mimeType,
			Notes:    strings.TrimSpace(req.Notes),
		},
		SubmittedAt: now,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.guard.Recheck(txCtx, emp.ID); err != nil {
			return err
		}
		if err := s.guard.Insert(txCtx, &created); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, emp.UserID, model.ActionCreateChangeRequest,
			created.ID.String(), model.ChangeKindDocument, map[string]interface{}{
				"subject_id":    emp.ID.String(),
				"document_type": req.DocumentType,
				"file_path":     storedPath,
				"file_size":     created.Document.FileSize,
			})
	})
	if err != nil {
		return ChangeRequestResponse{}, s.compensate(ctx, storedPath, err)
	}

	metrics.ChangeRequestsSubmitted.WithLabelValues(model.ChangeKindDocument).Inc()
	s.log.WithFields(logrus.Fields{
		"request_id":    created.ID,
		"subject_id":    emp.ID,
		"kind":          created.Kind,
		"document_type": req.DocumentType,
		"file_size":     created.Document.FileSize,
	}).Info("change request submitted")
	s.notifier.Publish(TopicChangeRequestSubmitted, ChangeRequestEvent{
		RequestID: created.ID.String(),
		SubjectID: emp.ID.String(),
		Kind:      created.Kind,
		Status:    created.Status,
	})

	created.Subject = emp
	return toChangeRequestResponse(created), nil
}

// compensate removes an object whose request row could not be written.
func (s *documentService) compensate(ctx context.Context, path string, cause error) error {
	rmErr := s.store.Remove(context.WithoutCancel(ctx), path)
	if rmErr == nil {
		return cause
	}
	s.log.WithError(rmErr).WithField("file_path", path).Error("failed to remove orphaned document")
	return errors.Join(fmt.Errorf("%w: remove orphaned object %s: %v", ErrStorage, path, rmErr), cause)
}

func validateDocument(req SubmitDocumentRequest) (string, error) {
	if !model.IsDocumentType(req.DocumentType) {
		return "", invalid("document_type", "must be one of %s", strings.Join(model.DocumentTypes, ", "))
	}
	if len(req.Content) == 0 {
		return "", invalid("file", "is empty")
	}
	if len(req.Content) > MaxDocumentSize {
		return "", invalid("file", "is %d bytes; the limit is %d bytes", len(req.Content), MaxDocumentSize)
	}
	if utf8.RuneCountInString(req.Notes) > maxNotesLength {
		return "", invalid("notes", "must be at most %d characters", maxNotesLength)
	}
	return DetectDocumentMime(req.Content)
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFileChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "document"
	}
	if len(base) > 100 {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:100-len(ext)] + ext
	}
	return base
}

func (s *documentService) ListMyDocuments(ctx context.Context, userID string) ([]EmployeeDocumentResponse, error) {
	emp, err := resolveSubject(ctx, s.employees, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.employees.ListActiveDocuments(ctx, emp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]EmployeeDocumentResponse, 0, len(docs))
	for _, d := range docs {
		url, err := s.store.SignedURL(d.FilePath, s.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: sign %s: %v", ErrStorage, d.FilePath, err)
		}
		result = append(result, EmployeeDocumentResponse{
			ID:           d.ID.String(),
			DocumentType: d.DocumentType,
			FileName:     d.FileName,
			FileSize:     d.FileSize,
			MimeType:     d.MimeType,
			Notes:        d.Notes,
			URL:          url,
			CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, nil
}
