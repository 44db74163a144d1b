package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/sirupsen/logrus"
)

// Decision outcomes
const (
	OutcomeApprove = "approve"
	OutcomeReject  = "reject"
)

const maxDecisionNoteLength = 1000

type DecideRequest struct {
	Note string `json:"note"`
}

type ChangeRequestFilter struct {
	Status string // pending, approved, rejected or empty for all
	Kind   string
	Page   int
	Limit  int
}

type DocumentURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

type ReviewService interface {
	ListPending(ctx context.Context, page, limit int) ([]ChangeRequestResponse, int64, error)
	ListRequests(ctx context.Context, filter ChangeRequestFilter) ([]ChangeRequestResponse, int64, error)
	GetRequest(ctx context.Context, id string) (ChangeRequestResponse, error)
	DocumentURL(ctx context.Context, id string) (DocumentURLResponse, error)
	Decide(ctx context.Context, id, reviewerID, outcome, note string) (ChangeRequestResponse, error)
}

type reviewService struct {
	employees repository.EmployeeRepository
	requests  repository.ChangeRequestRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	executor  Executor
	store     ObjectStore
	urlTTL    time.Duration
	notifier  Notifier
	clock     Clock
	log       logrus.FieldLogger
}

func NewReviewService(
	employees repository.EmployeeRepository,
	requests repository.ChangeRequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	executor Executor,
	store ObjectStore,
	urlTTL time.Duration,
	notifier Notifier,
	clock Clock,
	log logrus.FieldLogger,
) ReviewService {
	return &reviewService{
		employees: employees,
		requests:  requests,
		auditRepo: auditRepo,
		txManager: txManager,
		executor:  executor,
		store:     store,
		urlTTL:    urlTTL,
		notifier:  notifier,
		clock:     clock,
		log:       log,
	}
}

// ListPending returns the review queue, newest submission first.
func (s *reviewService) ListPending(ctx context.Context, page, limit int) ([]ChangeRequestResponse, int64, error) {
	return s.ListRequests(ctx, ChangeRequestFilter{Status: model.ChangeStatusPending, Page: page, Limit: limit})
}

func (s *reviewService) ListRequests(ctx context.Context, filter ChangeRequestFilter) ([]ChangeRequestResponse, int64, error) {
	switch filter.Status {
	case "", model.ChangeStatusPending, model.ChangeStatusApproved, model.ChangeStatusRejected:
	default:
		return nil, 0, invalid("status", "must be pending, approved or rejected")
	}
	switch filter.Kind {
	case "", model.ChangeKindPersonalInfo, model.ChangeKindDocument:
	default:
		return nil, 0, invalid("kind", "must be personal_info or document")
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	requests, total, err := s.requests.List(ctx, repository.ChangeRequestFilter{
		Status: filter.Status,
		Kind:   filter.Kind,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch change requests: %w", err)
	}

	result := make([]ChangeRequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toChangeRequestResponse(r))
	}
	return result, total, nil
}

func (s *reviewService) GetRequest(ctx context.Context, id string) (ChangeRequestResponse, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	return toChangeRequestResponse(*req), nil
}

func (s *reviewService) DocumentURL(ctx context.Context, id string) (DocumentURLResponse, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return DocumentURLResponse{}, err
	}
	if req.Kind != model.ChangeKindDocument {
		return DocumentURLResponse{}, invalid("id", "change request has no document")
	}
	url, err := s.store.SignedURL(req.Document.FilePath, s.urlTTL)
	if err != nil {
		return DocumentURLResponse{}, fmt.Errorf("%w: sign %s: %v", ErrStorage, req.Document.FilePath, err)
	}
	return DocumentURLResponse{
		URL:       url,
		ExpiresAt: s.clock.Now().Add(s.urlTTL).Format(time.RFC3339),
	}, nil
}

func (s *reviewService) load(ctx context.Context, id string) (*model.ChangeRequest, error) {
	requestID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	req, err := s.requests.FindByIDWithRelations(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: change request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load change request: %w", err)
	}
	return req, nil
}

// Decide approves or rejects a pending request. Approval applies the change and stamps the
// decision in one transaction; if either step fails the request stays pending.
func (s *reviewService) Decide(ctx context.Context, id, reviewerID, outcome, note string) (ChangeRequestResponse, error) {
	resp, err := s.decide(ctx, id, reviewerID, outcome, note)
	if err != nil {
		metrics.ChangeRequestFailures.WithLabelValues("decide", Kind(err)).Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"request_id": id,
			"outcome":    outcome,
			"error_kind": Kind(err),
		}).Warn("change request decision failed")
		return ChangeRequestResponse{}, err
	}
	return resp, nil
}

func (s *reviewService) decide(ctx context.Context, id, reviewerID, outcome, note string) (ChangeRequestResponse, error) {
	requestID, err := parseID("id", id)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	reviewer, err := parseID("reviewer_id", reviewerID)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	status, action, err := outcomeStatus(outcome)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxDecisionNoteLength {
		return ChangeRequestResponse{}, invalid("note", "must be at most %d characters", maxDecisionNoteLength)
	}

	var req *model.ChangeRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.requests.FindByID(txCtx, requestID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: change request %s", ErrNotFound, requestID)
		}
		if err != nil {
			return fmt.Errorf("failed to load change request: %w", err)
		}
		req = found
		if !req.IsPending() {
			return fmt.Errorf("%w: request is already %s", ErrStaleState, req.Status)
		}

		subject, err := s.employees.GetByID(txCtx, req.SubjectID)
		if err != nil {
			return fmt.Errorf("failed to load subject employee: %w", err)
		}
		if subject.UserID != nil && *subject.UserID == reviewer {
			return invalid("reviewer_id", "reviewers cannot decide their own change requests")
		}

		if status == model.ChangeStatusApproved {
			if err := s.executor.Apply(txCtx, req, reviewer); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutor, err)
			}
		}

		err = s.requests.TransitionFromPending(txCtx, req.ID, status, reviewer, s.clock.Now(), note)
		if errors.Is(err, repository.ErrNotPending) {
			return fmt.Errorf("%w: request was decided concurrently", ErrStaleState)
		}
		if err != nil {
			return fmt.Errorf("failed to update change request: %w", err)
		}

		details := map[string]interface{}{
			"subject_id": req.SubjectID.String(),
			"kind":       req.Kind,
		}
		if note != "" {
			details["note"] = note
		}
		return writeAudit(txCtx, s.auditRepo, &reviewer, action, req.ID.String(), req.Kind, details)
	})
	if err != nil {
		return ChangeRequestResponse{}, err
	}

	metrics.ChangeRequestsDecided.WithLabelValues(req.Kind, outcome).Inc()
	s.log.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"subject_id":  req.SubjectID,
		"kind":        req.Kind,
		"outcome":     outcome,
		"reviewer_id": reviewer,
	}).Info("change request decided")
	s.notifier.Publish(TopicChangeRequestDecided, ChangeRequestEvent{
		RequestID: req.ID.String(),
		SubjectID: req.SubjectID.String(),
		Kind:      req.Kind,
		Status:    status,
	})

	decided, err := s.requests.FindByIDWithRelations(ctx, req.ID)
	if err != nil {
		return ChangeRequestResponse{}, fmt.Errorf("failed to reload change request: %w", err)
	}
	return toChangeRequestResponse(*decided), nil
}

func outcomeStatus(outcome string) (string, string, error) {
	switch outcome {
	case OutcomeApprove:
		return model.ChangeStatusApproved, model.ActionApproveChangeRequest, nil
	case OutcomeReject:
		return model.ChangeStatusRejected, model.ActionRejectChangeRequest, nil
	}
	return "", "", invalid("outcome", "must be approve or reject")
}
