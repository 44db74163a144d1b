package service

import (
	"context"
	"fmt"

	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/sirupsen/logrus"
)

// EligibilityResponse tells the client whether the employee may open a new request.
type EligibilityResponse struct {
	SubjectID  string `json:"subject_id"`
	HasPending bool   `json:"has_pending"`
	CanSubmit  bool   `json:"can_submit"`
}

// SubmitPersonalInfoRequest carries only the fields the employee wants to change.
// A null or blank value proposes clearing the field.
type SubmitPersonalInfoRequest struct {
	Fields map[string]*string `json:"fields" binding:"required"`
}

type SubmissionService interface {
	Eligibility(ctx context.Context, userID string) (EligibilityResponse, error)
	SubmitPersonalInfo(ctx context.Context, userID string, req SubmitPersonalInfoRequest) (ChangeRequestResponse, error)
	ListMyRequests(ctx context.Context, userID string, page, limit int) ([]ChangeRequestResponse, int64, error)
}

type submissionService struct {
	employees repository.EmployeeRepository
	requests  repository.ChangeRequestRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	guard     *PendingGuard
	validator *fieldValidator
	notifier  Notifier
	clock     Clock
	log       logrus.FieldLogger
}

func NewSubmissionService(
	employees repository.EmployeeRepository,
	requests repository.ChangeRequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
	clock Clock,
	log logrus.FieldLogger,
) SubmissionService {
	return &submissionService{
		employees: employees,
		requests:  requests,
		auditRepo: auditRepo,
		txManager: txManager,
		guard:     NewPendingGuard(requests),
		validator: newFieldValidator(clock.Now),
		notifier:  notifier,
		clock:     clock,
		log:       log,
	}
}

func (s *submissionService) Eligibility(ctx context.Context, userID string) (EligibilityResponse, error) {
	emp, err := resolveSubject(ctx, s.employees, userID)
	if err != nil {
		return EligibilityResponse{}, err
	}
	pending, err := s.guard.HasPending(ctx, emp.ID)
	if err != nil {
		return EligibilityResponse{}, err
	}
	return EligibilityResponse{
		SubjectID:  emp.ID.String(),
		HasPending: pending,
		CanSubmit:  !pending,
	}, nil
}

func (s *submissionService) SubmitPersonalInfo(ctx context.Context, userID string, req SubmitPersonalInfoRequest) (ChangeRequestResponse, error) {
	resp, err := s.submitPersonalInfo(ctx, userID, req)
	if err != nil {
		metrics.ChangeRequestFailures.WithLabelValues("submit_personal_info", Kind(err)).Inc()
		return ChangeRequestResponse{}, err
	}
	return resp, nil
}

func (s *submissionService) submitPersonalInfo(ctx context.Context, userID string, req SubmitPersonalInfoRequest) (ChangeRequestResponse, error) {
	supplied, err := PersonalInfo{}.Overlay(req.Fields)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	if err := s.validator.Validate(supplied); err != nil {
		return ChangeRequestResponse{}, err
	}

	emp, err := resolveSubject(ctx, s.employees, userID)
	if err != nil {
		return ChangeRequestResponse{}, err
	}

	var created model.ChangeRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.guard.Recheck(txCtx, emp.ID); err != nil {
			return err
		}

		current, err := s.employees.GetByID(txCtx, emp.ID)
		if err != nil {
			return fmt.Errorf("failed to reload employee record: %w", err)
		}
		currentInfo := PersonalInfoOf(current)
		proposed, err := currentInfo.Overlay(req.Fields)
		if err != nil {
			return err
		}
		changes := BuildChanges(currentInfo, proposed)
		if len(changes) == 0 {
			return ErrNoChanges
		}

		created = model.ChangeRequest{
			SubjectID:   emp.ID,
			Kind:        model.ChangeKindPersonalInfo,
			Status:      model.ChangeStatusPending,
			Changes:     changes,
			SubmittedAt: s.clock.Now(),
		}
		if err := s.guard.Insert(txCtx, &created); err != nil {
			return err
		}

		fields := make([]string, 0, len(changes))
		for _, f := range model.EditableFields {
			if _, ok := changes[f]; ok {
				fields = append(fields, f)
			}
		}
		return writeAudit(txCtx, s.auditRepo, emp.UserID, model.ActionCreateChangeRequest,
			created.ID.String(), model.ChangeKindPersonalInfo, map[string]interface{}{
				"subject_id": emp.ID.String(),
				"fields":     fields,
			})
	})
	if err != nil {
		return ChangeRequestResponse{}, err
	}

	metrics.ChangeRequestsSubmitted.WithLabelValues(model.ChangeKindPersonalInfo).Inc()
	s.log.WithFields(logrus.Fields{
		"request_id": created.ID,
		"subject_id": emp.ID,
		"kind":       created.Kind,
		"fields":     len(created.Changes),
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

func (s *submissionService) ListMyRequests(ctx context.Context, userID string, page, limit int) ([]ChangeRequestResponse, int64, error) {
	emp, err := resolveSubject(ctx, s.employees, userID)
	if err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)

	requests, total, err := s.requests.List(ctx, repository.ChangeRequestFilter{
		SubjectID: &emp.ID,
		Offset:    (page - 1) * limit,
		Limit:     limit,
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
