package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	"github.com/unifyp/fyp-api/pkg/database"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	ExistsForStudentAndTopic(ctx context.Context, studentID, topicID string) (bool, error)
	CountPendingByStudent(ctx context.Context, studentID string) (int, error)
	Create(ctx context.Context, application *models.Application) error
	Delete(ctx context.Context, id string) error
	UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, notes string, decidedAt time.Time) error
	Approve(ctx context.Context, applicationID string, assignment *models.Assignment, notes string, decidedAt time.Time) ([]models.Application, error)
}

type topicReader interface {
	FindByID(ctx context.Context, id string) (*models.Topic, error)
}

type activeAssignmentChecker interface {
	ExistsActiveForStudent(ctx context.Context, studentID string) (bool, error)
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// ApplyRequest describes a student's application payload.
type ApplyRequest struct {
	TopicID        string `json:"topic_id" validate:"required"`
	PreferenceRank int    `json:"preference_rank" validate:"required"`
}

// DecisionRequest carries supervisor notes for approve/reject.
type DecisionRequest struct {
	Notes string `json:"notes"`
}

// ApplicationServiceConfig tunes workflow limits.
type ApplicationServiceConfig struct {
	MaxPending int
}

// ApplicationService orchestrates the topic application workflow: a
// student's ranked bids, the supervisor's decision, and the cascade that
// resolves the student's remaining bids once one is approved.
type ApplicationService struct {
	repo        applicationRepository
	topics      topicReader
	assignments activeAssignmentChecker
	audit       auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ApplicationServiceConfig
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, topics topicReader, assignments activeAssignmentChecker, audit auditWriter, validate *validator.Validate, logger *zap.Logger, cfg ApplicationServiceConfig) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 5
	}
	return &ApplicationService{repo: repo, topics: topics, assignments: assignments, audit: audit, validator: validate, logger: logger, cfg: cfg}
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applications, pagination, nil
}

// Apply registers a student's ranked bid on an active topic.
func (s *ApplicationService) Apply(ctx context.Context, studentID string, req ApplyRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if req.PreferenceRank < 1 || req.PreferenceRank > 5 {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "preference rank must be between 1 and 5")
	}

	topic, err := s.topics.FindByID(ctx, req.TopicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	if topic.Status != models.TopicStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "topic not accepting applications")
	}

	exists, err := s.repo.ExistsForStudentAndTopic(ctx, studentID, req.TopicID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate application")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already applied to this topic")
	}

	pending, err := s.repo.CountPendingByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending applications")
	}
	if pending >= s.cfg.MaxPending {
		return nil, appErrors.Clone(appErrors.ErrLimitExceeded, "application limit exceeded")
	}

	application := &models.Application{
		StudentID:      studentID,
		TopicID:        req.TopicID,
		PreferenceRank: req.PreferenceRank,
		Status:         models.ApplicationStatusPending,
		AppliedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, application); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already applied to this topic")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.recordAudit(ctx, studentID, models.AuditActionApplicationApply, application.ID, map[string]interface{}{
		"topic_id":        application.TopicID,
		"preference_rank": application.PreferenceRank,
	})

	detail, err := s.repo.FindDetailByID(ctx, application.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application detail")
	}
	return detail, nil
}

// Approve transitions one pending application to approved, creates the
// resulting active assignment, and auto-rejects the student's other pending
// applications. The multi-record write happens in one repository
// transaction; the concurrent-approval race is settled by the unique index
// on active assignments, surfaced here as a conflict.
func (s *ApplicationService) Approve(ctx context.Context, applicationID, supervisorID string, req DecisionRequest) (*models.ApprovalResult, error) {
	application, topic, err := s.loadForDecision(ctx, applicationID, supervisorID, "approve")
	if err != nil {
		return nil, err
	}

	hasActive, err := s.assignments.ExistsActiveForStudent(ctx, application.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active assignment")
	}
	if hasActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active assignment")
	}

	now := time.Now().UTC()
	assignment := &models.Assignment{
		StudentID:    application.StudentID,
		TopicID:      application.TopicID,
		SupervisorID: topic.SupervisorID,
		Status:       models.AssignmentStatusActive,
		AssignedAt:   now,
	}

	rejected, err := s.repo.Approve(ctx, applicationID, assignment, req.Notes, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active assignment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve application")
	}

	s.recordAudit(ctx, supervisorID, models.AuditActionApplicationApprove, applicationID, map[string]interface{}{
		"student_id":    application.StudentID,
		"topic_id":      application.TopicID,
		"assignment_id": assignment.ID,
	})
	for _, sibling := range rejected {
		s.recordAudit(ctx, supervisorID, models.AuditActionApplicationAutoRej, sibling.ID, map[string]interface{}{
			"student_id": sibling.StudentID,
			"topic_id":   sibling.TopicID,
			"reason":     models.AutoRejectNotes,
		})
	}

	detail, err := s.repo.FindDetailByID(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application detail")
	}
	return &models.ApprovalResult{Application: detail, Assignment: assignment, AutoRejected: rejected}, nil
}

// Reject flips a single pending application to rejected. No cascade and no
// assignment is created.
func (s *ApplicationService) Reject(ctx context.Context, applicationID, supervisorID string, req DecisionRequest) (*models.ApplicationDetail, error) {
	application, _, err := s.loadForDecision(ctx, applicationID, supervisorID, "reject")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateDecision(ctx, applicationID, models.ApplicationStatusRejected, req.Notes, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}

	s.recordAudit(ctx, supervisorID, models.AuditActionApplicationReject, applicationID, map[string]interface{}{
		"student_id": application.StudentID,
		"topic_id":   application.TopicID,
	})

	detail, err := s.repo.FindDetailByID(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application detail")
	}
	return detail, nil
}

// Withdraw deletes a student's own pending application. Decided
// applications cannot be withdrawn.
func (s *ApplicationService) Withdraw(ctx context.Context, applicationID, studentID string) error {
	application, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	if application.Status != models.ApplicationStatusPending {
		return appErrors.Clone(appErrors.ErrInvalidState, "cannot withdraw a decided application")
	}

	if err := s.repo.Delete(ctx, applicationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw application")
	}

	s.recordAudit(ctx, studentID, models.AuditActionApplicationWithdraw, applicationID, map[string]interface{}{
		"topic_id": application.TopicID,
	})
	return nil
}

// loadForDecision checks the shared approve/reject preconditions in order:
// the application exists, the acting supervisor owns its topic, and it is
// still pending.
func (s *ApplicationService) loadForDecision(ctx context.Context, applicationID, supervisorID, verb string) (*models.Application, *models.Topic, error) {
	application, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	topic, err := s.topics.FindByID(ctx, application.TopicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	if topic.SupervisorID != supervisorID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another supervisor's topic")
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot "+verb+" a decided application")
	}
	return application, topic, nil
}

// recordAudit appends an audit entry. Audit failures never abort the
// primary operation.
func (s *ApplicationService) recordAudit(ctx context.Context, actorID, action, resourceID string, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "applications",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
