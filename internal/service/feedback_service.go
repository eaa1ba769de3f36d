package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	ListBySubmission(ctx context.Context, submissionID string) ([]models.FeedbackDetail, error)
}

type submissionDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
}

// CreateFeedbackRequest is a supervisor's comment on a submitted document.
type CreateFeedbackRequest struct {
	Comment string   `json:"comment" validate:"required"`
	Grade   *float64 `json:"grade" validate:"omitempty,min=0,max=100"`
}

// FeedbackService manages supervisor feedback on submissions.
type FeedbackService struct {
	repo        feedbackRepository
	submissions submissionDetailReader
	audit       auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewFeedbackService constructs FeedbackService.
func NewFeedbackService(repo feedbackRepository, submissions submissionDetailReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{repo: repo, submissions: submissions, audit: audit, validator: validate, logger: logger}
}

// Create records feedback on a submitted document. Only the supervisor of
// the underlying assignment may comment, and only after an upload exists.
func (s *FeedbackService) Create(ctx context.Context, submissionID, supervisorID string, req CreateFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.SupervisorID != supervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another supervisor's assignment")
	}
	if submission.Status == models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no document has been uploaded yet")
	}

	feedback := &models.Feedback{
		SubmissionID: submissionID,
		SupervisorID: supervisorID,
		Comment:      req.Comment,
		Grade:        req.Grade,
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}

	s.recordAudit(ctx, supervisorID, models.AuditActionFeedbackCreate, feedback.ID, map[string]interface{}{
		"submission_id": submissionID,
		"graded":        req.Grade != nil,
	})
	return feedback, nil
}

// ListBySubmission returns feedback visible to the participating student,
// the supervisor, and admins.
func (s *FeedbackService) ListBySubmission(ctx context.Context, submissionID string, actor *models.JWTClaims) ([]models.FeedbackDetail, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != submission.StudentID && actor.UserID != submission.SupervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this assignment")
	}

	feedback, err := s.repo.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return feedback, nil
}

func (s *FeedbackService) loadSubmission(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	submission, err := s.submissions.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

func (s *FeedbackService) recordAudit(ctx context.Context, actorID, action, resourceID string, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "feedback",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
