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

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Complete(ctx context.Context, id string, completedAt time.Time) error
	Reassign(ctx context.Context, oldID string, replacement *models.Assignment) error
}

// ReassignRequest moves an assignment to a new topic.
type ReassignRequest struct {
	TargetTopicID string `json:"target_topic_id" validate:"required"`
}

// AssignmentService manages the assignment lifecycle after approval.
type AssignmentService struct {
	repo      assignmentRepository
	topics    topicReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(repo assignmentRepository, topics topicReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, topics: topics, audit: audit, validator: validate, logger: logger}
}

// List returns assignments with pagination metadata.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
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
	return assignments, pagination, nil
}

// Complete closes an active assignment. Only the supervising user may do so.
func (s *AssignmentService) Complete(ctx context.Context, id, supervisorID string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.SupervisorID != supervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another supervisor")
	}
	if assignment.Status != models.AssignmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment is not active")
	}

	now := time.Now().UTC()
	if err := s.repo.Complete(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete assignment")
	}
	assignment.Status = models.AssignmentStatusCompleted
	assignment.CompletedAt = &now

	s.recordAudit(ctx, supervisorID, models.AuditActionAssignmentComplete, id, map[string]interface{}{
		"student_id": assignment.StudentID,
		"topic_id":   assignment.TopicID,
	})
	return assignment, nil
}

// Reassign supersedes an active assignment with a new one on a different
// topic. Admin-only; the old row becomes CHANGED and links to the new one.
func (s *AssignmentService) Reassign(ctx context.Context, id, adminID string, req ReassignRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}

	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.Status != models.AssignmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only active assignments can be reassigned")
	}
	if assignment.TopicID == req.TargetTopicID {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment already on target topic")
	}

	topic, err := s.topics.FindByID(ctx, req.TargetTopicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target topic")
	}
	if topic.Status != models.TopicStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "target topic is not active")
	}

	replacement := &models.Assignment{
		StudentID:    assignment.StudentID,
		TopicID:      topic.ID,
		SupervisorID: topic.SupervisorID,
		Status:       models.AssignmentStatusActive,
		AssignedAt:   time.Now().UTC(),
	}
	if err := s.repo.Reassign(ctx, id, replacement); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active assignment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign")
	}

	s.recordAudit(ctx, adminID, models.AuditActionAssignmentReassign, id, map[string]interface{}{
		"student_id":     assignment.StudentID,
		"old_topic_id":   assignment.TopicID,
		"new_topic_id":   topic.ID,
		"replacement_id": replacement.ID,
	})
	return replacement, nil
}

func (s *AssignmentService) recordAudit(ctx context.Context, actorID, action, resourceID string, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "assignments",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
