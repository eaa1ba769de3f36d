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

type topicRepository interface {
	List(ctx context.Context, filter models.TopicFilter) ([]models.TopicDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Topic, error)
	FindDetailByID(ctx context.Context, id string) (*models.TopicDetail, error)
	Create(ctx context.Context, topic *models.Topic) error
	Update(ctx context.Context, topic *models.Topic) error
	UpdateStatus(ctx context.Context, id string, status models.TopicStatus) error
}

// CreateTopicRequest carries the fields a supervisor proposes a topic with.
type CreateTopicRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"required"`
	Tags        []string `json:"tags"`
	Capacity    int      `json:"capacity" validate:"omitempty,min=1,max=10"`
}

// UpdateTopicRequest carries mutable topic fields. Nil pointers leave the
// current value untouched.
type UpdateTopicRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	Capacity    *int      `json:"capacity" validate:"omitempty,min=1,max=10"`
}

// TopicService manages the topic lifecycle: draft, publish, archive.
type TopicService struct {
	repo      topicRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTopicService constructs TopicService.
func NewTopicService(repo topicRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *TopicService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns topics with pagination metadata. Students only ever see
// ACTIVE topics; the caller enforces that by constraining the filter.
func (s *TopicService) List(ctx context.Context, filter models.TopicFilter) ([]models.TopicDetail, *models.Pagination, error) {
	topics, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
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
	return topics, pagination, nil
}

// Get returns one topic with supervisor context.
func (s *TopicService) Get(ctx context.Context, id string) (*models.TopicDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	return detail, nil
}

// Create registers a new topic in DRAFT state owned by the supervisor.
func (s *TopicService) Create(ctx context.Context, supervisorID string, req CreateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = 1
	}
	topic := &models.Topic{
		SupervisorID: supervisorID,
		Title:        req.Title,
		Description:  req.Description,
		Tags:         req.Tags,
		Capacity:     capacity,
		Status:       models.TopicStatusDraft,
	}
	if err := s.repo.Create(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}

	s.recordAudit(ctx, supervisorID, models.AuditActionTopicCreate, topic.ID, map[string]interface{}{
		"title": topic.Title,
	})
	return topic, nil
}

// Update changes mutable fields of a topic the supervisor owns. Archived
// topics are frozen.
func (s *TopicService) Update(ctx context.Context, id, supervisorID string, req UpdateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	topic, err := s.loadOwned(ctx, id, supervisorID)
	if err != nil {
		return nil, err
	}
	if topic.Status == models.TopicStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "archived topics cannot be updated")
	}

	if req.Title != nil {
		topic.Title = *req.Title
	}
	if req.Description != nil {
		topic.Description = *req.Description
	}
	if req.Tags != nil {
		topic.Tags = *req.Tags
	}
	if req.Capacity != nil {
		topic.Capacity = *req.Capacity
	}
	if err := s.repo.Update(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic")
	}

	s.recordAudit(ctx, supervisorID, models.AuditActionTopicUpdate, topic.ID, map[string]interface{}{
		"title": topic.Title,
	})
	return topic, nil
}

// Publish moves a DRAFT topic to ACTIVE, opening it for applications.
func (s *TopicService) Publish(ctx context.Context, id, supervisorID string) (*models.Topic, error) {
	return s.transition(ctx, id, supervisorID, models.TopicStatusDraft, models.TopicStatusActive, models.AuditActionTopicPublish, "only draft topics can be published")
}

// Archive moves an ACTIVE topic to ARCHIVED, closing it to new applications.
// Existing applications and assignments are untouched.
func (s *TopicService) Archive(ctx context.Context, id, supervisorID string) (*models.Topic, error) {
	return s.transition(ctx, id, supervisorID, models.TopicStatusActive, models.TopicStatusArchived, models.AuditActionTopicArchive, "only active topics can be archived")
}

func (s *TopicService) transition(ctx context.Context, id, supervisorID string, from, to models.TopicStatus, action, invalidMsg string) (*models.Topic, error) {
	topic, err := s.loadOwned(ctx, id, supervisorID)
	if err != nil {
		return nil, err
	}
	if topic.Status != from {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, invalidMsg)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic status")
	}
	topic.Status = to

	s.recordAudit(ctx, supervisorID, action, id, map[string]interface{}{
		"status": string(to),
	})
	return topic, nil
}

func (s *TopicService) loadOwned(ctx context.Context, id, supervisorID string) (*models.Topic, error) {
	topic, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	if topic.SupervisorID != supervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "topic belongs to another supervisor")
	}
	return topic, nil
}

func (s *TopicService) recordAudit(ctx context.Context, actorID, action, resourceID string, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "topics",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
