package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unifyp/fyp-api/internal/models"
)

// TopicRepository handles persistence of project topics.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository constructs the repository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// List returns topics filtered by the provided criteria.
func (r *TopicRepository) List(ctx context.Context, filter models.TopicFilter) ([]models.TopicDetail, int, error) {
	base := `FROM topics t
LEFT JOIN users sv ON sv.id = t.supervisor_id`
	var conditions []string
	var args []interface{}

	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("t.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(t.title) LIKE $%d OR LOWER(t.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "t.created_at",
		"title":      "t.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "t.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT t.id, t.supervisor_id, t.title, t.description, t.tags, t.capacity, t.status, t.created_at, t.updated_at,
        sv.full_name AS supervisor_name, sv.email AS supervisor_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var topics []models.TopicDetail
	if err := r.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list topics: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count topics: %w", err)
	}
	return topics, total, nil
}

// FindByID returns a topic by its ID.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	const query = `SELECT id, supervisor_id, title, description, tags, capacity, status, created_at, updated_at FROM topics WHERE id = $1`
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		return nil, err
	}
	return &topic, nil
}

// FindDetailByID returns a topic with supervisor context.
func (r *TopicRepository) FindDetailByID(ctx context.Context, id string) (*models.TopicDetail, error) {
	const query = `SELECT t.id, t.supervisor_id, t.title, t.description, t.tags, t.capacity, t.status, t.created_at, t.updated_at,
        sv.full_name AS supervisor_name, sv.email AS supervisor_email
        FROM topics t
        LEFT JOIN users sv ON sv.id = t.supervisor_id
        WHERE t.id = $1`
	var detail models.TopicDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new topic record.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = now
	if topic.Status == "" {
		topic.Status = models.TopicStatusDraft
	}
	const query = `INSERT INTO topics (id, supervisor_id, title, description, tags, capacity, status, created_at, updated_at)
        VALUES (:id, :supervisor_id, :title, :description, :tags, :capacity, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// Update persists mutable topic fields.
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic) error {
	topic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE topics SET title = :title, description = :description, tags = :tags, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// UpdateStatus moves a topic through its lifecycle.
func (r *TopicRepository) UpdateStatus(ctx context.Context, id string, status models.TopicStatus) error {
	const query = `UPDATE topics SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update topic status: %w", err)
	}
	return nil
}

// CountByStatus groups topic counts by status for reporting.
func (r *TopicRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM topics GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count topics by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan topic count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
