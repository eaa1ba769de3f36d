package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unifyp/fyp-api/internal/models"
)

// AssignmentRepository handles persistence of project assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// List returns assignments filtered by the provided criteria.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	base := `FROM assignments asg
LEFT JOIN users u ON u.id = asg.student_id
LEFT JOIN topics t ON t.id = asg.topic_id
LEFT JOIN users sv ON sv.id = asg.supervisor_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("asg.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("asg.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.TopicID != "" {
		conditions = append(conditions, fmt.Sprintf("asg.topic_id = $%d", len(args)+1))
		args = append(args, filter.TopicID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("asg.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"assigned_at":  "asg.assigned_at",
		"student_name": "u.full_name",
		"topic_title":  "t.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "assigned_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "asg.assigned_at"
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

	query := fmt.Sprintf(`SELECT asg.id, asg.student_id, asg.topic_id, asg.supervisor_id, asg.status, asg.replaced_by, asg.assigned_at, asg.completed_at,
        u.full_name AS student_name, t.title AS topic_title, sv.full_name AS supervisor_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return assignments, total, nil
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, student_id, topic_id, supervisor_id, status, replaced_by, assigned_at, completed_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ExistsActiveForStudent checks the one-active-assignment invariant.
func (r *AssignmentRepository) ExistsActiveForStudent(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE student_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.AssignmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return true, nil
}

// Complete marks an active assignment as completed.
func (r *AssignmentRepository) Complete(ctx context.Context, id string, completedAt time.Time) error {
	const query = `UPDATE assignments SET status = $2, completed_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.AssignmentStatusCompleted, completedAt); err != nil {
		return fmt.Errorf("complete assignment: %w", err)
	}
	return nil
}

// Reassign supersedes an active assignment with a new one for a different
// topic inside a single transaction. The old row leaves the ACTIVE state
// first, keeping the partial unique index satisfied; the replaced_by link
// is set last because the self-referencing FK is checked per statement and
// the replacement row must already exist.
func (r *AssignmentRepository) Reassign(ctx context.Context, oldID string, replacement *models.Assignment) error {
	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	if replacement.AssignedAt.IsZero() {
		replacement.AssignedAt = time.Now().UTC()
	}
	replacement.Status = models.AssignmentStatusActive

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reassignment: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const supersede = `UPDATE assignments SET status = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, supersede, oldID, models.AssignmentStatusChanged); err != nil {
		return fmt.Errorf("supersede assignment: %w", err)
	}

	const insert = `INSERT INTO assignments (id, student_id, topic_id, supervisor_id, status, replaced_by, assigned_at, completed_at)
        VALUES (:id, :student_id, :topic_id, :supervisor_id, :status, :replaced_by, :assigned_at, :completed_at)`
	if _, err := tx.NamedExecContext(ctx, insert, replacement); err != nil {
		return fmt.Errorf("create replacement assignment: %w", err)
	}

	const link = `UPDATE assignments SET replaced_by = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, link, oldID, replacement.ID); err != nil {
		return fmt.Errorf("link replacement assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reassignment: %w", err)
	}
	return nil
}

// CountActive returns the number of active assignments.
func (r *AssignmentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.AssignmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active assignments: %w", err)
	}
	return count, nil
}
