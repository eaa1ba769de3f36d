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

// ApplicationRepository handles persistence of topic applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationDetailColumns = `a.id, a.student_id, a.topic_id, a.preference_rank, a.status, a.supervisor_notes, a.applied_at, a.decided_at,
        u.full_name AS student_name, u.email AS student_email, t.title AS topic_title, t.supervisor_id AS topic_supervisor_id`

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
LEFT JOIN users u ON u.id = a.student_id
LEFT JOIN topics t ON t.id = a.topic_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TopicID != "" {
		conditions = append(conditions, fmt.Sprintf("a.topic_id = $%d", len(args)+1))
		args = append(args, filter.TopicID)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("t.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"applied_at":      "a.applied_at",
		"preference_rank": "a.preference_rank",
		"student_name":    "u.full_name",
		"topic_title":     "t.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "applied_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.applied_at"
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		applicationDetailColumns, base+clause, orderBy, order, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, student_id, topic_id, preference_rank, status, supervisor_notes, applied_at, decided_at FROM applications WHERE id = $1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// FindDetailByID returns an application with student and topic context.
func (r *ApplicationRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM applications a
        LEFT JOIN users u ON u.id = a.student_id
        LEFT JOIN topics t ON t.id = a.topic_id
        WHERE a.id = $1`, applicationDetailColumns)
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentAndTopic checks the (student, topic) uniqueness invariant.
func (r *ApplicationRepository) ExistsForStudentAndTopic(ctx context.Context, studentID, topicID string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE student_id = $1 AND topic_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, topicID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate application: %w", err)
	}
	return true, nil
}

// CountPendingByStudent returns the number of pending applications held by a student.
func (r *ApplicationRepository) CountPendingByStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM applications WHERE student_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, models.ApplicationStatusPending); err != nil {
		return 0, fmt.Errorf("count pending applications: %w", err)
	}
	return count, nil
}

// Create persists a new application record.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now().UTC()
	}
	if application.Status == "" {
		application.Status = models.ApplicationStatusPending
	}
	const query = `INSERT INTO applications (id, student_id, topic_id, preference_rank, status, supervisor_notes, applied_at, decided_at)
        VALUES (:id, :student_id, :topic_id, :preference_rank, :status, :supervisor_notes, :applied_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// Delete removes an application row. Used only for withdrawal of pending
// applications; decided applications are never deleted.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM applications WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return nil
}

// UpdateDecision flips a single application to a decided status.
func (r *ApplicationRepository) UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, notes string, decidedAt time.Time) error {
	const query = `UPDATE applications SET status = $2, supervisor_notes = $3, decided_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, notes, decidedAt); err != nil {
		return fmt.Errorf("update application decision: %w", err)
	}
	return nil
}

// Approve performs the full approval cascade in one transaction: the
// assignment insert, the target application's decision, and the rejection
// of the student's other pending applications. The assignment insert hits
// the partial unique index on assignments(student_id) WHERE status='ACTIVE',
// so a concurrent approval for the same student fails here with a unique
// violation rather than creating a second active assignment.
func (r *ApplicationRepository) Approve(ctx context.Context, applicationID string, assignment *models.Assignment, notes string, decidedAt time.Time) ([]models.Application, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = decidedAt
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertAssignment = `INSERT INTO assignments (id, student_id, topic_id, supervisor_id, status, replaced_by, assigned_at, completed_at)
        VALUES (:id, :student_id, :topic_id, :supervisor_id, :status, :replaced_by, :assigned_at, :completed_at)`
	if _, err := tx.NamedExecContext(ctx, insertAssignment, assignment); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	const approve = `UPDATE applications SET status = $2, supervisor_notes = $3, decided_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, approve, applicationID, models.ApplicationStatusApproved, notes, decidedAt); err != nil {
		return nil, fmt.Errorf("approve application: %w", err)
	}

	const rejectSiblings = `UPDATE applications SET status = $1, supervisor_notes = $2, decided_at = $3
        WHERE student_id = $4 AND status = $5 AND id <> $6
        RETURNING id, student_id, topic_id, preference_rank, status, supervisor_notes, applied_at, decided_at`
	var rejected []models.Application
	if err := tx.SelectContext(ctx, &rejected, rejectSiblings,
		models.ApplicationStatusRejected, models.AutoRejectNotes, decidedAt,
		assignment.StudentID, models.ApplicationStatusPending, applicationID); err != nil {
		return nil, fmt.Errorf("reject sibling applications: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	return rejected, nil
}

// CountByStatus groups application counts by status for reporting.
func (r *ApplicationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM applications GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan application count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
