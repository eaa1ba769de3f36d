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

// SubmissionRepository handles persistence of phased submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionDetailColumns = `s.id, s.assignment_id, s.phase, s.file_name, s.file_path, s.file_size, s.mime_type, s.due_at, s.submitted_at, s.status, s.last_reminded_at,
        asg.student_id, u.full_name AS student_name, u.email AS student_email, t.title AS topic_title, asg.supervisor_id`

const submissionDetailJoins = `FROM submissions s
JOIN assignments asg ON asg.id = s.assignment_id
LEFT JOIN users u ON u.id = asg.student_id
LEFT JOIN topics t ON t.id = asg.topic_id`

// Create persists a new submission slot.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	const query = `INSERT INTO submissions (id, assignment_id, phase, file_name, file_path, file_size, mime_type, due_at, submitted_at, status, last_reminded_at)
        VALUES (:id, :assignment_id, :phase, :file_name, :file_path, :file_size, :mime_type, :due_at, :submitted_at, :status, :last_reminded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, phase, file_name, file_path, file_size, mime_type, due_at, submitted_at, status, last_reminded_at
        FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindDetailByID returns a submission with assignment context.
func (r *SubmissionRepository) FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1`, submissionDetailColumns, submissionDetailJoins)
	var detail models.SubmissionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByAssignment returns all submission slots for an assignment.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	const query = `SELECT id, assignment_id, phase, file_name, file_path, file_size, mime_type, due_at, submitted_at, status, last_reminded_at
        FROM submissions WHERE assignment_id = $1 ORDER BY due_at ASC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// MarkSubmitted records an uploaded document on a submission slot.
func (r *SubmissionRepository) MarkSubmitted(ctx context.Context, id string, fileName, filePath string, fileSize int64, mimeType string, submittedAt time.Time, status models.SubmissionStatus) error {
	const query = `UPDATE submissions SET file_name = $2, file_path = $3, file_size = $4, mime_type = $5, submitted_at = $6, status = $7 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, fileName, filePath, fileSize, mimeType, submittedAt, status); err != nil {
		return fmt.Errorf("mark submission submitted: %w", err)
	}
	return nil
}

// ListOverdue returns pending submissions past their due date that have not
// been reminded since the cutoff. Used by the reminder worker.
func (r *SubmissionRepository) ListOverdue(ctx context.Context, now time.Time, remindedBefore time.Time) ([]models.SubmissionDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
        WHERE s.status = $1 AND s.due_at < $2
          AND asg.status = $3
          AND (s.last_reminded_at IS NULL OR s.last_reminded_at < $4)
        ORDER BY s.due_at ASC`, submissionDetailColumns, submissionDetailJoins)
	var overdue []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &overdue, query,
		models.SubmissionStatusPending, now, models.AssignmentStatusActive, remindedBefore); err != nil {
		return nil, fmt.Errorf("list overdue submissions: %w", err)
	}
	return overdue, nil
}

// MarkReminded stamps the last reminder time on a submission.
func (r *SubmissionRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE submissions SET last_reminded_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark submission reminded: %w", err)
	}
	return nil
}

// CountOverdue returns the number of overdue pending submissions.
func (r *SubmissionRepository) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	query := strings.Join([]string{
		`SELECT COUNT(*)`,
		submissionDetailJoins,
		`WHERE s.status = $1 AND s.due_at < $2 AND asg.status = $3`,
	}, "\n")
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.SubmissionStatusPending, now, models.AssignmentStatusActive); err != nil {
		return 0, fmt.Errorf("count overdue submissions: %w", err)
	}
	return count, nil
}
