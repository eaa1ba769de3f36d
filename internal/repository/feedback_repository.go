package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unifyp/fyp-api/internal/models"
)

// FeedbackRepository handles persistence of submission feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create persists a new feedback record.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO feedback (id, submission_id, supervisor_id, comment, grade, created_at)
        VALUES (:id, :submission_id, :supervisor_id, :comment, :grade, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// ListBySubmission returns all feedback for a submission, oldest first.
func (r *FeedbackRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.FeedbackDetail, error) {
	const query = `SELECT f.id, f.submission_id, f.supervisor_id, f.comment, f.grade, f.created_at,
        sv.full_name AS supervisor_name
        FROM feedback f
        LEFT JOIN users sv ON sv.id = f.supervisor_id
        WHERE f.submission_id = $1
        ORDER BY f.created_at ASC`
	var feedback []models.FeedbackDetail
	if err := r.db.SelectContext(ctx, &feedback, query, submissionID); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return feedback, nil
}
