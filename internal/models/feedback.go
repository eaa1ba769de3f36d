package models

import "time"

// Feedback is a supervisor's comment (and optional grade) on a submission.
type Feedback struct {
	ID           string    `db:"id" json:"id"`
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	SupervisorID string    `db:"supervisor_id" json:"supervisor_id"`
	Comment      string    `db:"comment" json:"comment"`
	Grade        *float64  `db:"grade" json:"grade,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// FeedbackDetail enriches Feedback with the author's name.
type FeedbackDetail struct {
	Feedback
	SupervisorName string `db:"supervisor_name" json:"supervisor_name"`
}
