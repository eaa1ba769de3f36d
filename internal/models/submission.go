package models

import "time"

// SubmissionPhase identifies the deliverable stage of a submission.
type SubmissionPhase string

// Submission phases in chronological order.
const (
	PhaseProposal SubmissionPhase = "PROPOSAL"
	PhaseProgress SubmissionPhase = "PROGRESS"
	PhaseFinal    SubmissionPhase = "FINAL"
)

// SubmissionStatus represents the state of a phased deliverable.
type SubmissionStatus string

// Possible submission statuses.
const (
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusLate      SubmissionStatus = "LATE"
)

// Submission is one phased document deliverable for an assignment. At most
// one submission exists per (assignment, phase).
type Submission struct {
	ID             string           `db:"id" json:"id"`
	AssignmentID   string           `db:"assignment_id" json:"assignment_id"`
	Phase          SubmissionPhase  `db:"phase" json:"phase"`
	FileName       string           `db:"file_name" json:"file_name"`
	FilePath       string           `db:"file_path" json:"-"`
	FileSize       int64            `db:"file_size" json:"file_size"`
	MIMEType       string           `db:"mime_type" json:"mime_type"`
	DueAt          time.Time        `db:"due_at" json:"due_at"`
	SubmittedAt    *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	Status         SubmissionStatus `db:"status" json:"status"`
	LastRemindedAt *time.Time       `db:"last_reminded_at" json:"last_reminded_at,omitempty"`
}

// SubmissionDetail enriches Submission with assignment context.
type SubmissionDetail struct {
	Submission
	StudentID    string `db:"student_id" json:"student_id"`
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	TopicTitle   string `db:"topic_title" json:"topic_title"`
	SupervisorID string `db:"supervisor_id" json:"supervisor_id"`
}

// SubmissionFilter provides filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID string
	Phase        SubmissionPhase
	Status       SubmissionStatus
	Page         int
	PageSize     int
}
