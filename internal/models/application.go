package models

import "time"

// ApplicationStatus represents the lifecycle of a topic application.
type ApplicationStatus string

// Possible application statuses.
const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// AutoRejectNotes is written to sibling applications rejected as part of an
// approval cascade.
const AutoRejectNotes = "Student assigned to another topic"

// Application is a student's ranked bid for one topic. A student holds at
// most one application per topic and a bounded number of pending ones.
type Application struct {
	ID              string            `db:"id" json:"id"`
	StudentID       string            `db:"student_id" json:"student_id"`
	TopicID         string            `db:"topic_id" json:"topic_id"`
	PreferenceRank  int               `db:"preference_rank" json:"preference_rank"`
	Status          ApplicationStatus `db:"status" json:"status"`
	SupervisorNotes string            `db:"supervisor_notes" json:"supervisor_notes"`
	AppliedAt       time.Time         `db:"applied_at" json:"applied_at"`
	DecidedAt       *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
}

// ApplicationDetail enriches Application with student and topic info.
type ApplicationDetail struct {
	Application
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	TopicTitle   string `db:"topic_title" json:"topic_title"`
	SupervisorID string `db:"topic_supervisor_id" json:"supervisor_id"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	StudentID    string
	TopicID      string
	SupervisorID string
	Status       ApplicationStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ApprovalResult summarises the effect of approving one application.
type ApprovalResult struct {
	Application  *ApplicationDetail `json:"application"`
	Assignment   *Assignment        `json:"assignment"`
	AutoRejected []Application      `json:"auto_rejected"`
}
