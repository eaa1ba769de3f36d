package models

import "time"

// AssignmentStatus represents the lifecycle of a project assignment.
type AssignmentStatus string

// Possible assignment statuses. A student has at most one ACTIVE assignment,
// enforced by a partial unique index on assignments(student_id).
const (
	AssignmentStatusActive    AssignmentStatus = "ACTIVE"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
	AssignmentStatusChanged   AssignmentStatus = "CHANGED"
)

// Assignment binds one student to one topic under one supervisor. Created
// only by the approval workflow.
type Assignment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	TopicID      string           `db:"topic_id" json:"topic_id"`
	SupervisorID string           `db:"supervisor_id" json:"supervisor_id"`
	Status       AssignmentStatus `db:"status" json:"status"`
	ReplacedBy   *string          `db:"replaced_by" json:"replaced_by,omitempty"`
	AssignedAt   time.Time        `db:"assigned_at" json:"assigned_at"`
	CompletedAt  *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// AssignmentDetail enriches Assignment with descriptive fields.
type AssignmentDetail struct {
	Assignment
	StudentName    string `db:"student_name" json:"student_name"`
	TopicTitle     string `db:"topic_title" json:"topic_title"`
	SupervisorName string `db:"supervisor_name" json:"supervisor_name"`
}

// AssignmentFilter provides filters for listing assignments.
type AssignmentFilter struct {
	StudentID    string
	SupervisorID string
	TopicID      string
	Status       AssignmentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
