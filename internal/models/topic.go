package models

import (
	"time"

	"github.com/lib/pq"
)

// TopicStatus represents the lifecycle of a project topic.
type TopicStatus string

// Possible topic statuses.
const (
	TopicStatusDraft    TopicStatus = "DRAFT"
	TopicStatusActive   TopicStatus = "ACTIVE"
	TopicStatusArchived TopicStatus = "ARCHIVED"
)

// Topic is a final-year-project topic owned by one supervisor. Only ACTIVE
// topics accept student applications.
type Topic struct {
	ID           string         `db:"id" json:"id"`
	SupervisorID string         `db:"supervisor_id" json:"supervisor_id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	Capacity     int            `db:"capacity" json:"capacity"`
	Status       TopicStatus    `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// TopicDetail enriches Topic with supervisor info.
type TopicDetail struct {
	Topic
	SupervisorName  string `db:"supervisor_name" json:"supervisor_name"`
	SupervisorEmail string `db:"supervisor_email" json:"supervisor_email"`
}

// TopicFilter provides filters for listing topics.
type TopicFilter struct {
	SupervisorID string
	Status       TopicStatus
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
