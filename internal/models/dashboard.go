package models

import "time"

// DashboardSummary aggregates platform-wide counters for the admin view.
type DashboardSummary struct {
	Students            int            `json:"students"`
	Supervisors         int            `json:"supervisors"`
	TopicsByStatus      map[string]int `json:"topics_by_status"`
	ApplicationsByState map[string]int `json:"applications_by_status"`
	ActiveAssignments   int            `json:"active_assignments"`
	OverdueSubmissions  int            `json:"overdue_submissions"`
	GeneratedAt         time.Time      `json:"generated_at"`
}
