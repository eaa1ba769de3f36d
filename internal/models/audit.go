package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin               = "LOGIN"
	AuditActionLogout              = "LOGOUT"
	AuditActionPasswordChange      = "PASSWORD_CHANGE"
	AuditActionTopicCreate         = "TOPIC_CREATE"
	AuditActionTopicUpdate         = "TOPIC_UPDATE"
	AuditActionTopicPublish        = "TOPIC_PUBLISH"
	AuditActionTopicArchive        = "TOPIC_ARCHIVE"
	AuditActionApplicationApply    = "APPLICATION_APPLY"
	AuditActionApplicationWithdraw = "APPLICATION_WITHDRAW"
	AuditActionApplicationApprove  = "APPLICATION_APPROVE"
	AuditActionApplicationReject   = "APPLICATION_REJECT"
	AuditActionApplicationAutoRej  = "APPLICATION_AUTO_REJECT"
	AuditActionAssignmentComplete  = "ASSIGNMENT_COMPLETE"
	AuditActionAssignmentReassign  = "ASSIGNMENT_REASSIGN"
	AuditActionSubmissionUpload    = "SUBMISSION_UPLOAD"
	AuditActionFeedbackCreate      = "FEEDBACK_CREATE"
)

// AuditLog represents an immutable audit trail record. Entries are only ever
// inserted; created_at is assigned at write time.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter provides filters for listing audit entries.
type AuditFilter struct {
	UserID    string
	Action    string
	Resource  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortOrder string
}
