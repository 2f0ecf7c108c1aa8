package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionTimetableGenerate = "TIMETABLE_GENERATE"
	AuditActionPlanApply         = "PLAN_APPLY"
	AuditActionSessionCreate     = "SESSION_CREATE"
	AuditActionSettingUpdate     = "SETTING_UPDATE"
	AuditActionLeaveApprove      = "LEAVE_APPROVE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
