package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateChangeRequest  = "CREATE_CHANGE_REQUEST"
	ActionApproveChangeRequest = "APPROVE_CHANGE_REQUEST"
	ActionRejectChangeRequest  = "REJECT_CHANGE_REQUEST"
	ActionApplyPersonalInfo    = "APPLY_PERSONAL_INFO"
	ActionActivateDocument     = "ACTIVATE_DOCUMENT"
)

// AuditLog tracks Who, What, and When for workflow events. Rows are append-only.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
