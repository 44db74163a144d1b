package model

import (
	"time"

	"github.com/google/uuid"
)

// ChangeRequest kinds
const (
	ChangeKindPersonalInfo = "personal_info"
	ChangeKindDocument     = "document"
)

// ChangeRequest status values. Pending is the only non-terminal state.
const (
	ChangeStatusPending  = "pending"
	ChangeStatusApproved = "approved"
	ChangeStatusRejected = "rejected"
)

// Editable personal-info fields. Each name is also the employees column it maps to.
const (
	FieldPhone                        = "phone"
	FieldAddress                      = "address"
	FieldBirthDate                    = "birth_date"
	FieldEmergencyContactName         = "emergency_contact_name"
	FieldEmergencyContactPhone        = "emergency_contact_phone"
	FieldEmergencyContactRelationship = "emergency_contact_relationship"
)

// EditableFields lists the only field names a personal_info request may touch, in display order.
var EditableFields = []string{
	FieldPhone,
	FieldAddress,
	FieldBirthDate,
	FieldEmergencyContactName,
	FieldEmergencyContactPhone,
	FieldEmergencyContactRelationship,
}

// IsEditableField reports whether name belongs to the editable allow-list.
func IsEditableField(name string) bool {
	for _, f := range EditableFields {
		if f == name {
			return true
		}
	}
	return false
}

// Document types accepted by document intake
const (
	DocumentTypeIDCard      = "id_card"
	DocumentTypePassport    = "passport"
	DocumentTypeDegree      = "degree"
	DocumentTypeCertificate = "certificate"
	DocumentTypeContract    = "contract"
	DocumentTypeHealthCheck = "health_check"
	DocumentTypeOther       = "other"
)

var DocumentTypes = []string{
	DocumentTypeIDCard,
	DocumentTypePassport,
	DocumentTypeDegree,
	DocumentTypeCertificate,
	DocumentTypeContract,
	DocumentTypeHealthCheck,
	DocumentTypeOther,
}

func IsDocumentType(t string) bool {
	for _, d := range DocumentTypes {
		if d == t {
			return true
		}
	}
	return false
}

// FieldChange is one entry of a personal_info diff. A nil side means the value is empty.
type FieldChange struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// FieldChanges maps an editable field name to its old/new pair.
type FieldChanges map[string]FieldChange

// DocumentPayload holds the document-kind fields of a ChangeRequest.
type DocumentPayload struct {
	Type     string `gorm:"type:varchar(30)" json:"document_type"`
	FileName string `gorm:"type:varchar(255)" json:"file_name"`
	FilePath string `gorm:"type:text" json:"file_path"`
	FileSize int64  `json:"file_size"`
	MimeType string `gorm:"type:varchar(100)" json:"mime_type"`
	Notes    string `gorm:"type:text" json:"notes,omitempty"`
}

// ChangeRequest is a proposed edit to an employee record awaiting an HR decision.
// Once decided it is never written again and serves as the audit record of the decision.
type ChangeRequest struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubjectID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_change_requests_one_pending,where:status = 'pending'" json:"subject_id"`
	Subject      *Employee       `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Kind         string          `gorm:"type:varchar(20);not null;index" json:"kind"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Changes      FieldChanges    `gorm:"type:jsonb;serializer:json" json:"changes,omitempty"`
	Document     DocumentPayload `gorm:"embedded;embeddedPrefix:document_" json:"document"`
	SubmittedAt  time.Time       `gorm:"not null;index" json:"submitted_at"`
	DecidedAt    *time.Time      `json:"decided_at"`
	DecidedBy    *uuid.UUID      `gorm:"type:uuid" json:"decided_by"`
	Decider      *User           `gorm:"foreignKey:DecidedBy" json:"decider,omitempty"`
	DecisionNote string          `gorm:"type:text" json:"decision_note"`
}

// IsPending reports whether the request can still be decided.
func (c *ChangeRequest) IsPending() bool {
	return c.Status == ChangeStatusPending
}
