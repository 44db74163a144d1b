package model

import (
	"time"

	"github.com/google/uuid"
)

// Employee is the canonical HR record. The approval workflow only writes it on approval.
type Employee struct {
	ID                           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                       *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	EmployeeCode                 string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"employee_code"`
	FullName                     string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Department                   string     `gorm:"type:varchar(100)" json:"department"`
	Position                     string     `gorm:"type:varchar(100)" json:"position"`
	Phone                        *string    `gorm:"type:varchar(20)" json:"phone"`
	Address                      *string    `gorm:"type:varchar(255)" json:"address"`
	BirthDate                    *time.Time `gorm:"type:date" json:"birth_date"`
	EmergencyContactName         *string    `gorm:"type:varchar(100)" json:"emergency_contact_name"`
	EmergencyContactPhone        *string    `gorm:"type:varchar(20)" json:"emergency_contact_phone"`
	EmergencyContactRelationship *string    `gorm:"type:varchar(50)" json:"emergency_contact_relationship"`
	CreatedAt                    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmployeeDocument is a document made visible on the employee's profile after approval.
type EmployeeDocument struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EmployeeID      uuid.UUID `gorm:"type:uuid;not null;index:idx_employee_documents_lookup" json:"employee_id"`
	ChangeRequestID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"change_request_id"`
	DocumentType    string    `gorm:"type:varchar(30);not null;index:idx_employee_documents_lookup" json:"document_type"`
	FileName        string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FilePath        string    `gorm:"type:text;not null" json:"file_path"`
	FileSize        int64     `json:"file_size"`
	MimeType        string    `gorm:"type:varchar(100)" json:"mime_type"`
	Notes           string    `gorm:"type:text" json:"notes"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
