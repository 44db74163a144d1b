package service

import (
	"strings"
	"time"

	"backoffice/internal/model"
)

const birthDateLayout = "2006-01-02"

// PersonalInfo is the editable slice of an employee record. Nil means empty.
type PersonalInfo struct {
	Phone                        *string
	Address                      *string
	BirthDate                    *string
	EmergencyContactName         *string
	EmergencyContactPhone        *string
	EmergencyContactRelationship *string
}

// PersonalInfoOf extracts the editable fields of e, with the birth date rendered as YYYY-MM-DD.
func PersonalInfoOf(e *model.Employee) PersonalInfo {
	info := PersonalInfo{
		Phone:                        normalize(e.Phone),
		Address:                      normalize(e.Address),
		EmergencyContactName:         normalize(e.EmergencyContactName),
		EmergencyContactPhone:        normalize(e.EmergencyContactPhone),
		EmergencyContactRelationship: normalize(e.EmergencyContactRelationship),
	}
	if e.BirthDate != nil {
		s := e.BirthDate.Format(birthDateLayout)
		info.BirthDate = &s
	}
	return info
}

// Get returns the value stored under the editable field name.
func (p PersonalInfo) Get(field string) *string {
	switch field {
	case model.FieldPhone:
		return p.Phone
	case model.FieldAddress:
		return p.Address
	case model.FieldBirthDate:
		return p.BirthDate
	case model.FieldEmergencyContactName:
		return p.EmergencyContactName
	case model.FieldEmergencyContactPhone:
		return p.EmergencyContactPhone
	case model.FieldEmergencyContactRelationship:
		return p.EmergencyContactRelationship
	}
	return nil
}

func (p *PersonalInfo) set(field string, v *string) {
	switch field {
	case model.FieldPhone:
		p.Phone = v
	case model.FieldAddress:
		p.Address = v
	case model.FieldBirthDate:
		p.BirthDate = v
	case model.FieldEmergencyContactName:
		p.EmergencyContactName = v
	case model.FieldEmergencyContactPhone:
		p.EmergencyContactPhone = v
	case model.FieldEmergencyContactRelationship:
		p.EmergencyContactRelationship = v
	}
}

// Overlay returns a copy of p with the supplied fields replaced. Keys outside the
// editable allow-list are rejected; a null or blank value proposes clearing the field.
func (p PersonalInfo) Overlay(fields map[string]*string) (PersonalInfo, error) {
	out := p
	for name, v := range fields {
		if !model.IsEditableField(name) {
			return PersonalInfo{}, invalid(name, "field is not editable")
		}
		out.set(name, normalize(v))
	}
	return out, nil
}

// BuildChanges returns the fields whose proposed value differs from the current one.
// The result is empty, never nil, when nothing differs.
func BuildChanges(current, proposed PersonalInfo) model.FieldChanges {
	changes := make(model.FieldChanges)
	for _, field := range model.EditableFields {
		oldV := normalize(current.Get(field))
		newV := normalize(proposed.Get(field))
		if equalValues(oldV, newV) {
			continue
		}
		changes[field] = model.FieldChange{Old: oldV, New: newV}
	}
	return changes
}

func normalize(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// columnValues converts a diff into the employees column assignments written on approval.
func columnValues(changes model.FieldChanges) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(changes))
	for field, change := range changes {
		if !model.IsEditableField(field) {
			return nil, invalid(field, "field is not editable")
		}
		if change.New == nil {
			values[field] = nil
			continue
		}
		if field == model.FieldBirthDate {
			d, err := time.Parse(birthDateLayout, *change.New)
			if err != nil {
				return nil, invalid(field, "must be a date in YYYY-MM-DD format")
			}
			values[field] = d
			continue
		}
		values[field] = *change.New
	}
	return values, nil
}
