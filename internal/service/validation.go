package service

import (
	"errors"
	"reflect"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	minEmployeeAge = 16
	maxEmployeeAge = 100
)

var phonePattern = regexp.MustCompile(`^0[0-9]{9}$`)

// personalInfoRules carries the format rule of every editable field.
type personalInfoRules struct {
	Phone                        *string `field:"phone" validate:"omitempty,phone"`
	Address                      *string `field:"address" validate:"omitempty,max=255"`
	BirthDate                    *string `field:"birth_date" validate:"omitempty,birthdate"`
	EmergencyContactName         *string `field:"emergency_contact_name" validate:"omitempty,max=100"`
	EmergencyContactPhone        *string `field:"emergency_contact_phone" validate:"omitempty,phone"`
	EmergencyContactRelationship *string `field:"emergency_contact_relationship" validate:"omitempty,max=50"`
}

type fieldValidator struct {
	validate *validator.Validate
}

func newFieldValidator(now func() time.Time) *fieldValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("birthdate", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(birthDateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		age := ageOn(d, now())
		return age >= minEmployeeAge && age <= maxEmployeeAge
	})
	return &fieldValidator{validate: v}
}

// Validate checks the non-empty values of p and reports the first offending field.
func (f *fieldValidator) Validate(p PersonalInfo) error {
	rules := personalInfoRules{
		Phone:                        p.Phone,
		Address:                      p.Address,
		BirthDate:                    p.BirthDate,
		EmergencyContactName:         p.EmergencyContactName,
		EmergencyContactPhone:        p.EmergencyContactPhone,
		EmergencyContactRelationship: p.EmergencyContactRelationship,
	}
	err := f.validate.Struct(rules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: ruleMessage(fe)}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "phone":
		return "must be 10 digits starting with 0"
	case "birthdate":
		return "must be a YYYY-MM-DD date giving an age between 16 and 100"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}

// ageOn returns the number of completed years between birth and at.
func ageOn(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}
