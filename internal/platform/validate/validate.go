// Package validate wraps go-playground/validator so request payloads fail
// with an apperr validation error listing every offending field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// Validator validates request structs.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that reports json field names and knows two
// custom rules: "password" (at least one letter and one digit) and
// "notblank" (something left after whitespace and control characters).
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("password", isPassword)
	_ = v.RegisterValidation("notblank", isNotBlank)
	return &Validator{v: v}
}

func isPassword(fl validator.FieldLevel) bool {
	var letter, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// isNotBlank rejects strings that CleanString would reduce to "".
func isNotBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return validators.NotBlank(fl)
	}
	return strings.IndexFunc(f.String(), func(r rune) bool {
		return !unicode.IsSpace(r) && !unicode.IsControl(r)
	}) >= 0
}

// Struct validates s and converts failures to *apperr.Error.
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: message(fe)})
		names = append(names, fe.Field())
	}
	return apperr.Validation("invalid fields: "+strings.Join(names, ", "), fields...)
}

// Var validates a single value against tag and reports failures under field.
func (val *Validator) Var(field string, value interface{}, tag string) error {
	err := val.v.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(err.Error())
	}
	return apperr.Validation("invalid fields: "+field, apperr.FieldError{Field: field, Message: message(verrs[0])})
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "notblank":
		return "must not be blank"
	case "password":
		return "must contain at least one letter and one digit"
	case "datetime":
		return fmt.Sprintf("must be a date in %s format", fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
