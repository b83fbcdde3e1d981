// Package validation provides request validation using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/estudio-ia/studio-server/internal/errors"
)

var resolutionPattern = regexp.MustCompile(`^\d+x\d+$`)

// IsResolution reports whether s has the WIDTHxHEIGHT form, e.g. 1920x1080.
func IsResolution(s string) bool {
	return resolutionPattern.MatchString(s)
}

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
// Besides the built-in tags it understands "resolution" (WIDTHxHEIGHT).
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	//nolint:errcheck // Registration only fails on an empty tag name.
	_ = v.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		return IsResolution(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

//nolint:gocyclo // Switch statement covering validation tags is intentionally exhaustive.
func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		switch e.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", e.Param())
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		switch e.Kind() {
		case reflect.String:
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("must not exceed %s items", e.Param())
		}
		return "must not exceed " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "resolution":
		return "must look like WIDTHxHEIGHT"
	case "dive":
		return "contains an invalid item"
	default:
		return "is invalid"
	}
}
