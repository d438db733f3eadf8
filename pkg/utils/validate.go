package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RootPath is the path reported for failures that belong to no single field
const RootPath = "root"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is one failed rule, addressed by its JSON path
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError is a caller-side input fault
type ValidationError struct {
	Details []FieldError
}

func NewValidationError(details ...FieldError) *ValidationError {
	return &ValidationError{Details: details}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("%s: %s", d.Path, d.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err to a *ValidationError
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// Refiner is implemented by requests with rules spanning several fields.
// Refine only runs once every field rule has passed.
type Refiner interface {
	Refine() []FieldError
}

// Validate runs the struct's validate tags and then its Refine rules
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToFields(err)
	}

	if r, ok := any(value).(Refiner); ok {
		if details := r.Refine(); len(details) > 0 {
			return value, NewValidationError(details...)
		}
	}

	return value, nil
}

// ValidationErrorToFields converts validator errors into field errors keyed by JSON name
func ValidationErrorToFields(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Path:    fieldPath(fe.Namespace()),
			Message: ruleMessage(fe),
		})
	}
	return NewValidationError(details...)
}

// fieldPath drops the struct name from a validator namespace ("Request.email" -> "email")
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok && rest != "" {
		return rest
	}
	return RootPath
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "Invalid email format"
	case "required":
		return "Required"
	case "min":
		return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("String must contain at most %s character(s)", fe.Param())
	default:
		return fmt.Sprintf("Failed '%s' validation", fe.Tag())
	}
}
