package utils

import (
	"fmt"
	"reflect"
	"strings"

	"calctree/domain/core/valueobjects"
	pkgerrors "calctree/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their json name so messages match the wire format.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("opkind", func(fl validator.FieldLevel) bool {
		_, err := valueobjects.ParseOperationKind(fl.Field().String())
		return err == nil
	})

	return v
}

// ValidateStruct validates a struct based on its validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns validator output into ValidationErrors
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Validation(err.Error())
	}

	out := pkgerrors.NewValidationErrors()
	for _, e := range validationErrors {
		out.Add(e.Field(), formatFieldError(e))
	}
	return out
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("Either %s or %s must be provided", field, lowerFirst(e.Param()))
	case "required_without_all":
		return fmt.Sprintf("At least one of %s or %s must be provided", field, lowerFirst(e.Param()))
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "opkind":
		return fmt.Sprintf("%s must be one of: ADD SUBTRACT MULTIPLY DIVIDE", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
