package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate *validator.Validate

// Init initializes the validator
func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so errors line up with request bodies.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	mustRegister("notblank", validators.NotBlank)
	mustRegister("letterordigit", isLetterOrDigit)
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validator: register %s: %v", tag, err))
	}
}

// isLetterOrDigit accepts strings made only of Unicode letters and digits.
func isLetterOrDigit(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ValidateStruct validates a struct
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// FormatValidationError formats validation errors into a readable format
func FormatValidationError(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			errs = append(errs, ValidationError{
				Field:   fieldError.Field(),
				Tag:     fieldError.Tag(),
				Message: getErrorMessage(fieldError),
			})
		}
	}

	return errs
}

// FieldErrors groups validation messages by field name.
func FieldErrors(err error) map[string][]string {
	fields := make(map[string][]string)
	for _, e := range FormatValidationError(err) {
		fields[e.Field] = append(fields[e.Field], e.Message)
	}
	return fields
}

// getErrorMessage returns a human-readable error message for validation errors
func getErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "letterordigit":
		return fmt.Sprintf("%s must consist only of letters and digits", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
