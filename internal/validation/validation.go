// Package validation turns request problems into field-level error lists so
// a client can show every problem at once instead of the first one found.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FromBindingError translates the error gin's JSON binding returns into a
// list of field errors. Malformed JSON collapses to a single body-level
// entry; validator errors are collected exhaustively.
func FromBindingError(err error) []FieldError {
	var verrs validator.ValidationErrors

	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: "Invalid request body"}}
	}

	fieldErrors := make([]FieldError, 0, len(verrs))

	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   snakeCase(fe.Field()),
			Message: message(fe),
		})
	}

	return fieldErrors
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "dive":
		return "Contains an invalid element"
	default:
		return fmt.Sprintf("Failed validation on %s", fe.Tag())
	}
}

func snakeCase(field string) string {
	var b strings.Builder

	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}
