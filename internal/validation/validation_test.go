package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

type registerRequest struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	CurrentPassword string `validate:"required"`
}

func TestFromBindingErrorCollectsAllFields(t *testing.T) {
	v := validator.New()

	err := v.Struct(registerRequest{Email: "not-an-email", Password: "short"})

	fieldErrors := FromBindingError(err)

	if len(fieldErrors) != 4 {
		t.Fatalf("got %d field errors, want 4: %v", len(fieldErrors), fieldErrors)
	}

	byField := make(map[string]string, len(fieldErrors))

	for _, fe := range fieldErrors {
		byField[fe.Field] = fe.Message
	}

	if byField["name"] != "This field is required" {
		t.Errorf("name message = %q", byField["name"])
	}

	if byField["email"] != "Must be a valid email address" {
		t.Errorf("email message = %q", byField["email"])
	}

	if byField["password"] != "Must be at least 8 characters" {
		t.Errorf("password message = %q", byField["password"])
	}

	if _, ok := byField["current_password"]; !ok {
		t.Errorf("expected snake_case field name current_password, got %v", byField)
	}
}

func TestFromBindingErrorNonValidatorError(t *testing.T) {
	fieldErrors := FromBindingError(errors.New("unexpected EOF"))

	if len(fieldErrors) != 1 {
		t.Fatalf("got %d field errors, want 1", len(fieldErrors))
	}

	if fieldErrors[0].Field != "body" {
		t.Errorf("field = %q, want body", fieldErrors[0].Field)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Name":            "name",
		"CurrentPassword": "current_password",
		"DueDate":         "due_date",
		"already_snake":   "already_snake",
	}

	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
