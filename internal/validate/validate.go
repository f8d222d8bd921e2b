// Package validate checks form input before any network call. A failed check
// never reaches the API client; it surfaces as field-level errors. These
// checks are a UX shortcut only: the server re-validates everything and
// stays authoritative.
package validate

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 6
	minNameLength     = 2
)

// FieldError describes a validation failure for a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// Errors collects field errors for one form submission.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// OrNil returns e as an error, or nil when no field failed.
func (e Errors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Login validates a login form.
func Login(email, password string) error {
	var errs Errors
	if !validEmail(email) {
		errs = append(errs, FieldError{Field: "email", Message: "please enter a valid email address"})
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}
	return errs.OrNil()
}

// Register validates a registration form.
func Register(name, email, password, confirm string) error {
	var errs Errors
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLength {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at least 2 characters"})
	}
	if !validEmail(email) {
		errs = append(errs, FieldError{Field: "email", Message: "please enter a valid email address"})
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}
	if password != confirm {
		errs = append(errs, FieldError{Field: "confirmPassword", Message: "passwords don't match"})
	}
	return errs.OrNil()
}

// NewTrade validates a trade form: both sides must name at least one card.
func NewTrade(offering, receiving []string) error {
	var errs Errors
	if len(offering) == 0 {
		errs = append(errs, FieldError{Field: "offeringCards", Message: "please select at least one card to offer"})
	}
	if len(receiving) == 0 {
		errs = append(errs, FieldError{Field: "receivingCards", Message: "please select at least one card you want"})
	}
	return errs.OrNil()
}
