package services

import (
	"errors"
	"strings"

	"github.com/cppla/fallenleaves/ai"
	"github.com/cppla/fallenleaves/store"
)

var (
	// ErrNotFound is returned when a habit or insight does not exist or belongs to another user.
	ErrNotFound = store.ErrNotFound
	// ErrDuplicateHabit is returned when a user already tracks a habit of the requested kind.
	ErrDuplicateHabit = errors.New("habit already exists for this user")
	// ErrInsightParse is returned when a completion lacks a usable GOAL or TITLE token.
	ErrInsightParse = errors.New("insight response could not be parsed")
	// ErrGenerationFailed wraps completion service failures other than a missing key.
	ErrGenerationFailed = errors.New("insight generation failed")
	// ErrMissingAPIKey means generation is not configured.
	ErrMissingAPIKey = ai.ErrMissingAPIKey
	// ErrActiveInsightExists is returned when regeneration is requested for a habit that
	// still has an active insight.
	ErrActiveInsightExists = errors.New("habit already has an active insight")
	// ErrGenerationInProgress is returned when another regeneration for the habit holds the lock.
	ErrGenerationInProgress = errors.New("insight generation already in progress")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any write when input is rejected.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add records a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Err returns e when it holds errors, else nil.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
