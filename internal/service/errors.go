package service

import "errors"

var (
	ErrDuplicateEvent = errors.New("event already exists")
	ErrEventNotFound  = errors.New("event not found")
	ErrInvalidTiming  = errors.New("event must end after it starts")
	// ErrStaleLoad rejects a routine response that a newer load superseded.
	ErrStaleLoad = errors.New("stale routine load")
	ErrNoRoutine = errors.New("no routine open")

	ErrActivityNotFound = errors.New("activity not found")
	ErrRoutineNotFound  = errors.New("routine not found")
)

// ValidationError is raised before any network call when user input is
// rejected locally.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrSignedOut means the user has no usable token. The backend rejected it,
// it expired, or the user never signed in.
var ErrSignedOut = errors.New("signed out")
