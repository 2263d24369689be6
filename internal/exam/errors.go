package exam

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCode         = errors.New("test code must be a number")
	ErrTestNotFound        = errors.New("test not found")
	ErrTestClosed          = errors.New("test is closed")
	ErrSessionExists       = errors.New("session already started")
	ErrSessionNotFound     = errors.New("session not found")
	ErrAlreadyAnswered     = errors.New("answer already submitted")
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrTimeUp              = errors.New("answer window has expired")
	ErrMalformedAnswer     = errors.New("malformed answer message")
	ErrEmptyAnswerKey      = errors.New("answer key has no letters")
	ErrUnsupportedFile     = errors.New("unsupported question file")
	ErrNotOwner            = errors.New("only the owner can manage this test")
	ErrInvalidDuration     = errors.New("duration must not be negative")
	ErrResultsNotPublished = errors.New("results are published when the test is closed")
)

// CountMismatchError is returned when a submission has fewer answers than the
// test has questions. The session stays open.
type CountMismatchError struct {
	Expected int
	Received int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("expected %d answers, received %d", e.Expected, e.Received)
}
