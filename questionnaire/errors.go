package questionnaire

import (
	"errors"
	"strings"
)

var (
	// ErrPreconditionFailed is returned by Finalize when the response has not
	// reached the completion threshold.
	ErrPreconditionFailed = errors.New("questionnaire: completion below finalize threshold")

	// ErrFinalized is returned when a respondent tries to change a response
	// that can no longer be edited.
	ErrFinalized = errors.New("questionnaire: response is finalized")

	ErrInvalidTransition = errors.New("questionnaire: invalid status transition")
)

// ValidationError reports everything wrong with an authored structure, or
// with a batch of answers, at once.
type ValidationError struct {
	// Subject is what was validated; empty means the structure.
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	subject := e.Subject
	if subject == "" {
		subject = "structure"
	}
	return "questionnaire: invalid " + subject + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(problem string) {
	e.Problems = append(e.Problems, problem)
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
