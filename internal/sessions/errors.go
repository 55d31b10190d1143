package sessions

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrCapacity is returned when the session limit is reached.
	ErrCapacity = errors.New("session limit reached")
)

// NotFoundError reports an unknown session or scenario id.
type NotFoundError struct {
	Kind string // "session" or "scenario"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateScenarioError is returned when two catalog sources share an id.
type DuplicateScenarioError struct {
	ID      string
	Sources []string
}

func (e *DuplicateScenarioError) Error() string {
	return fmt.Sprintf("scenario %q defined more than once: %v", e.ID, e.Sources)
}
