package scenario

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("scenario validation failed")
	// ErrAmbiguousEntry matches any *AmbiguousEntryError via errors.Is.
	ErrAmbiguousEntry = errors.New("ambiguous entry node")
)

// Issue is a single validation finding.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError reports a malformed scenario. It is fatal to session start.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid scenario: " + e.Issues[0].String()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.String())
	}
	return fmt.Sprintf("invalid scenario (%d issues): %s", len(e.Issues), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AmbiguousEntryError is returned when no explicit start node is set and the
// graph does not have exactly one node without incoming references.
type AmbiguousEntryError struct {
	Candidates []string
}

func (e *AmbiguousEntryError) Error() string {
	if len(e.Candidates) == 0 {
		return "ambiguous entry: no node without incoming references"
	}
	return fmt.Sprintf("ambiguous entry: %d candidate nodes (%s)", len(e.Candidates), strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousEntryError) Is(target error) bool {
	return target == ErrAmbiguousEntry
}

