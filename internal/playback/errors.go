package playback

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDanglingTarget matches any *DanglingTargetError via errors.Is.
	ErrDanglingTarget = errors.New("dangling target")
	// ErrUnknownChoice matches any *UnknownChoiceError via errors.Is.
	ErrUnknownChoice = errors.New("unknown choice")
	// ErrInvalidPhase matches any *InvalidPhaseError via errors.Is.
	ErrInvalidPhase = errors.New("operation not valid in current phase")
	// ErrInvalidInput matches any *InvalidInputError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")
)

// DanglingTargetError is returned when a transition names a node that does not
// exist. The session is left exactly as it was before the call.
type DanglingTargetError struct {
	NodeID   string
	ChoiceID string
	TargetID string
}

func (e *DanglingTargetError) Error() string {
	if e.ChoiceID == "" {
		return fmt.Sprintf("dangling target: node %q does not exist", e.TargetID)
	}
	return fmt.Sprintf("dangling target: choice %q on node %q points to missing node %q", e.ChoiceID, e.NodeID, e.TargetID)
}

func (e *DanglingTargetError) Is(target error) bool {
	return target == ErrDanglingTarget
}

// UnknownChoiceError is returned when the caller selects a choice that is not
// currently offered, typically from a stale UI. No state changes.
type UnknownChoiceError struct {
	ChoiceID string
	Offered  []string
}

func (e *UnknownChoiceError) Error() string {
	if len(e.Offered) == 0 {
		return fmt.Sprintf("unknown choice %q: no choices are offered", e.ChoiceID)
	}
	return fmt.Sprintf("unknown choice %q: offered [%s]", e.ChoiceID, strings.Join(e.Offered, ", "))
}

func (e *UnknownChoiceError) Is(target error) bool {
	return target == ErrUnknownChoice
}

// InvalidPhaseError is returned when an operation is issued in a phase that
// does not accept it, e.g. a video-ended report while awaiting a choice.
type InvalidPhaseError struct {
	Op     string
	Phase  Phase
	NodeID string
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("%s not valid in phase %s at node %q", e.Op, e.Phase, e.NodeID)
}

func (e *InvalidPhaseError) Is(target error) bool {
	return target == ErrInvalidPhase
}

// InvalidInputError is returned for a malformed input: an unknown input type
// or a playback time that is negative or not finite. No state changes.
type InvalidInputError struct {
	Kind   InputKind
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s input: %s", e.Kind, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IsRecoverable reports whether err leaves the session usable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrDanglingTarget) || errors.Is(err, ErrUnknownChoice) ||
		errors.Is(err, ErrInvalidPhase) || errors.Is(err, ErrInvalidInput)
}
