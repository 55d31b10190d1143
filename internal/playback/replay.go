package playback

import (
	"fmt"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// InputKind names a caller-issued playback event.
type InputKind string

const (
	InputTime   InputKind = "time"
	InputEnded  InputKind = "ended"
	InputChoice InputKind = "choice"
	InputJump   InputKind = "jump"
)

// Input is a recorded playback event. A session is fully determined by its
// scenario, options and the ordered inputs applied to it.
type Input struct {
	Kind     InputKind `json:"type"`
	Elapsed  float64   `json:"elapsed,omitempty"`
	ChoiceID string    `json:"choice_id,omitempty"`
	NodeID   string    `json:"node_id,omitempty"`
}

// Apply dispatches in to the matching session operation.
func (s *Session) Apply(in Input) (Frame, error) {
	switch in.Kind {
	case InputTime:
		return s.OnTimeUpdate(in.Elapsed)
	case InputEnded:
		return s.OnVideoEnded()
	case InputChoice:
		return s.SelectChoice(in.ChoiceID)
	case InputJump:
		return s.JumpTo(in.NodeID)
	default:
		return s.Frame(), &InvalidInputError{Kind: in.Kind, Reason: "unknown input type"}
	}
}

// Replay starts a new session and applies inputs in order. Inputs that failed
// recoverably when first applied fail the same way here without changing
// state, so they are skipped. Any other error stops the replay.
func Replay(sc *scenario.Scenario, inputs []Input, opts ...Option) (*Session, error) {
	s, err := Start(sc, opts...)
	if err != nil {
		return nil, err
	}
	for i, in := range inputs {
		if _, err := s.Apply(in); err != nil && !IsRecoverable(err) {
			return s, fmt.Errorf("replay input %d (%s): %w", i, in.Kind, err)
		}
	}
	return s, nil
}
