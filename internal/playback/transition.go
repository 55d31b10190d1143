package playback

import (
	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// ResolveTransition picks the visual hand-off for a hop out of from.
// A choice-level transition overrides the node default; with neither set the
// hop is a plain cut. choice may be nil for hops that are not choice driven.
func ResolveTransition(from *scenario.Node, choice *scenario.Choice) scenario.Transition {
	if choice != nil && choice.Transition != nil {
		return normalize(*choice.Transition)
	}
	if from != nil && from.Transition != nil {
		return normalize(*from.Transition)
	}
	return scenario.DefaultTransition
}

func normalize(t scenario.Transition) scenario.Transition {
	if t.Type == "" {
		t.Type = scenario.TransitionCut
	}
	if t.Type == scenario.TransitionCut {
		t.Duration = 0
	}
	return t
}
