package playback

import (
	"testing"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

func TestResolveTransition(t *testing.T) {
	fade := &scenario.Transition{Type: scenario.TransitionFade, Duration: 0.5}
	cross := &scenario.Transition{Type: scenario.TransitionCrossfade, Duration: 2}

	tests := []struct {
		name   string
		node   *scenario.Node
		choice *scenario.Choice
		want   scenario.Transition
	}{
		{
			name: "default cut",
			node: &scenario.Node{ID: "a"},
			want: scenario.Transition{Type: scenario.TransitionCut},
		},
		{
			name: "node default",
			node: &scenario.Node{ID: "a", Transition: fade},
			want: *fade,
		},
		{
			name:   "choice overrides node",
			node:   &scenario.Node{ID: "a", Transition: fade},
			choice: &scenario.Choice{ID: "c", Transition: cross},
			want:   *cross,
		},
		{
			name:   "choice without transition falls back to node",
			node:   &scenario.Node{ID: "a", Transition: fade},
			choice: &scenario.Choice{ID: "c"},
			want:   *fade,
		},
		{
			name:   "cut drops duration",
			node:   &scenario.Node{ID: "a"},
			choice: &scenario.Choice{ID: "c", Transition: &scenario.Transition{Type: scenario.TransitionCut, Duration: 3}},
			want:   scenario.Transition{Type: scenario.TransitionCut},
		},
		{
			name: "nil node",
			want: scenario.DefaultTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTransition(tt.node, tt.choice); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
