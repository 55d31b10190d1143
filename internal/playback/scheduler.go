package playback

import (
	"math"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// DefaultTolerance is the trigger window, in seconds, around an interaction's
// trigger time.
const DefaultTolerance = 0.1

// CheckTrigger returns the lowest-index interaction of node whose trigger time
// is within tolerance of elapsed, or nil. It keeps no state; the session tracks
// which interactions were already consumed during a node visit.
func CheckTrigger(node *scenario.Node, elapsed, tolerance float64) *scenario.Interaction {
	idx := TriggerWindow(node, elapsed, tolerance)
	if len(idx) == 0 {
		return nil
	}
	return &node.Interactions[idx[0]]
}

// TriggerWindow returns the indexes, in declaration order, of every
// interaction of node within tolerance of elapsed.
func TriggerWindow(node *scenario.Node, elapsed, tolerance float64) []int {
	if node == nil || !node.IsVideo() {
		return nil
	}
	if tolerance < 0 {
		tolerance = 0
	}

	var idx []int
	for i := range node.Interactions {
		if math.Abs(node.Interactions[i].TriggerTime-elapsed) <= tolerance {
			idx = append(idx, i)
		}
	}
	return idx
}
