package playback

import (
	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// Variables is the narrative memory of one playback session.
type Variables map[string]scenario.Value

// Clone returns a copy of vars.
func (vars Variables) Clone() Variables {
	out := make(Variables, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// IsTruthy applies the condition truthiness rule: false, 0, "" and absent or
// null values are falsy.
func IsTruthy(v scenario.Value) bool {
	return v.Truthy()
}

// IsAvailable reports whether every condition of choice names a truthy
// variable. Missing variables are falsy; an empty condition set is always met.
func IsAvailable(choice *scenario.Choice, vars Variables) bool {
	for _, name := range choice.Conditions {
		v, ok := vars[name]
		if !ok || !IsTruthy(v) {
			return false
		}
	}
	return true
}

// ApplyEffects returns a new variable map with every effect written over vars.
// vars itself is never modified.
func ApplyEffects(effects map[string]scenario.Value, vars Variables) Variables {
	out := make(Variables, len(vars)+len(effects))
	for k, v := range vars {
		out[k] = v
	}
	for k, v := range effects {
		out[k] = v
	}
	return out
}

// FilterAvailable returns the available choices in declaration order.
func FilterAvailable(choices []scenario.Choice, vars Variables) []scenario.Choice {
	var out []scenario.Choice
	for i := range choices {
		if IsAvailable(&choices[i], vars) {
			out = append(out, choices[i])
		}
	}
	return out
}
