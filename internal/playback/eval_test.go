package playback

import (
	"reflect"
	"testing"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

func TestIsAvailable(t *testing.T) {
	vars := Variables{
		"key":   scenario.Bool(true),
		"zero":  scenario.Number(0),
		"coins": scenario.Number(2),
		"empty": scenario.String(""),
		"name":  scenario.String("ada"),
		"nil":   scenario.Null(),
		"off":   scenario.Bool(false),
	}

	tests := []struct {
		conditions []string
		want       bool
	}{
		{nil, true},
		{[]string{"key"}, true},
		{[]string{"key", "coins", "name"}, true},
		{[]string{"zero"}, false},
		{[]string{"empty"}, false},
		{[]string{"nil"}, false},
		{[]string{"off"}, false},
		{[]string{"missing"}, false},
		{[]string{"key", "missing"}, false},
	}

	for _, tt := range tests {
		c := &scenario.Choice{ID: "c", Conditions: tt.conditions}
		if got := IsAvailable(c, vars); got != tt.want {
			t.Errorf("IsAvailable(%v) = %v, want %v", tt.conditions, got, tt.want)
		}
	}
}

func TestIsAvailableEmptyVariables(t *testing.T) {
	unconditional := &scenario.Choice{ID: "a"}
	conditional := &scenario.Choice{ID: "b", Conditions: []string{"x"}}

	if !IsAvailable(unconditional, Variables{}) {
		t.Error("choice without conditions must be available with no variables")
	}
	if IsAvailable(conditional, Variables{}) {
		t.Error("conditional choice must not be available with no variables")
	}
	if IsAvailable(conditional, nil) {
		t.Error("nil variables behave like empty variables")
	}
}

func TestApplyEffectsDoesNotMutate(t *testing.T) {
	vars := Variables{"a": scenario.Number(1), "b": scenario.String("x")}
	before := vars.Clone()

	out := ApplyEffects(map[string]scenario.Value{
		"a": scenario.Number(2),
		"c": scenario.Bool(true),
	}, vars)

	if !reflect.DeepEqual(vars, before) {
		t.Errorf("input mutated: %v", vars)
	}
	if !out["a"].Equal(scenario.Number(2)) {
		t.Errorf("expected a overwritten to 2, got %s", out["a"])
	}
	if !out["b"].Equal(scenario.String("x")) {
		t.Errorf("expected b kept, got %s", out["b"])
	}
	if !out["c"].Equal(scenario.Bool(true)) {
		t.Errorf("expected c inserted, got %s", out["c"])
	}

	out["b"] = scenario.Null()
	if vars["b"].IsNull() {
		t.Error("result must not alias the input map")
	}
}

func TestApplyEffectsNil(t *testing.T) {
	out := ApplyEffects(nil, nil)
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil map, got %v", out)
	}
}

func TestFilterAvailableKeepsOrder(t *testing.T) {
	choices := []scenario.Choice{
		{ID: "1"},
		{ID: "2", Conditions: []string{"locked"}},
		{ID: "3", Conditions: []string{"open"}},
		{ID: "4"},
	}
	got := FilterAvailable(choices, Variables{"open": scenario.Bool(true)})

	ids := choiceIDs(got)
	if !reflect.DeepEqual(ids, []string{"1", "3", "4"}) {
		t.Errorf("unexpected filter result %v", ids)
	}
}
