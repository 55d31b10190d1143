package scenario

import (
	"fmt"
	"sort"
)

// New validates sc and returns an indexed, ready-to-play copy.
// Structural problems fail with *ValidationError. Choice targets that do not
// resolve are not errors; they are recorded and reported by Dangling.
func New(sc Scenario) (*Scenario, error) {
	v := &validator{sc: &sc}
	v.run()
	if len(v.issues) > 0 {
		return nil, &ValidationError{Issues: v.issues}
	}

	out := sc
	out.index = v.index
	out.dangling = v.dangling
	if out.Variables == nil {
		out.Variables = map[string]Value{}
	}
	return &out, nil
}

type validator struct {
	sc       *Scenario
	index    map[string]int
	issues   []Issue
	dangling []DanglingRef
}

func (v *validator) addf(path, format string, args ...interface{}) {
	v.issues = append(v.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) run() {
	if len(v.sc.Nodes) == 0 {
		v.addf("nodes", "scenario has no nodes")
		return
	}

	v.index = make(map[string]int, len(v.sc.Nodes))
	for i, n := range v.sc.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			v.addf(path, "node id is empty")
			continue
		}
		if prev, dup := v.index[n.ID]; dup {
			v.addf(path, "duplicate node id %q (first declared at nodes[%d])", n.ID, prev)
			continue
		}
		v.index[n.ID] = i
	}

	v.checkVariables()

	for i := range v.sc.Nodes {
		v.checkNode(fmt.Sprintf("nodes[%d]", i), &v.sc.Nodes[i])
	}

	if v.sc.StartNodeID != "" {
		if _, ok := v.index[v.sc.StartNodeID]; !ok {
			v.addf("startNodeId", "start node %q is not a declared node", v.sc.StartNodeID)
		}
	}
}

func (v *validator) checkVariables() {
	names := make([]string, 0, len(v.sc.Variables))
	for name := range v.sc.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" {
			v.addf("variables", "variable name is empty")
			continue
		}
		if val := v.sc.Variables[name]; !val.supported() {
			v.addf("variables."+name, "unsupported variable type %s", val.s)
		}
	}
}

func (v *validator) checkNode(path string, n *Node) {
	switch n.Kind {
	case NodeVideo:
	case NodeInteractive:
		if len(n.Interactions) > 0 {
			v.addf(path, "interactive node %q cannot carry timed interactions", n.ID)
		}
	case "":
		v.addf(path, "node %q has no kind", n.ID)
	default:
		v.addf(path, "node %q has unknown kind %q", n.ID, n.Kind)
	}

	if n.DurationHint < 0 {
		v.addf(path+".durationHint", "negative duration %g", n.DurationHint)
	}
	v.checkTransition(path+".transition", n.Transition)

	seen := make(map[string]bool, len(n.Choices))
	for i := range n.Choices {
		c := &n.Choices[i]
		cpath := fmt.Sprintf("%s.choices[%d]", path, i)
		v.checkChoice(cpath, c, seen)
		if !v.resolves(c.TargetID) {
			v.dangling = append(v.dangling, DanglingRef{NodeID: n.ID, ChoiceID: c.ID, TargetID: c.TargetID})
		}
	}

	seenInteractions := make(map[string]bool, len(n.Interactions))
	for i := range n.Interactions {
		it := &n.Interactions[i]
		ipath := fmt.Sprintf("%s.interactions[%d]", path, i)
		if it.ID == "" {
			v.addf(ipath, "interaction id is empty")
		} else if seenInteractions[it.ID] {
			v.addf(ipath, "duplicate interaction id %q", it.ID)
		}
		seenInteractions[it.ID] = true

		if it.TriggerTime < 0 {
			v.addf(ipath+".triggerTime", "negative trigger time %g", it.TriggerTime)
		}
		if n.DurationHint > 0 && it.TriggerTime > n.DurationHint {
			v.addf(ipath+".triggerTime", "trigger time %g is past the node duration %g", it.TriggerTime, n.DurationHint)
		}

		seenOptions := make(map[string]bool, len(it.Options))
		for j := range it.Options {
			o := &it.Options[j]
			v.checkChoice(fmt.Sprintf("%s.options[%d]", ipath, j), o, seenOptions)
			// An option without a target resumes the current video.
			if o.TargetID != "" && !v.resolves(o.TargetID) {
				v.dangling = append(v.dangling, DanglingRef{NodeID: n.ID, InteractionID: it.ID, ChoiceID: o.ID, TargetID: o.TargetID})
			}
		}
	}
}

func (v *validator) checkChoice(path string, c *Choice, seen map[string]bool) {
	if c.ID == "" {
		v.addf(path, "choice id is empty")
	} else if seen[c.ID] {
		v.addf(path, "duplicate choice id %q", c.ID)
	}
	seen[c.ID] = true

	for i, name := range c.Conditions {
		if name == "" {
			v.addf(fmt.Sprintf("%s.conditions[%d]", path, i), "condition names an empty variable")
		}
	}

	keys := make([]string, 0, len(c.Effects))
	for k := range c.Effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			v.addf(path+".effects", "effect names an empty variable")
			continue
		}
		if val := c.Effects[k]; !val.supported() {
			v.addf(path+".effects."+k, "unsupported effect value type %s", val.s)
		}
	}

	v.checkTransition(path+".transition", c.Transition)
}

func (v *validator) checkTransition(path string, t *Transition) {
	if t == nil {
		return
	}
	switch t.Type {
	case TransitionCut, TransitionFade, TransitionCrossfade:
	default:
		v.addf(path, "unknown transition type %q", t.Type)
	}
	if t.Duration < 0 {
		v.addf(path, "negative transition duration %g", t.Duration)
	}
}

func (v *validator) resolves(id string) bool {
	if id == "" {
		return false
	}
	_, ok := v.index[id]
	return ok
}
