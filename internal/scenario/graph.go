package scenario

// FindNode returns the node with the given id.
func (s *Scenario) FindNode(id string) (*Node, bool) {
	if id == "" {
		return nil, false
	}
	if s.index != nil {
		i, ok := s.index[id]
		if !ok {
			return nil, false
		}
		return &s.Nodes[i], true
	}
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}

// HasNode reports whether id names a declared node.
func (s *Scenario) HasNode(id string) bool {
	_, ok := s.FindNode(id)
	return ok
}

// Dangling returns the choices and interaction options whose targets did not
// resolve when the scenario was built.
func (s *Scenario) Dangling() []DanglingRef {
	return append([]DanglingRef(nil), s.dangling...)
}

// ResolveEntryNode returns the node playback starts at. An explicit StartNodeID
// takes precedence. Otherwise the entry is the unique node that no choice or
// interaction option targets.
func ResolveEntryNode(s *Scenario) (string, error) {
	if s.StartNodeID != "" {
		if !s.HasNode(s.StartNodeID) {
			return "", &ValidationError{Issues: []Issue{{Path: "startNodeId", Message: "start node " + s.StartNodeID + " is not a declared node"}}}
		}
		return s.StartNodeID, nil
	}

	incoming := make(map[string]bool, len(s.Nodes))
	for _, e := range s.Edges() {
		incoming[e.To] = true
	}

	var candidates []string
	for _, n := range s.Nodes {
		if !incoming[n.ID] {
			candidates = append(candidates, n.ID)
		}
	}
	if len(candidates) != 1 {
		return "", &AmbiguousEntryError{Candidates: candidates}
	}
	return candidates[0], nil
}

// Edges projects node choices and interaction options into an edge list, in
// declaration order. Options without a target resume their video and are not edges.
func (s *Scenario) Edges() []Edge {
	var edges []Edge
	for _, n := range s.Nodes {
		for _, it := range n.Interactions {
			for _, o := range it.Options {
				if o.TargetID == "" {
					continue
				}
				edges = append(edges, Edge{
					ID:            o.ID,
					From:          n.ID,
					To:            o.TargetID,
					Label:         o.Label,
					InteractionID: it.ID,
					Conditional:   !o.Unconditional(),
				})
			}
		}
		for _, c := range n.Choices {
			edges = append(edges, Edge{
				ID:          c.ID,
				From:        n.ID,
				To:          c.TargetID,
				Label:       c.Label,
				Conditional: !c.Unconditional(),
			})
		}
	}
	return edges
}

// Terminals returns the ids of nodes with no choices and no interactions.
func (s *Scenario) Terminals() []string {
	var ids []string
	for _, n := range s.Nodes {
		if len(n.Choices) == 0 && len(n.Interactions) == 0 {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// CloneVariables returns a fresh copy of the initial variables.
func (s *Scenario) CloneVariables() map[string]Value {
	out := make(map[string]Value, len(s.Variables))
	for k, v := range s.Variables {
		out[k] = v
	}
	return out
}
