package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the persisted project format. Top-level edges are accepted as a
// convenience and folded into the source node's choices; node choices stay
// the single authoritative representation.
type document struct {
	Version  int `json:"version,omitempty" yaml:"version,omitempty"`
	Scenario `yaml:",inline"`
	Edges    []edgeDoc `json:"edges,omitempty" yaml:"edges,omitempty"`
}

type edgeDoc struct {
	ID         string           `json:"id,omitempty" yaml:"id,omitempty"`
	From       string           `json:"from" yaml:"from"`
	To         string           `json:"to" yaml:"to"`
	Label      string           `json:"label,omitempty" yaml:"label,omitempty"`
	Conditions []string         `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Effects    map[string]Value `json:"effects,omitempty" yaml:"effects,omitempty"`
	Transition *Transition      `json:"transition,omitempty" yaml:"transition,omitempty"`
}

// Load parses and validates a JSON scenario document.
func Load(raw []byte) (*Scenario, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to parse scenario JSON: trailing data after document")
	}
	return fromDocument(&doc)
}

// LoadYAML parses and validates a YAML scenario document.
func LoadYAML(raw []byte) (*Scenario, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	return fromDocument(&doc)
}

// LoadFile loads a scenario from disk, choosing the decoder by extension.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		sc, err = LoadYAML(data)
	default:
		sc, err = Load(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.ID == "" {
		sc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Marshal encodes a scenario in the persisted JSON format.
func Marshal(sc *Scenario) ([]byte, error) {
	doc := document{Version: 1, Scenario: *sc}
	return json.MarshalIndent(doc, "", "  ")
}

func fromDocument(doc *document) (*Scenario, error) {
	if doc.Version != 0 && doc.Version != 1 {
		return nil, &ValidationError{Issues: []Issue{{Path: "version", Message: fmt.Sprintf("unsupported scenario version: %d", doc.Version)}}}
	}

	sc := doc.Scenario
	if issues := foldEdges(&sc, doc.Edges); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return New(sc)
}

// foldEdges appends each top-level edge to its source node as a choice, unless
// the node already declares a choice with the same id.
func foldEdges(sc *Scenario, edges []edgeDoc) []Issue {
	if len(edges) == 0 {
		return nil
	}

	pos := make(map[string]int, len(sc.Nodes))
	for i := range sc.Nodes {
		pos[sc.Nodes[i].ID] = i
	}

	var issues []Issue
	for i, e := range edges {
		path := fmt.Sprintf("edges[%d]", i)
		idx, ok := pos[e.From]
		if !ok {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("edge source %q is not a declared node", e.From)})
			continue
		}
		id := e.ID
		if id == "" {
			id = e.From + "->" + e.To
		}

		node := &sc.Nodes[idx]
		exists := false
		for _, c := range node.Choices {
			if c.ID == id {
				exists = true
				break
			}
		}
		if exists {
			continue
		}

		choices := make([]Choice, len(node.Choices), len(node.Choices)+1)
		copy(choices, node.Choices)
		node.Choices = append(choices, Choice{
			ID:         id,
			Label:      e.Label,
			TargetID:   e.To,
			Conditions: e.Conditions,
			Effects:    e.Effects,
			Transition: e.Transition,
		})
	}
	return issues
}
