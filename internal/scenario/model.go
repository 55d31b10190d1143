package scenario

// NodeKind tags a node as a video or an interactive choice screen.
type NodeKind string

const (
	NodeVideo       NodeKind = "video"
	NodeInteractive NodeKind = "interactive"
)

// TransitionType names the visual hand-off between two nodes.
type TransitionType string

const (
	TransitionCut       TransitionType = "cut"
	TransitionFade      TransitionType = "fade"
	TransitionCrossfade TransitionType = "crossfade"
)

// Transition is rendering metadata for a hop between nodes.
// Duration is in seconds.
type Transition struct {
	Type     TransitionType `json:"type" yaml:"type"`
	Duration float64        `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// DefaultTransition is used when neither the choice nor the source node sets one.
var DefaultTransition = Transition{Type: TransitionCut, Duration: 0}

// Scenario is the root document: a graph of nodes with embedded choices and the
// initial narrative variables.
//
// A Scenario is treated as immutable once built by New or Load. It is shared
// read-only by every playback session that plays it.
type Scenario struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string           `json:"title,omitempty" yaml:"title,omitempty"`
	StartNodeID string           `json:"startNodeId,omitempty" yaml:"startNodeId,omitempty"`
	Variables   map[string]Value `json:"variables,omitempty" yaml:"variables,omitempty"`
	Nodes       []Node           `json:"nodes" yaml:"nodes"`

	index    map[string]int
	dangling []DanglingRef
}

// Node is a presentation unit.
// Video nodes carry media, timed interactions and end-of-video choices.
// Interactive nodes carry choices only.
type Node struct {
	ID           string        `json:"id" yaml:"id"`
	Kind         NodeKind      `json:"kind" yaml:"kind"`
	Title        string        `json:"title,omitempty" yaml:"title,omitempty"`
	MediaRef     string        `json:"mediaRef,omitempty" yaml:"mediaRef,omitempty"`
	DurationHint float64       `json:"durationHint,omitempty" yaml:"durationHint,omitempty"`
	Interactions []Interaction `json:"interactions,omitempty" yaml:"interactions,omitempty"`
	Choices      []Choice      `json:"choices,omitempty" yaml:"choices,omitempty"`
	Transition   *Transition   `json:"transition,omitempty" yaml:"transition,omitempty"`
}

// IsVideo reports whether the node plays media.
func (n *Node) IsVideo() bool {
	return n.Kind == NodeVideo
}

// Choice is a decision point. It is used both for node choices and for the
// options of a timed interaction.
type Choice struct {
	ID         string           `json:"id" yaml:"id"`
	Label      string           `json:"label,omitempty" yaml:"label,omitempty"`
	TargetID   string           `json:"targetId,omitempty" yaml:"targetId,omitempty"`
	Conditions []string         `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Effects    map[string]Value `json:"effects,omitempty" yaml:"effects,omitempty"`
	Transition *Transition      `json:"transition,omitempty" yaml:"transition,omitempty"`
}

// Unconditional reports whether the choice is always offered.
func (c *Choice) Unconditional() bool {
	return len(c.Conditions) == 0
}

// Interaction is a timed pause point inside a video node.
// TriggerTime is in seconds from the start of the node.
type Interaction struct {
	ID          string   `json:"id" yaml:"id"`
	TriggerTime float64  `json:"triggerTime" yaml:"triggerTime"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Options     []Choice `json:"options" yaml:"options"`
}

// Edge is the derived edge view of a choice or interaction option.
// Edges are a projection of the node-embedded choices, never a second source of truth.
type Edge struct {
	ID            string `json:"id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Label         string `json:"label,omitempty"`
	InteractionID string `json:"interactionId,omitempty"`
	Conditional   bool   `json:"conditional,omitempty"`
}

// DanglingRef records a choice or option whose target does not resolve.
type DanglingRef struct {
	NodeID        string `json:"nodeId"`
	InteractionID string `json:"interactionId,omitempty"`
	ChoiceID      string `json:"choiceId"`
	TargetID      string `json:"targetId"`
}
