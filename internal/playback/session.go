package playback

import (
	"fmt"
	"math"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// Phase is the state of the playback machine.
type Phase string

const (
	// PhaseAtNode: a video is playing, or an interactive node is showing its choices.
	PhaseAtNode Phase = "at_node"
	// PhaseAwaitingInteraction: a timed interaction paused the video.
	PhaseAwaitingInteraction Phase = "awaiting_interaction"
	// PhaseAwaitingEndChoice: a video ended and the viewer must pick a choice.
	PhaseAwaitingEndChoice Phase = "awaiting_end_choice"
	// PhaseTerminal: the narrative reached a node with nothing left to offer.
	PhaseTerminal Phase = "terminal"
)

// Observer receives a notification for every state change. The session never
// logs; hosts wire an Observer to their event pipeline.
type Observer func(name string, fields map[string]interface{})

// Option configures a Session.
type Option func(*options)

type options struct {
	tolerance float64
	startNode string
	observer  Observer
}

// WithTolerance sets the interaction trigger window in seconds.
func WithTolerance(seconds float64) Option {
	return func(o *options) {
		if seconds >= 0 && !math.IsNaN(seconds) {
			o.tolerance = seconds
		}
	}
}

// WithStartNode starts playback at nodeID instead of the scenario entry node.
// Editors use it to preview from any node.
func WithStartNode(nodeID string) Option {
	return func(o *options) { o.startNode = nodeID }
}

// WithObserver installs a state change observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// State is a snapshot of a session's runtime state.
type State struct {
	Phase               Phase             `json:"phase"`
	CurrentNodeID       string            `json:"current_node_id"`
	Variables           Variables         `json:"variables"`
	ActiveInteractionID string            `json:"active_interaction_id,omitempty"`
	PendingChoices      []scenario.Choice `json:"pending_choices,omitempty"`
	History             []string          `json:"history"`
}

// Frame is what a presentation layer needs to render the current moment.
// Pause is an intent: the host, not the session, pauses the media.
type Frame struct {
	NodeID        string               `json:"node_id"`
	MediaRef      string               `json:"media_ref,omitempty"`
	Phase         Phase                `json:"phase"`
	InteractionID string               `json:"interaction_id,omitempty"`
	Choices       []scenario.Choice    `json:"choices,omitempty"`
	Transition    *scenario.Transition `json:"transition,omitempty"`
	Pause         bool                 `json:"pause,omitempty"`
	Resume        bool                 `json:"resume,omitempty"`
	AutoAdvanced  bool                 `json:"auto_advanced,omitempty"`
}

// Session is one viewer's playback of a scenario. The scenario is shared and
// read-only; everything else is owned by the session. A Session is not safe
// for concurrent use.
type Session struct {
	sc   *scenario.Scenario
	opts options

	phase       Phase
	node        *scenario.Node
	vars        Variables
	interaction int
	history     []string
	consumed    map[string]bool
	elapsed     float64
}

// Start begins a playback session at the scenario entry node.
// Entry resolution and validation errors are fatal: no session is returned.
func Start(sc *scenario.Scenario, opts ...Option) (*Session, error) {
	if sc == nil {
		return nil, &scenario.ValidationError{Issues: []scenario.Issue{{Message: "nil scenario"}}}
	}

	o := options{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}

	entry := o.startNode
	if entry == "" {
		var err error
		entry, err = scenario.ResolveEntryNode(sc)
		if err != nil {
			return nil, err
		}
	}
	node, ok := sc.FindNode(entry)
	if !ok {
		return nil, &scenario.ValidationError{Issues: []scenario.Issue{{Path: "startNodeId", Message: fmt.Sprintf("start node %q is not a declared node", entry)}}}
	}

	s := &Session{
		sc:          sc,
		opts:        o,
		vars:        Variables(sc.CloneVariables()),
		interaction: -1,
		history:     []string{},
	}
	s.emit("session.started", map[string]interface{}{"node_id": entry, "scenario_id": sc.ID})
	s.enter(node)
	return s, nil
}

// Scenario returns the scenario being played.
func (s *Session) Scenario() *scenario.Scenario { return s.sc }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// CurrentNode returns the node the session is at.
func (s *Session) CurrentNode() *scenario.Node { return s.node }

// Elapsed returns the last reported playback time within the current node.
func (s *Session) Elapsed() float64 { return s.elapsed }

// Variables returns a copy of the session's variables.
func (s *Session) Variables() Variables { return s.vars.Clone() }

// State returns a deep snapshot of the runtime state.
func (s *Session) State() State {
	st := State{
		Phase:          s.phase,
		CurrentNodeID:  s.node.ID,
		Variables:      s.vars.Clone(),
		PendingChoices: s.CurrentChoices(),
		History:        append([]string{}, s.history...),
	}
	if it := s.activeInteraction(); it != nil {
		st.ActiveInteractionID = it.ID
	}
	return st
}

// CurrentChoices returns the choices offered right now, filtered against the
// current variables on every call.
func (s *Session) CurrentChoices() []scenario.Choice {
	switch s.phase {
	case PhaseAwaitingInteraction:
		if it := s.activeInteraction(); it != nil {
			return FilterAvailable(it.Options, s.vars)
		}
	case PhaseAwaitingEndChoice:
		return FilterAvailable(s.node.Choices, s.vars)
	case PhaseAtNode:
		if !s.node.IsVideo() {
			return FilterAvailable(s.node.Choices, s.vars)
		}
	}
	return nil
}

// Frame describes the current moment for the presentation layer.
func (s *Session) Frame() Frame {
	f := Frame{
		NodeID:  s.node.ID,
		Phase:   s.phase,
		Choices: s.CurrentChoices(),
		Pause:   s.phase == PhaseAwaitingInteraction,
	}
	if s.node.IsVideo() {
		f.MediaRef = s.node.MediaRef
	}
	if it := s.activeInteraction(); it != nil {
		f.InteractionID = it.ID
	}
	return f
}

// OnTimeUpdate reports the playback position within the current video node.
// When it lands in an interaction's trigger window the session moves to
// PhaseAwaitingInteraction and the returned frame carries a pause intent.
// Interactions already consumed during this node visit never re-trigger; when
// several share the window the first declared wins and the rest are skipped.
// Outside of a playing video node the report is recorded and ignored.
func (s *Session) OnTimeUpdate(elapsed float64) (Frame, error) {
	if elapsed < 0 || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return s.Frame(), &InvalidInputError{Kind: InputTime, Reason: fmt.Sprintf("playback time %v", elapsed)}
	}
	if s.phase != PhaseAtNode || !s.node.IsVideo() {
		return s.Frame(), nil
	}
	s.elapsed = elapsed

	window := TriggerWindow(s.node, elapsed, s.opts.tolerance)
	winner := -1
	for _, i := range window {
		id := s.node.Interactions[i].ID
		if s.consumed[id] {
			continue
		}
		s.consumed[id] = true
		if winner == -1 {
			winner = i
			continue
		}
		s.emit("interaction.skipped", map[string]interface{}{
			"node_id":        s.node.ID,
			"interaction_id": id,
			"winner_id":      s.node.Interactions[winner].ID,
		})
	}
	if winner == -1 {
		return s.Frame(), nil
	}

	s.phase = PhaseAwaitingInteraction
	s.interaction = winner
	s.emit("interaction.triggered", map[string]interface{}{
		"node_id":        s.node.ID,
		"interaction_id": s.node.Interactions[winner].ID,
		"elapsed":        elapsed,
	})
	return s.Frame(), nil
}

// OnVideoEnded reports that the current video finished playing.
// A single available unconditional choice is followed automatically; any other
// non-empty set of available choices is offered to the viewer; no available
// choice ends playback.
func (s *Session) OnVideoEnded() (Frame, error) {
	if s.phase != PhaseAtNode || !s.node.IsVideo() {
		return s.Frame(), &InvalidPhaseError{Op: "video ended", Phase: s.phase, NodeID: s.node.ID}
	}

	available := FilterAvailable(s.node.Choices, s.vars)
	switch {
	case len(available) == 1 && available[0].Unconditional():
		choice := available[0]
		f, err := s.follow(&choice)
		if err != nil {
			return s.Frame(), err
		}
		f.AutoAdvanced = true
		s.emit("playback.auto_advanced", map[string]interface{}{
			"choice_id": choice.ID,
			"node_id":   s.node.ID,
		})
		return f, nil

	case len(available) > 0:
		s.phase = PhaseAwaitingEndChoice
		s.emit("playback.awaiting_choice", map[string]interface{}{
			"node_id": s.node.ID,
			"choices": choiceIDs(available),
		})
		return s.Frame(), nil

	default:
		s.terminate()
		return s.Frame(), nil
	}
}

// SelectChoice takes one of the currently offered choices. The call is atomic:
// on any error the session is unchanged.
func (s *Session) SelectChoice(choiceID string) (Frame, error) {
	if !s.acceptsChoice() {
		return s.Frame(), &InvalidPhaseError{Op: "select choice", Phase: s.phase, NodeID: s.node.ID}
	}

	offered := s.CurrentChoices()
	var choice *scenario.Choice
	for i := range offered {
		if offered[i].ID == choiceID {
			choice = &offered[i]
			break
		}
	}
	if choice == nil {
		return s.Frame(), &UnknownChoiceError{ChoiceID: choiceID, Offered: choiceIDs(offered)}
	}

	if s.phase == PhaseAwaitingInteraction && choice.TargetID == "" {
		return s.resume(choice), nil
	}

	f, err := s.follow(choice)
	if err != nil {
		return s.Frame(), err
	}
	return f, nil
}

// JumpTo moves the session to nodeID regardless of phase, keeping variables.
// It serves operator overrides and editor previews.
func (s *Session) JumpTo(nodeID string) (Frame, error) {
	target, ok := s.sc.FindNode(nodeID)
	if !ok {
		return s.Frame(), &DanglingTargetError{TargetID: nodeID}
	}

	tr := ResolveTransition(s.node, nil)
	from := s.node.ID
	s.history = append(s.history, from)
	s.emit("node.jumped", map[string]interface{}{"from": from, "node_id": nodeID})
	s.enter(target)

	f := s.Frame()
	f.Transition = &tr
	return f, nil
}

func (s *Session) acceptsChoice() bool {
	switch s.phase {
	case PhaseAwaitingInteraction, PhaseAwaitingEndChoice:
		return true
	case PhaseAtNode:
		return !s.node.IsVideo()
	}
	return false
}

// follow commits a hop along choice. Target existence is re-checked here so a
// graph edited after load cannot cause a partial transition.
func (s *Session) follow(choice *scenario.Choice) (Frame, error) {
	target, ok := s.sc.FindNode(choice.TargetID)
	if !ok {
		return Frame{}, &DanglingTargetError{NodeID: s.node.ID, ChoiceID: choice.ID, TargetID: choice.TargetID}
	}

	tr := ResolveTransition(s.node, choice)
	from := s.node.ID

	s.vars = ApplyEffects(choice.Effects, s.vars)
	s.history = append(s.history, from)
	s.emit("choice.selected", map[string]interface{}{
		"node_id":   from,
		"choice_id": choice.ID,
		"target_id": target.ID,
	})
	s.enter(target)

	f := s.Frame()
	f.Transition = &tr
	return f, nil
}

// resume applies an interaction option without a target and lets the video
// carry on from where it paused.
func (s *Session) resume(choice *scenario.Choice) Frame {
	it := s.activeInteraction()
	s.vars = ApplyEffects(choice.Effects, s.vars)
	s.phase = PhaseAtNode
	s.interaction = -1
	s.emit("interaction.resumed", map[string]interface{}{
		"node_id":        s.node.ID,
		"interaction_id": it.ID,
		"choice_id":      choice.ID,
	})

	f := s.Frame()
	f.Resume = true
	return f
}

func (s *Session) enter(node *scenario.Node) {
	s.node = node
	s.phase = PhaseAtNode
	s.interaction = -1
	s.elapsed = 0
	s.consumed = make(map[string]bool, len(node.Interactions))

	s.emit("node.entered", map[string]interface{}{
		"node_id": node.ID,
		"kind":    string(node.Kind),
	})

	if !node.IsVideo() && len(FilterAvailable(node.Choices, s.vars)) == 0 {
		s.terminate()
	}
}

func (s *Session) terminate() {
	s.phase = PhaseTerminal
	s.interaction = -1
	s.emit("playback.terminal", map[string]interface{}{"node_id": s.node.ID})
}

func (s *Session) activeInteraction() *scenario.Interaction {
	if s.interaction < 0 || s.interaction >= len(s.node.Interactions) {
		return nil
	}
	return &s.node.Interactions[s.interaction]
}

func (s *Session) emit(name string, fields map[string]interface{}) {
	if s.opts.observer != nil {
		s.opts.observer(name, fields)
	}
}

func choiceIDs(choices []scenario.Choice) []string {
	ids := make([]string, 0, len(choices))
	for _, c := range choices {
		ids = append(ids, c.ID)
	}
	return ids
}
