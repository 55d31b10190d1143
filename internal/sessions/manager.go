package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/logger"
	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/storage"
)

// Recorder is the durable input log sessions are rebuilt from.
// Implemented by the postgres and sqlite stores.
type Recorder interface {
	CreateSession(ctx context.Context, s storage.SessionRow) error
	AppendInput(ctx context.Context, sessionID string, seq int, in playback.Input) error
	DeleteSession(ctx context.Context, sessionID string) error
	ActiveSessions(ctx context.Context) ([]storage.SessionRow, error)
}

// FrameSink receives every frame produced by an accepted input, in order per
// session.
type FrameSink func(sessionID string, f playback.Frame)

// InputObserver sees every input with its outcome, accepted or not.
type InputObserver func(sessionID string, in playback.Input, err error)

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder persists session inputs to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.rec = r }
}

// WithLogger sets the process logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithTolerance sets the interaction trigger window for new sessions. Without
// it sessions use the playback default; 0 means exact-match triggers.
func WithTolerance(seconds float64) Option {
	return func(m *Manager) { m.tolerance = &seconds }
}

// WithMaxSessions caps the number of live sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.maxSessions = n }
}

// WithFrameSink adds a frame sink.
func WithFrameSink(sink FrameSink) Option {
	return func(m *Manager) { m.sinks = append(m.sinks, sink) }
}

// WithInputObserver adds an input observer.
func WithInputObserver(obs InputObserver) Option {
	return func(m *Manager) { m.inputObs = append(m.inputObs, obs) }
}

// Info is a point-in-time view of a live session.
type Info struct {
	ID         string         `json:"id"`
	ScenarioID string         `json:"scenario_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Elapsed    float64        `json:"elapsed"`
	State      playback.State `json:"state"`
	Frame      playback.Frame `json:"frame"`
}

type entry struct {
	mu         sync.Mutex
	id         string
	scenarioID string
	startNode  string
	createdAt  time.Time
	session    *playback.Session
	seq        int
	replaying  bool
}

// Manager hosts concurrent playback sessions. Each session is driven by one
// input at a time; different sessions proceed independently.
type Manager struct {
	catalog     *Catalog
	rec         Recorder
	log         *logger.Logger
	tolerance   *float64
	maxSessions int
	sinks       []FrameSink
	inputObs    []InputObserver

	mu       sync.RWMutex
	sessions map[string]*entry
	reserved int // slots held by creates still in progress
}

func NewManager(catalog *Catalog, opts ...Option) *Manager {
	m := &Manager{
		catalog:  catalog,
		log:      logger.Nop(),
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the scenario catalog.
func (m *Manager) Catalog() *Catalog { return m.catalog }

// Create starts a new session of scenarioID. startNode may be empty to use the
// scenario entry node.
func (m *Manager) Create(ctx context.Context, scenarioID, startNode string) (string, playback.Frame, error) {
	sc, ok := m.catalog.Get(scenarioID)
	if !ok {
		return "", playback.Frame{}, &NotFoundError{Kind: "scenario", ID: scenarioID}
	}

	if !m.reserve() {
		return "", playback.Frame{}, ErrCapacity
	}
	inserted := false
	defer func() {
		if !inserted {
			m.mu.Lock()
			m.reserved--
			m.mu.Unlock()
		}
	}()

	e := &entry{
		id:         uuid.NewString(),
		scenarioID: scenarioID,
		startNode:  startNode,
		createdAt:  time.Now().UTC(),
	}
	events.Emit("info", "session.created", "", map[string]interface{}{
		"session_id":  e.id,
		"scenario_id": scenarioID,
		"start_node":  startNode,
	})

	s, err := playback.Start(sc, m.sessionOptions(e)...)
	if err != nil {
		events.Emit("warn", "session.rejected", err.Error(), map[string]interface{}{
			"session_id":  e.id,
			"scenario_id": scenarioID,
		})
		return "", playback.Frame{}, err
	}
	e.session = s

	if m.rec != nil {
		row := storage.SessionRow{ID: e.id, ScenarioID: scenarioID, StartNode: startNode, CreatedAt: e.createdAt}
		if err := m.rec.CreateSession(ctx, row); err != nil {
			m.log.Error("failed to record session", "session_id", e.id, "error", err)
		}
	}

	m.mu.Lock()
	m.reserved--
	m.sessions[e.id] = e
	m.mu.Unlock()
	inserted = true

	f := s.Frame()
	m.publish(e.id, f)
	return e.id, f, nil
}

// reserve claims a session slot, counting creates that have not finished.
func (m *Manager) reserve() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions)+m.reserved >= m.maxSessions {
		return false
	}
	m.reserved++
	return true
}

func (m *Manager) sessionOptions(e *entry) []playback.Option {
	opts := []playback.Option{playback.WithObserver(e.observe)}
	if m.tolerance != nil {
		opts = append(opts, playback.WithTolerance(*m.tolerance))
	}
	if e.startNode != "" {
		opts = append(opts, playback.WithStartNode(e.startNode))
	}
	return opts
}

// observe forwards session state changes to the event log. Replayed inputs
// already produced their events before the restart.
func (e *entry) observe(name string, fields map[string]interface{}) {
	if e.replaying {
		return
	}
	fields["session_id"] = e.id
	events.Emit("info", name, "", fields)
}

// Get returns a view of a live session.
func (m *Manager) Get(id string) (Info, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info(), nil
}

func (e *entry) info() Info {
	return Info{
		ID:         e.id,
		ScenarioID: e.scenarioID,
		CreatedAt:  e.createdAt,
		Elapsed:    e.session.Elapsed(),
		State:      e.session.State(),
		Frame:      e.session.Frame(),
	}
}

// List returns every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.info())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete ends a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return &NotFoundError{Kind: "session", ID: id}
	}

	if m.rec != nil {
		if err := m.rec.DeleteSession(ctx, id); err != nil {
			m.log.Error("failed to record session deletion", "session_id", id, "error", err)
		}
	}
	events.Emit("info", "session.deleted", "", map[string]interface{}{
		"session_id":  id,
		"scenario_id": e.scenarioID,
	})
	return nil
}

// TimeUpdate reports the playback position of the session's current video.
func (m *Manager) TimeUpdate(ctx context.Context, id string, elapsed float64) (playback.Frame, error) {
	return m.Apply(ctx, id, playback.Input{Kind: playback.InputTime, Elapsed: elapsed})
}

// VideoEnded reports that the session's current video finished.
func (m *Manager) VideoEnded(ctx context.Context, id string) (playback.Frame, error) {
	return m.Apply(ctx, id, playback.Input{Kind: playback.InputEnded})
}

// Select takes one of the session's offered choices.
func (m *Manager) Select(ctx context.Context, id, choiceID string) (playback.Frame, error) {
	return m.Apply(ctx, id, playback.Input{Kind: playback.InputChoice, ChoiceID: choiceID})
}

// Jump moves the session to nodeID.
func (m *Manager) Jump(ctx context.Context, id, nodeID string) (playback.Frame, error) {
	return m.Apply(ctx, id, playback.Input{Kind: playback.InputJump, NodeID: nodeID})
}

// Apply drives a session with one input. Accepted inputs are recorded before
// the frame is published. Time reports that trigger nothing only move the
// playhead and are not recorded.
func (m *Manager) Apply(ctx context.Context, id string, in playback.Input) (playback.Frame, error) {
	e, err := m.lookup(id)
	if err != nil {
		m.observeInput(id, in, err)
		return playback.Frame{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.session.Phase()
	f, err := e.session.Apply(in)
	m.observeInput(id, in, err)
	if err != nil {
		level := "warn"
		if !playback.IsRecoverable(err) {
			level = "error"
		}
		events.Emit(level, "session.rejected", err.Error(), map[string]interface{}{
			"session_id": id,
			"input":      string(in.Kind),
		})
		return f, err
	}

	if in.Kind == playback.InputTime && e.session.Phase() == before {
		return f, nil
	}

	if m.rec != nil {
		if err := m.rec.AppendInput(ctx, id, e.seq, in); err != nil {
			m.log.Error("failed to record input", "session_id", id, "seq", e.seq, "error", err)
		}
	}
	e.seq++

	m.publish(id, f)
	return f, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "session", ID: id}
	}
	return e, nil
}

func (m *Manager) publish(id string, f playback.Frame) {
	for _, sink := range m.sinks {
		sink(id, f)
	}
}

func (m *Manager) observeInput(id string, in playback.Input, err error) {
	for _, obs := range m.inputObs {
		obs(id, in, err)
	}
}
