package mqtt

import (
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/ReelEngine/internal/events"
)

// PlayerState tracks the presence of the player attached to a session.
type PlayerState struct {
	SessionID string    `json:"session_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Connected bool      `json:"connected"`
}

// Monitor tracks player presence. Players report elapsed time continuously
// while a video plays, so any input counts as a heartbeat.
type Monitor struct {
	mu      sync.RWMutex
	players map[string]*PlayerState
	timeout time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewMonitor creates a player monitor. A player that has been silent for
// longer than timeout is considered disconnected.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Monitor{
		players: make(map[string]*PlayerState),
		timeout: timeout,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Seen records activity for sessionID, emitting player.connected when the
// player is new or returns after a timeout.
func (m *Monitor) Seen(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	state, known := m.players[sessionID]
	if known && state.Connected {
		state.LastSeen = now
		return
	}
	if !known {
		state = &PlayerState{SessionID: sessionID, FirstSeen: now}
		m.players[sessionID] = state
	}
	state.LastSeen = now
	state.Connected = true

	events.Emit("info", "player.connected", "", map[string]interface{}{
		"session_id": sessionID,
		"reconnect":  known,
	})
}

// Forget drops a session's player without emitting an event.
func (m *Monitor) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, sessionID)
}

// Start begins the background health check loop. Players of deleted
// sessions are forgotten.
func (m *Monitor) Start(checkInterval time.Duration) {
	sub := events.Subscribe()
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval, sub)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration, sub events.Subscriber) {
	defer m.wg.Done()
	defer events.Unsubscribe(sub)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	updates := sub
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		case e, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if e.Name == "session.deleted" && e.SessionID != "" {
				m.Forget(e.SessionID)
			}
		}
	}
}

func (m *Monitor) checkHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, state := range m.players {
		if !state.Connected || now.Sub(state.LastSeen) <= m.timeout {
			continue
		}
		state.Connected = false
		events.Emit("warn", "player.disconnected", "heartbeat timeout", map[string]interface{}{
			"session_id":  id,
			"last_seen":   state.LastSeen.Format(time.RFC3339),
			"timeout_sec": m.timeout.Seconds(),
		})
	}
}

// Player returns a copy of the player state for sessionID, or nil.
func (m *Monitor) Player(sessionID string) *PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.players[sessionID]; ok {
		cpy := *state
		return &cpy
	}
	return nil
}

// ConnectedPlayers returns the sorted session ids with a connected player.
func (m *Monitor) ConnectedPlayers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.players {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
