package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/ReelEngine/internal/storage"
)

var buffer = NewRingBuffer(256)

// Store persists events. Implemented by the postgres and sqlite stores.
type Store interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
	Query(limit int) ([]storage.EventRow, error)
}

var (
	store         Store
	storeMu       sync.RWMutex
	storeErrorLog bool
)

// SetStore sets the store used for event persistence. nil disables persistence.
func SetStore(s Store) {
	storeMu.Lock()
	store = s
	storeErrorLog = false
	storeMu.Unlock()
}

// GetStore returns the current store (for API queries).
func GetStore() Store {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return store
}

type Event struct {
	Seq       uint64                 `json:"seq"`
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an allowlisted event in the ring buffer, the store and every
// live subscriber. A "session_id" string field is lifted onto the event.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}
	if sid, ok := fields["session_id"].(string); ok {
		e.SessionID = sid
	}

	e = buffer.Add(e)
	broadcast(e)

	storeMu.RLock()
	s := store
	storeMu.RUnlock()

	if s != nil {
		if err := s.Append(ts, level, name, msg, fields, e.SessionID); err != nil {
			reportStoreError(err)
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

// reportStoreError records the first store failure directly in the ring
// buffer. Going through Emit would recurse while the store keeps failing.
func reportStoreError(err error) {
	storeMu.Lock()
	if storeErrorLog {
		storeMu.Unlock()
		return
	}
	storeErrorLog = true
	storeMu.Unlock()

	buffer.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event store append failed",
		Fields: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
