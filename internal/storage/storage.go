// Package storage holds the row types shared by the persistent stores.
// A store keeps two logs: the event log read by operators and the input log
// that sessions are rebuilt from after a restart.
package storage

import (
	"time"

	"github.com/AaronLay10/ReelEngine/internal/playback"
)

// DefaultQueryLimit and MaxQueryLimit bound event log queries.
const (
	DefaultQueryLimit = 200
	MaxQueryLimit     = 10000
)

// EventRow represents a stored event.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	SessionID *string                `json:"session_id,omitempty"`
}

// SessionRow is a live session and every input applied to it, oldest first.
// NextSeq is one past the highest recorded input seq. It can exceed
// len(Inputs) when an append failed and left a gap.
type SessionRow struct {
	ID         string           `json:"id"`
	ScenarioID string           `json:"scenario_id"`
	StartNode  string           `json:"start_node,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Inputs     []playback.Input `json:"inputs"`
	NextSeq    int              `json:"next_seq"`
}

// ClampLimit applies the default and maximum event query limits.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
