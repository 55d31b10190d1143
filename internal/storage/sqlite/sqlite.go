// Package sqlite is the single-box store: the same event and input logs as the
// postgres store, kept in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed event and input log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts an event.
func (s *Store) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO events (ts, level, event, msg, fields, session_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts.UnixNano(), level, event, nullString(msg), fieldsJSON, nullString(sessionID))
	return err
}

// Query returns the last N events, newest first.
func (s *Store) Query(limit int) ([]storage.EventRow, error) {
	rows, err := s.db.Query(`
		SELECT event_id, ts, level, event, msg, fields, session_id
		FROM events
		ORDER BY ts DESC, event_id DESC
		LIMIT ?
	`, storage.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []storage.EventRow
	for rows.Next() {
		var (
			e                 storage.EventRow
			ts                int64
			msg, fields, sess sql.NullString
		)
		if err := rows.Scan(&e.EventID, &ts, &e.Level, &e.Event, &msg, &fields, &sess); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		if msg.Valid {
			e.Message = &msg.String
		}
		if sess.Valid {
			e.SessionID = &sess.String
		}
		if fields.Valid {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateSession records a new session.
func (s *Store) CreateSession(ctx context.Context, row storage.SessionRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, scenario_id, start_node, created_at)
		VALUES (?, ?, ?, ?)
	`, row.ID, row.ScenarioID, nullString(row.StartNode), row.CreatedAt.UnixNano())
	return err
}

// AppendInput records the seq-th input applied to a session.
func (s *Store) AppendInput(ctx context.Context, sessionID string, seq int, in playback.Input) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_inputs (session_id, seq, ts, input)
		VALUES (?, ?, ?, ?)
	`, sessionID, seq, time.Now().UnixNano(), string(data))
	return err
}

// DeleteSession marks a session as ended. Its inputs are kept for audit.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET deleted_at = ? WHERE session_id = ? AND deleted_at IS NULL
	`, time.Now().UnixNano(), sessionID)
	return err
}

// ActiveSessions returns every session not yet deleted with its inputs in order.
func (s *Store) ActiveSessions(ctx context.Context) ([]storage.SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.scenario_id, s.start_node, s.created_at, i.seq, i.input
		FROM sessions s
		LEFT JOIN session_inputs i ON i.session_id = s.session_id
		WHERE s.deleted_at IS NULL
		ORDER BY s.created_at, s.session_id, i.seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SessionRow
	for rows.Next() {
		var (
			id, scenarioID   string
			startNode, input sql.NullString
			seq              sql.NullInt64
			createdAt        int64
		)
		if err := rows.Scan(&id, &scenarioID, &startNode, &createdAt, &seq, &input); err != nil {
			return nil, err
		}

		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, storage.SessionRow{
				ID:         id,
				ScenarioID: scenarioID,
				StartNode:  startNode.String,
				CreatedAt:  time.Unix(0, createdAt).UTC(),
			})
		}
		if !input.Valid {
			continue
		}
		var in playback.Input
		if err := json.Unmarshal([]byte(input.String), &in); err != nil {
			return nil, fmt.Errorf("session %s: failed to unmarshal input: %w", id, err)
		}
		last := &out[len(out)-1]
		last.Inputs = append(last.Inputs, in)
		last.NextSeq = int(seq.Int64) + 1
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
