package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/storage"
)

// Client manages the Postgres connection for the event and input logs.
type Client struct {
	db *sql.DB
}

// New connects using dsn, or the PG* environment variables when dsn is empty.
func New(dsn string) (*Client, error) {
	if dsn == "" {
		dsn = dsnFromEnv()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db}
	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func dsnFromEnv() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "reel")
	dbname := getEnv("PGDATABASE", "reel")
	password := os.Getenv("PGPASSWORD")

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			session_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);

		CREATE TABLE IF NOT EXISTS sessions (
			session_id  TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			start_node  TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			deleted_at  TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS session_inputs (
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			ts         TIMESTAMPTZ NOT NULL,
			input      JSONB NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var sessionPtr *string
	if sessionID != "" {
		sessionPtr = &sessionID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, sessionPtr)
	return err
}

// Query returns the last N events from the database in descending order by timestamp.
func (c *Client) Query(limit int) ([]storage.EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, session_id
		FROM events
		ORDER BY ts DESC
		LIMIT $1
	`
	rows, err := c.db.Query(query, storage.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []storage.EventRow
	for rows.Next() {
		var e storage.EventRow
		var fieldsJSON []byte
		var msg, sessionID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &sessionID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// CreateSession records a new session.
func (c *Client) CreateSession(ctx context.Context, s storage.SessionRow) error {
	var startPtr *string
	if s.StartNode != "" {
		startPtr = &s.StartNode
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, scenario_id, start_node, created_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.ScenarioID, startPtr, s.CreatedAt)
	return err
}

// AppendInput records the seq-th input applied to a session.
func (c *Client) AppendInput(ctx context.Context, sessionID string, seq int, in playback.Input) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO session_inputs (session_id, seq, ts, input)
		VALUES ($1, $2, $3, $4)
	`, sessionID, seq, time.Now().UTC(), data)
	return err
}

// DeleteSession marks a session as ended. Its inputs are kept for audit.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE sessions SET deleted_at = $2 WHERE session_id = $1 AND deleted_at IS NULL
	`, sessionID, time.Now().UTC())
	return err
}

// ActiveSessions returns every session not yet deleted with its inputs in order.
func (c *Client) ActiveSessions(ctx context.Context) ([]storage.SessionRow, error) {
	rows, err := c.db.QueryContext(ctx, `
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
			id, scenarioID string
			startNode      sql.NullString
			createdAt      time.Time
			seq            sql.NullInt64
			inputJSON      []byte
		)
		if err := rows.Scan(&id, &scenarioID, &startNode, &createdAt, &seq, &inputJSON); err != nil {
			return nil, err
		}

		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, storage.SessionRow{
				ID:         id,
				ScenarioID: scenarioID,
				StartNode:  startNode.String,
				CreatedAt:  createdAt,
			})
		}
		if len(inputJSON) == 0 {
			continue
		}
		var in playback.Input
		if err := json.Unmarshal(inputJSON, &in); err != nil {
			return nil, fmt.Errorf("session %s: failed to unmarshal input: %w", id, err)
		}
		last := &out[len(out)-1]
		last.Inputs = append(last.Inputs, in)
		last.NextSeq = int(seq.Int64) + 1
	}

	return out, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
