package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/ReelEngine/internal/events"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dialEvents(t *testing.T, query string) (*websocket.Conn, func()) {
	t.Helper()
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("failed to connect: %v", err)
	}
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", "node.entered", "", map[string]interface{}{"i": i})
	}

	conn, done := dialEvents(t, "")
	defer done()

	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "node.entered" {
			t.Errorf("expected 'node.entered', got '%s'", e.Name)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()
	conn, done := dialEvents(t, "")
	defer done()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "choice.selected", "", map[string]interface{}{"choice_id": "to-C"})
	}()

	e := readEvent(t, conn)
	if e.Name != "choice.selected" {
		t.Errorf("expected 'choice.selected', got '%s'", e.Name)
	}
	if e.Fields["choice_id"] != "to-C" {
		t.Errorf("expected choice_id 'to-C', got '%v'", e.Fields["choice_id"])
	}
}

func TestWebSocketSessionFilter(t *testing.T) {
	events.Clear()
	events.Emit("info", "node.entered", "", map[string]interface{}{"session_id": "other"})
	events.Emit("info", "node.entered", "", map[string]interface{}{"session_id": "mine", "node_id": "A"})

	conn, done := dialEvents(t, "?session=mine")
	defer done()

	if e := readEvent(t, conn); e.SessionID != "mine" || e.Fields["node_id"] != "A" {
		t.Errorf("expected recent event of session mine, got %+v", e)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "playback.terminal", "", map[string]interface{}{"session_id": "other"})
		events.Emit("info", "playback.terminal", "", map[string]interface{}{"session_id": "mine"})
	}()
	if e := readEvent(t, conn); e.SessionID != "mine" || e.Name != "playback.terminal" {
		t.Errorf("expected live event of session mine, got %+v", e)
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	conn, done := dialEvents(t, "")
	defer done()

	waitFor(t, 2*time.Second, func() bool {
		return events.SubscriberCount() == 1
	}, "subscriber to register")

	conn.Close()

	waitFor(t, 5*time.Second, func() bool {
		return events.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
}

func TestEventClientSkipsReplayedEvents(t *testing.T) {
	c := &eventClient{replayed: 5}
	for _, tt := range []struct {
		seq  uint64
		want bool
	}{{4, false}, {5, false}, {6, true}} {
		if got := c.fresh(events.Event{Seq: tt.seq}); got != tt.want {
			t.Errorf("seq %d: expected fresh=%v", tt.seq, tt.want)
		}
	}
}

func TestWebSocketHistoryThenLiveInOrder(t *testing.T) {
	events.Clear()
	for i := 0; i < 3; i++ {
		events.Emit("info", "node.entered", "", map[string]interface{}{"i": i})
	}

	conn, done := dialEvents(t, "")
	defer done()

	var last uint64
	for i := 0; i < 3; i++ {
		last = readEvent(t, conn).Seq
	}
	waitFor(t, time.Second, func() bool { return events.SubscriberCount() > 0 }, "subscriber registered")
	events.Emit("info", "node.entered", "", map[string]interface{}{"i": 3})

	if e := readEvent(t, conn); e.Seq != last+1 {
		t.Errorf("expected live event seq %d after history, got %d", last+1, e.Seq)
	}
}
