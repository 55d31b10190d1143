package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscriber) (Event, bool) {
	t.Helper()
	select {
	case e := <-sub:
		return e, true
	case <-time.After(100 * time.Millisecond):
		return Event{}, false
	}
}

func TestSubscriberCount(t *testing.T) {
	initial := SubscriberCount()

	all := Subscribe()
	scoped := SubscribeSession("s1")
	if got := SubscriberCount(); got != initial+2 {
		t.Errorf("expected %d subscribers, got %d", initial+2, got)
	}

	Unsubscribe(all)
	Unsubscribe(scoped)
	if got := SubscriberCount(); got != initial {
		t.Errorf("expected %d subscribers after unsubscribe, got %d", initial, got)
	}
}

func TestBroadcastToEverySubscriber(t *testing.T) {
	sub1 := Subscribe()
	sub2 := Subscribe()
	defer Unsubscribe(sub1)
	defer Unsubscribe(sub2)

	Emit("info", "session.started", "", map[string]interface{}{"session_id": "s1", "scenario_id": "intro"})

	for i, sub := range []Subscriber{sub1, sub2} {
		e, ok := receive(t, sub)
		if !ok {
			t.Fatalf("sub%d: timeout waiting for event", i+1)
		}
		if e.Name != "session.started" || e.SessionID != "s1" {
			t.Errorf("sub%d: unexpected event %+v", i+1, e)
		}
	}
}

func TestSessionSubscriptionFilters(t *testing.T) {
	scoped := SubscribeSession("s2")
	defer Unsubscribe(scoped)

	Emit("info", "node.entered", "", map[string]interface{}{"session_id": "s1", "node_id": "A"})
	Emit("info", "system.startup", "", nil)
	Emit("info", "node.entered", "", map[string]interface{}{"session_id": "s2", "node_id": "B"})

	e, ok := receive(t, scoped)
	if !ok {
		t.Fatal("timeout waiting for session event")
	}
	if e.SessionID != "s2" || e.Fields["node_id"] != "B" {
		t.Errorf("expected only the s2 event, got %+v", e)
	}
	if extra, ok := receive(t, scoped); ok {
		t.Errorf("unexpected extra event %+v", extra)
	}
}

func TestRecentEvents(t *testing.T) {
	Clear()

	for i := 0; i < 10; i++ {
		Emit("info", "node.entered", "", map[string]interface{}{"i": i})
	}

	recent := RecentEvents(5)
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent events, got %d", len(recent))
	}
	if recent[0].Fields["i"] != 5 || recent[4].Fields["i"] != 9 {
		t.Errorf("expected events 5..9 oldest first, got %v..%v", recent[0].Fields["i"], recent[4].Fields["i"])
	}
	if got := len(RecentEvents(100)); got != 10 {
		t.Errorf("expected 10 events when requesting 100, got %d", got)
	}
	if got := len(RecentEvents(0)); got != 10 {
		t.Errorf("expected 10 events when requesting 0, got %d", got)
	}
}

func TestRecentSessionEvents(t *testing.T) {
	Clear()

	for i := 0; i < 6; i++ {
		id := "s1"
		if i%2 == 1 {
			id = "s2"
		}
		Emit("info", "node.entered", "", map[string]interface{}{"session_id": id, "i": i})
	}

	got := RecentSessionEvents("s2", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 events for s2, got %d", len(got))
	}
	if got[0].Fields["i"] != 3 || got[1].Fields["i"] != 5 {
		t.Errorf("expected s2 events 3 and 5, got %v and %v", got[0].Fields["i"], got[1].Fields["i"])
	}
	if len(RecentSessionEvents("s3", 10)) != 0 {
		t.Error("expected no events for unknown session")
	}
	if len(RecentSessionEvents("", 0)) != 6 {
		t.Error("empty session id should return everything")
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, name := range []string{"a", "b", "c", "d"} {
		rb.Add(Event{Name: name})
	}

	snap := rb.Snapshot()
	if len(snap) != 3 || snap[0].Name != "b" || snap[2].Name != "d" {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if snap[0].Seq != 2 || snap[2].Seq != 4 {
		t.Errorf("expected seq 2..4, got %d..%d", snap[0].Seq, snap[2].Seq)
	}

	rb.Clear()
	if len(rb.Snapshot()) != 0 {
		t.Error("expected empty buffer after clear")
	}
	if e := rb.Add(Event{Name: "e"}); e.Seq != 5 {
		t.Errorf("seq must keep counting after clear, got %d", e.Seq)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	sub := Subscribe()
	Unsubscribe(sub)

	if _, ok := <-sub; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}

	// A second unsubscribe must not panic on the closed channel.
	Unsubscribe(sub)
}

func TestCloseAllSubscribers(t *testing.T) {
	CloseAllSubscribers()

	subs := []Subscriber{Subscribe(), SubscribeSession("s1"), Subscribe()}
	if SubscriberCount() != 3 {
		t.Errorf("expected 3 subscribers, got %d", SubscriberCount())
	}

	CloseAllSubscribers()

	for i, sub := range subs {
		if _, ok := <-sub; ok {
			t.Errorf("expected subscriber %d to be closed", i)
		}
	}
	if SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after CloseAllSubscribers, got %d", SubscriberCount())
	}
}
