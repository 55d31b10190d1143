package events

import (
	"sync"
)

// Subscriber represents a channel that receives events.
type Subscriber chan Event

// Broadcaster fans events out to live subscribers (WebSocket clients, the
// player monitor). A subscription may be scoped to one session.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]string // session filter, "" for all
}

var broadcaster = &Broadcaster{
	subscribers: make(map[Subscriber]string),
}

// Subscribe adds a subscriber for every event and returns its channel.
// The channel is buffered; a slow reader drops events instead of blocking Emit.
func Subscribe() Subscriber {
	return SubscribeSession("")
}

// SubscribeSession adds a subscriber that only receives events carrying
// sessionID. An empty sessionID receives everything.
func SubscribeSession(sessionID string) Subscriber {
	ch := make(Subscriber, 64)
	broadcaster.mu.Lock()
	broadcaster.subscribers[ch] = sessionID
	broadcaster.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
// Unsubscribing a channel that was already closed is a no-op.
func Unsubscribe(sub Subscriber) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if _, ok := broadcaster.subscribers[sub]; !ok {
		return
	}
	delete(broadcaster.subscribers, sub)
	close(sub)
}

// CloseAllSubscribers closes every subscriber channel. Called on shutdown.
func CloseAllSubscribers() {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	for sub := range broadcaster.subscribers {
		close(sub)
	}
	broadcaster.subscribers = make(map[Subscriber]string)
}

func broadcast(e Event) {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()

	for sub, sessionID := range broadcaster.subscribers {
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		select {
		case sub <- e:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func SubscriberCount() int {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()
	return len(broadcaster.subscribers)
}

// RecentEvents returns the last n buffered events; n <= 0 returns all.
func RecentEvents(n int) []Event {
	return buffer.Last(n, nil)
}

// RecentSessionEvents returns the last n buffered events of one session.
func RecentSessionEvents(sessionID string, n int) []Event {
	if sessionID == "" {
		return RecentEvents(n)
	}
	return buffer.Last(n, func(e Event) bool { return e.SessionID == sessionID })
}
