package events

import "sync"

// RingBuffer keeps the most recent events in memory for late joiners.
type RingBuffer struct {
	mu     sync.RWMutex
	size   int
	events []Event
	index  int
	full   bool
	seq    uint64
}

func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		size:   size,
		events: make([]Event, size),
	}
}

// Add stores e and returns it stamped with the next sequence number.
// Sequence numbers follow buffer order and survive Clear.
func (rb *RingBuffer) Add(e Event) Event {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	e.Seq = rb.seq
	rb.events[rb.index] = e
	rb.index = (rb.index + 1) % rb.size
	if rb.index == 0 {
		rb.full = true
	}
	return e
}

// Snapshot returns every buffered event, oldest first.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Last(0, nil)
}

// Last returns up to n of the newest events accepted by keep, oldest first.
// n <= 0 means no limit and a nil keep accepts everything.
func (rb *RingBuffer) Last(n int, keep func(Event) bool) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	count := rb.index
	if rb.full {
		count = rb.size
	}

	// Walk backwards from the newest entry so the limit applies to matches.
	var out []Event
	for i := 0; i < count; i++ {
		if n > 0 && len(out) == n {
			break
		}
		e := rb.events[(rb.index-1-i+rb.size)%rb.size]
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []Event{}
	}
	return out
}

func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.events = make([]Event, rb.size)
	rb.index = 0
	rb.full = false
}
