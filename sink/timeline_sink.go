package sink

import (
	"context"
	"sync"
	"time"

	"chat-relay/domain/event"
)

// TimelineEntry is one recorded relay event, ready to serialize on the
// debug endpoint.
type TimelineEntry struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// TimelineSink keeps the most recent relay events in a fixed-size ring
// so the debug endpoint can show what the relay has been doing lately.
type TimelineSink struct {
	mu      sync.Mutex
	entries []TimelineEntry
	next    int
	full    bool
}

func NewTimelineSink(capacity int) *TimelineSink {
	if capacity <= 0 {
		capacity = 128
	}
	return &TimelineSink{entries: make([]TimelineEntry, capacity)}
}

// Consume implements the EventSink interface.
func (s *TimelineSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.next] = TimelineEntry{Name: e.Name(), At: e.OccurredAt()}
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent returns the recorded events, oldest first.
func (s *TimelineSink) Recent() []TimelineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TimelineEntry
	if s.full {
		out = append(out, s.entries[s.next:]...)
	}
	out = append(out, s.entries[:s.next]...)
	return out
}
