package testutil

import (
	"sync"

	"filecat/internal/filecat"
)

// RecordingPublisher records every published event. Safe for concurrent use.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []filecat.Event
}

var _ filecat.Publisher = (*RecordingPublisher)(nil)

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(ev filecat.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// Events returns a copy of all recorded events.
func (p *RecordingPublisher) Events() []filecat.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]filecat.Event(nil), p.events...)
}

// Named returns recorded events with the given name, in publish order.
func (p *RecordingPublisher) Named(name filecat.EventName) []filecat.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []filecat.Event
	for _, ev := range p.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
