package testutil

import (
	"context"
	"sync"

	"github.com/dom/linklearn/internal/domain"
)

// RecordingNotifier captures published events for assertions
type RecordingNotifier struct {
	mu       sync.Mutex
	events   []domain.Event
	presence []domain.PresenceEvent
}

func (n *RecordingNotifier) Publish(_ context.Context, evt domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *RecordingNotifier) PublishPresence(_ context.Context, evt domain.PresenceEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.presence = append(n.presence, evt)
}

// Types returns the types of the recorded session events in order
func (n *RecordingNotifier) Types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]domain.EventType, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

// Last returns the most recent event of type t
func (n *RecordingNotifier) Last(t domain.EventType) (domain.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Type == t {
			return n.events[i], true
		}
	}
	return domain.Event{}, false
}

func (n *RecordingNotifier) Presence() []domain.PresenceEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.PresenceEvent(nil), n.presence...)
}

func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
	n.presence = nil
}

// RecordingPublisher captures settlement summaries
type RecordingPublisher struct {
	mu        sync.Mutex
	Summaries []*domain.SettlementSummary
}

func (p *RecordingPublisher) PublishSettlement(_ context.Context, s *domain.SettlementSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Summaries = append(p.Summaries, s)
	return nil
}

func (p *RecordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Summaries)
}
