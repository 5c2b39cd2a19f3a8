package service

import (
	"context"

	"github.com/dom/linklearn/internal/domain"
)

// Notifier fans events out to the participants of a session. Delivery is best
// effort and never fails the operation that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event domain.Event)
	PublishPresence(ctx context.Context, event domain.PresenceEvent)
}

type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, domain.Event)                 {}
func (NopNotifier) PublishPresence(context.Context, domain.PresenceEvent) {}

// SettlementPublisher hands committed settlements to downstream consumers.
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, summary *domain.SettlementSummary) error
}

type nopPublisher struct{}

func (nopPublisher) PublishSettlement(context.Context, *domain.SettlementSummary) error { return nil }
