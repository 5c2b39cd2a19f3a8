package websocket

import (
	"context"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Gateway is the service.Notifier of the server. Session events are written
// to the event log, which is what polling clients read, and then relayed to
// socket clients.
type Gateway struct {
	events repository.EventRepository
	relay  Relay
}

func NewGateway(events repository.EventRepository, relay Relay) *Gateway {
	return &Gateway{events: events, relay: relay}
}

func (g *Gateway) Publish(ctx context.Context, evt domain.Event) {
	ctx = context.WithoutCancel(ctx)

	msg, err := NewMessage(MessageType(evt.Type), evt.Payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(evt.Type)).Msg("encode event")
		return
	}

	if !evt.Ephemeral {
		record := &domain.SessionEvent{
			SessionID: evt.SessionID,
			Type:      string(evt.Type),
			Payload:   datatypes.JSON(msg.Payload),
			CreatedAt: time.Now(),
		}
		if evt.SenderID != uuid.Nil {
			sender := evt.SenderID
			record.SenderID = &sender
		}
		if err := g.events.Create(ctx, record); err != nil {
			log.Warn().Err(err).Str("session_id", evt.SessionID.String()).Msg("persist session event")
		} else {
			msg.Seq = record.ID
		}
	}

	g.send(ctx, &Envelope{
		Scope:     ScopeSession,
		SessionID: evt.SessionID,
		SenderID:  evt.SenderID,
		Echo:      evt.Echo,
		Message:   msg,
	})
}

func (g *Gateway) PublishPresence(ctx context.Context, evt domain.PresenceEvent) {
	msg, err := NewMessage(MessageTypePresenceUpdate, evt)
	if err != nil {
		log.Error().Err(err).Msg("encode presence event")
		return
	}
	g.send(context.WithoutCancel(ctx), &Envelope{
		Scope:    ScopePresence,
		SenderID: evt.UserID,
		Echo:     true,
		Message:  msg,
	})
}

func (g *Gateway) send(ctx context.Context, env *Envelope) {
	if err := g.relay.Publish(ctx, env); err != nil {
		log.Warn().Err(err).Str("scope", string(env.Scope)).Msg("relay broadcast")
	}
}
