package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/dom/linklearn/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Hub owns the sockets of this process, grouped per session plus one
// presence group. Broadcasts arrive through Deliver from the relay.
type Hub struct {
	sessions    map[uuid.UUID]map[*Client]bool
	presence    map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	stop        chan struct{}
	done        chan struct{} // closed when Run() exits
	stopped     bool
	services    *service.Services
	timerPolicy config.TimerPolicy
	handlers    map[Channel]map[MessageType]handlerFunc
	mu          sync.RWMutex
}

func NewHub(services *service.Services, timerPolicy config.TimerPolicy) *Hub {
	return &Hub{
		sessions:    make(map[uuid.UUID]map[*Client]bool),
		presence:    make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		services:    services,
		timerPolicy: timerPolicy,
		handlers: map[Channel]map[MessageType]handlerFunc{
			ChannelSession:  sessionHandlers,
			ChannelPresence: presenceHandlers,
		},
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for _, group := range h.sessions {
				for client := range group {
					client.Close()
				}
			}
			for client := range h.presence {
				client.Close()
			}
			h.sessions = make(map[uuid.UUID]map[*Client]bool)
			h.presence = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				h.add(client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			removed := !h.stopped && h.remove(client)
			h.mu.Unlock()
			if removed {
				client.Close()
				go h.onDisconnect(client)
			}
		}
	}
}

func (h *Hub) add(c *Client) {
	if c.channel == ChannelPresence {
		h.presence[c] = true
	} else {
		group, ok := h.sessions[c.sessionID]
		if !ok {
			group = make(map[*Client]bool)
			h.sessions[c.sessionID] = group
		}
		group[c] = true
	}
	metrics.WSConnections.WithLabelValues(string(c.channel)).Inc()
}

func (h *Hub) remove(c *Client) bool {
	if c.channel == ChannelPresence {
		if !h.presence[c] {
			return false
		}
		delete(h.presence, c)
	} else {
		group := h.sessions[c.sessionID]
		if !group[c] {
			return false
		}
		delete(group, c)
		if len(group) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	metrics.WSConnections.WithLabelValues(string(c.channel)).Dec()
	return true
}

func (h *Hub) onDisconnect(c *Client) {
	ctx := context.Background()
	switch c.channel {
	case ChannelSession:
		h.services.Session.AnnounceParticipant(ctx, c.sessionID, c.user, false)
	case ChannelPresence:
		if err := h.services.Presence.Disconnect(ctx, c.userID); err != nil {
			log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("presence disconnect")
		}
	}
}

// Stop closes every socket and blocks until Run has exited.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister is safe to call after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Deliver fans an envelope out to the matching local sockets.
func (h *Hub) Deliver(env *Envelope) {
	h.mu.RLock()
	var targets []*Client
	switch env.Scope {
	case ScopePresence:
		for c := range h.presence {
			targets = append(targets, c)
		}
	case ScopeSession:
		for c := range h.sessions[env.SessionID] {
			if !env.Echo && c.userID == env.SenderID {
				continue
			}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	if env.Message.Type == MessageTypeSessionEnded {
		h.deliverSessionEnded(env.Message, targets)
		return
	}

	data, err := json.Marshal(env.Message)
	if err != nil {
		log.Error().Err(err).Msg("marshal broadcast")
		return
	}
	for _, c := range targets {
		c.trySend(data)
	}
}

// deliverSessionEnded adds each recipient's fresh balance to the frame.
func (h *Hub) deliverSessionEnded(msg *Message, targets []*Client) {
	ctx := context.Background()
	for _, c := range targets {
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			payload = map[string]any{}
		}
		if credits, err := h.services.Ledger.Balance(ctx, c.userID); err == nil {
			payload["your_credits"] = credits
		}

		personal := *msg
		personal.Payload, _ = json.Marshal(payload)
		c.Send(&personal)
	}
}

// AttachSession joins an authorized participant's socket to the session group.
func (h *Hub) AttachSession(ctx context.Context, c *Client) error {
	detail, err := h.services.Session.GetSession(ctx, c.sessionID, c.userID)
	if err != nil {
		return err
	}
	history, err := h.services.Chat.History(ctx, c.sessionID, c.userID, 0)
	if err != nil {
		return err
	}
	credits, err := h.services.Ledger.Balance(ctx, c.userID)
	if err != nil {
		return err
	}

	views := make([]service.ChatMessageView, 0, len(history))
	for _, m := range history {
		views = append(views, service.NewChatMessageView(m))
	}

	h.Register(c)
	go c.WritePump()

	state, err := NewMessage(MessageTypeSessionState, SessionStatePayload{
		SessionDetail: detail,
		ChatHistory:   views,
		YourCredits:   credits,
		YourRole:      detail.Session.RoleOf(c.userID),
	})
	if err != nil {
		return err
	}
	c.Send(state)

	h.services.Session.AnnounceParticipant(ctx, c.sessionID, c.user, true)
	go c.ReadPump()
	return nil
}

// AttachPresence joins a socket to the presence group and sends it the
// current online list.
func (h *Hub) AttachPresence(ctx context.Context, c *Client) error {
	h.Register(c)
	go c.WritePump()

	if err := h.services.Presence.Connect(ctx, c.userID); err != nil {
		log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("presence connect")
	}

	online, err := h.services.Presence.Online(ctx, c.userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("presence online list")
	}
	users := make([]domain.PresenceEvent, 0, len(online))
	for _, u := range online {
		users = append(users, domain.PresenceEvent{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Status:      domain.PresenceOnline,
		})
	}
	msg, err := NewMessage(MessageTypeOnlineUsers, OnlineUsersPayload{Users: users})
	if err != nil {
		return err
	}
	c.Send(msg)

	go c.ReadPump()
	return nil
}

// SessionClientCount reports the sockets this process holds for a session.
func (h *Hub) SessionClientCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
