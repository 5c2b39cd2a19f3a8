package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
)

type handlerFunc func(ctx context.Context, h *Hub, c *Client, payload json.RawMessage) error

// Every kind a client may send is listed here. Anything else is answered
// with UNKNOWN_MESSAGE_TYPE.
var sessionHandlers = map[MessageType]handlerFunc{
	MessageTypeTimerStart:       handleTimerStart,
	MessageTypeTimerStop:        handleTimerStop,
	MessageTypeEndSession:       handleEndSession,
	MessageTypeChatMessage:      handleChatMessage,
	MessageTypeTyping:           handleTyping,
	MessageTypeCodeUpdate:       handleCodeUpdate,
	MessageTypeWhiteboardUpdate: handleWhiteboardUpdate,
	MessageTypeSignal:           handleSignal,
	MessageTypeGetCredits:       handleGetCredits,
	MessageTypeHeartbeat:        handleHeartbeat,
}

var presenceHandlers = map[MessageType]handlerFunc{
	MessageTypeHeartbeat:  handleHeartbeat,
	MessageTypeGetCredits: handleGetCredits,
}

func (h *Hub) dispatch(ctx context.Context, c *Client, msg *Message) {
	handler, ok := h.handlers[c.channel][msg.Type]
	if !ok {
		c.sendError("UNKNOWN_MESSAGE_TYPE", "Unknown message type: "+string(msg.Type))
		return
	}
	if err := handler(ctx, h, c, msg.Payload); err != nil {
		c.sendDomainError(err)
	}
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.ErrInvalidPayload
	}
	return nil
}

func handleTimerStart(ctx context.Context, h *Hub, c *Client, _ json.RawMessage) error {
	_, err := h.services.Timer.StartTimer(ctx, c.sessionID, c.userID, h.timerPolicy)
	return err
}

func handleTimerStop(ctx context.Context, h *Hub, c *Client, _ json.RawMessage) error {
	_, err := h.services.Timer.StopTimer(ctx, c.sessionID, c.userID)
	return err
}

func handleEndSession(ctx context.Context, h *Hub, c *Client, _ json.RawMessage) error {
	_, err := h.services.Session.EndSession(ctx, c.sessionID, c.userID)
	return err
}

func handleChatMessage(ctx context.Context, h *Hub, c *Client, payload json.RawMessage) error {
	var p ChatPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	_, err := h.services.Chat.Send(ctx, c.sessionID, c.userID, p.Message)
	return err
}

func handleTyping(ctx context.Context, h *Hub, c *Client, payload json.RawMessage) error {
	var p TypingPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	return h.services.Session.Typing(ctx, c.sessionID, c.userID, p.IsTyping)
}

func handleCodeUpdate(ctx context.Context, h *Hub, c *Client, payload json.RawMessage) error {
	var p SnapshotPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	_, err := h.services.Sync.Sync(ctx, c.sessionID, c.userID, service.SyncInput{Code: p.Data})
	return err
}

func handleWhiteboardUpdate(ctx context.Context, h *Hub, c *Client, payload json.RawMessage) error {
	var p SnapshotPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	_, err := h.services.Sync.Sync(ctx, c.sessionID, c.userID, service.SyncInput{Whiteboard: p.Data})
	return err
}

func handleSignal(ctx context.Context, h *Hub, c *Client, payload json.RawMessage) error {
	var p SignalPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	_, err := h.services.Sync.Sync(ctx, c.sessionID, c.userID, service.SyncInput{Signal: p.Signal})
	return err
}

func handleGetCredits(ctx context.Context, h *Hub, c *Client, _ json.RawMessage) error {
	credits, err := h.services.Ledger.Balance(ctx, c.userID)
	if err != nil {
		return err
	}
	msg, err := NewMessage(MessageTypeCreditBalance, CreditBalancePayload{Credits: credits})
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

func handleHeartbeat(ctx context.Context, h *Hub, c *Client, _ json.RawMessage) error {
	if err := h.services.Presence.Heartbeat(ctx, c.userID); err != nil {
		return err
	}
	msg, err := NewMessage(MessageTypeHeartbeatAck, HeartbeatAckPayload{ServerTime: time.Now().UTC()})
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}
