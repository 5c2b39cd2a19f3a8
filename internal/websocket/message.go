package websocket

import (
	"encoding/json"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
)

type MessageType string

const (
	// Client to Server
	MessageTypeTimerStart       MessageType = "timer_start"
	MessageTypeTimerStop        MessageType = "timer_stop"
	MessageTypeEndSession       MessageType = "end_session"
	MessageTypeChatMessage      MessageType = "chat_message"
	MessageTypeTyping           MessageType = "typing"
	MessageTypeCodeUpdate       MessageType = "code_update"
	MessageTypeWhiteboardUpdate MessageType = "whiteboard_update"
	MessageTypeSignal           MessageType = "signal"
	MessageTypeGetCredits       MessageType = "get_credits"
	MessageTypeHeartbeat        MessageType = "heartbeat"

	// Server to Client
	MessageTypeSessionState    MessageType = "session_state"
	MessageTypeUserJoined      MessageType = "user_joined"
	MessageTypeUserLeft        MessageType = "user_left"
	MessageTypeTypingIndicator MessageType = "typing_indicator"
	MessageTypeTimerStarted    MessageType = "timer_started"
	MessageTypeTimerStopped    MessageType = "timer_stopped"
	MessageTypeSessionEnded    MessageType = "session_ended"
	MessageTypeCreditBalance   MessageType = "credit_balance"
	MessageTypePresenceUpdate  MessageType = "presence_update"
	MessageTypeOnlineUsers     MessageType = "online_users"
	MessageTypeHeartbeatAck    MessageType = "heartbeat_ack"
	MessageTypeError           MessageType = "error"
)

// Close codes sent before the socket is dropped.
const (
	CloseNotAuthenticated = 4001
	CloseNotParticipant   = 4003
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	// Seq is the session event id when the message was persisted.
	Seq int64 `json:"seq,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type ChatPayload struct {
	Message string `json:"message"`
}

type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

type SnapshotPayload struct {
	Data json.RawMessage `json:"data"`
}

type SignalPayload struct {
	Signal json.RawMessage `json:"signal"`
}

// Server to Client payloads

type SessionStatePayload struct {
	*service.SessionDetail
	ChatHistory []service.ChatMessageView `json:"chat_history"`
	YourCredits domain.Credits            `json:"your_credits"`
	YourRole    domain.SignalRole         `json:"your_role"`
}

type CreditBalancePayload struct {
	Credits domain.Credits `json:"credits"`
}

type OnlineUsersPayload struct {
	Users []domain.PresenceEvent `json:"users"`
}

type HeartbeatAckPayload struct {
	ServerTime time.Time `json:"server_time"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
