package domain

import (
	"github.com/google/uuid"
)

// EventType names a broadcast a session participant can observe.
type EventType string

const (
	EventUserJoined      EventType = "user_joined"
	EventUserLeft        EventType = "user_left"
	EventChatMessage     EventType = "chat_message"
	EventTypingIndicator EventType = "typing_indicator"
	EventTimerStarted    EventType = "timer_started"
	EventTimerStopped    EventType = "timer_stopped"
	EventSessionEnded    EventType = "session_ended"
	EventCodeUpdate      EventType = "code_update"
	EventWhiteboard      EventType = "whiteboard_update"
	EventSignal          EventType = "signal"
)

// Event is a state change broadcast to a session group.
type Event struct {
	SessionID uuid.UUID
	Type      EventType
	SenderID  uuid.UUID
	// Echo delivers the event back to the sender's own sockets.
	Echo bool
	// Ephemeral events are fanned out but not written to the event log.
	Ephemeral bool
	Payload   any
}

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

type PresenceEvent struct {
	UserID      uuid.UUID      `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Status      PresenceStatus `json:"status"`
}

type ParticipantSettlement struct {
	UserID          uuid.UUID `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	TeachingSeconds int64     `json:"teaching_seconds"`
	CreditsEarned   Credits   `json:"credits_earned"`
	CreditsSpent    Credits   `json:"credits_spent"`
}

// SettlementSummary reports what EndSession moved.
type SettlementSummary struct {
	SessionID uuid.UUID             `json:"session_id"`
	User1     ParticipantSettlement `json:"user1"`
	User2     ParticipantSettlement `json:"user2"`
	BankCut   Credits               `json:"bank_cut"`
}
