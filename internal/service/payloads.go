package service

import (
	"encoding/json"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/google/uuid"
)

type TimerStartedPayload struct {
	TimerID     uuid.UUID `json:"timer_id"`
	TeacherID   uuid.UUID `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	StartTime   time.Time `json:"start_time"`
}

type TimerStoppedPayload struct {
	TimerID      uuid.UUID `json:"timer_id"`
	TeacherID    uuid.UUID `json:"teacher_id"`
	Duration     int64     `json:"duration"`
	NewTotalTime int64     `json:"new_total_time"`
	Preempted    bool      `json:"preempted,omitempty"`
}

type SessionEndedPayload struct {
	EndedBy uuid.UUID                 `json:"ended_by"`
	Summary *domain.SettlementSummary `json:"summary"`
}

type ChatMessageView struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessageView(m *domain.ChatMessage) ChatMessageView {
	v := ChatMessageView{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Message:   m.Message,
		Timestamp: m.Timestamp,
	}
	if m.Sender != nil {
		v.Sender = m.Sender.DisplayName
	}
	return v
}

type TypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

type SnapshotPayload struct {
	UserID uuid.UUID       `json:"user_id"`
	Data   json.RawMessage `json:"data"`
}

type SignalPayload struct {
	SenderID uuid.UUID       `json:"sender_id"`
	Signal   json.RawMessage `json:"signal"`
}

type ParticipantPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}
