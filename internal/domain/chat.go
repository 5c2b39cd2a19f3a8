package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatMessage struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID uuid.UUID `json:"session_id" gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID `json:"sender_id" gorm:"type:uuid;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`

	// Relations
	Sender *User `json:"-" gorm:"foreignKey:SenderID"`
}

// SessionEvent is a persisted broadcast. Its id is the poll cursor.
type SessionEvent struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID uuid.UUID      `json:"session_id" gorm:"type:uuid;not null;index"`
	Type      string         `json:"type" gorm:"type:varchar(32);not null"`
	SenderID  *uuid.UUID     `json:"sender_id" gorm:"type:uuid"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
}
