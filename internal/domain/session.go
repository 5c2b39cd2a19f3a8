package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SignalRole is the WebRTC role of a participant. user1 calls, user2 answers.
type SignalRole string

const (
	RoleCaller SignalRole = "caller"
	RoleCallee SignalRole = "callee"
)

type Session struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	User1ID         uuid.UUID      `json:"user1_id" gorm:"type:uuid;not null;index"`
	User2ID         uuid.UUID      `json:"user2_id" gorm:"type:uuid;not null;index"`
	RequestID       *uuid.UUID     `json:"request_id" gorm:"type:uuid"`
	StartTime       time.Time      `json:"start_time" gorm:"not null"`
	EndTime         *time.Time     `json:"end_time"`
	IsActive        bool           `json:"is_active" gorm:"not null;index"`
	WhiteboardData  datatypes.JSON `json:"whiteboard_data" gorm:"type:jsonb"`
	CodeData        datatypes.JSON `json:"code_data" gorm:"type:jsonb"`
	SignalData      datatypes.JSON `json:"signal_data" gorm:"type:jsonb"`
	SignalSenderID  *uuid.UUID     `json:"signal_sender_id" gorm:"type:uuid"`
	SignalTimestamp *time.Time     `json:"signal_timestamp"`
	LastSyncByID    *uuid.UUID     `json:"last_sync_by_id" gorm:"type:uuid"`
	LastSyncTime    *time.Time     `json:"last_sync_time"`

	// Relations
	User1 *User `json:"user1,omitempty" gorm:"foreignKey:User1ID"`
	User2 *User `json:"user2,omitempty" gorm:"foreignKey:User2ID"`
}

func (s *Session) IsParticipant(userID uuid.UUID) bool {
	return userID == s.User1ID || userID == s.User2ID
}

// Other returns the participant that is not userID.
func (s *Session) Other(userID uuid.UUID) uuid.UUID {
	if userID == s.User1ID {
		return s.User2ID
	}
	return s.User1ID
}

func (s *Session) RoleOf(userID uuid.UUID) SignalRole {
	if userID == s.User1ID {
		return RoleCaller
	}
	return RoleCallee
}

// Participants returns both user ids in ascending order, the order rows are locked in.
func (s *Session) Participants() [2]uuid.UUID {
	a, b := s.User1ID, s.User2ID
	if b.String() < a.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

// End marks the session ended at now.
func (s *Session) End(now time.Time) {
	s.IsActive = false
	s.EndTime = &now
}
