package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionTimer is one teaching interval. At most one timer per session has a
// nil EndTime.
type SessionTimer struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID       uuid.UUID  `json:"session_id" gorm:"type:uuid;not null;index"`
	TeacherID       uuid.UUID  `json:"teacher_id" gorm:"type:uuid;not null;index"`
	StartTime       time.Time  `json:"start_time" gorm:"not null"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds int64      `json:"duration_seconds" gorm:"not null;default:0"`

	// Relations
	Teacher *User `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

func (t *SessionTimer) IsRunning() bool {
	return t.EndTime == nil
}

// Elapsed is the whole seconds since start, or the recorded duration once stopped.
func (t *SessionTimer) Elapsed(now time.Time) int64 {
	if !t.IsRunning() {
		return t.DurationSeconds
	}
	return wholeSeconds(now.Sub(t.StartTime))
}

// Stop closes the interval at now, truncating to whole seconds.
func (t *SessionTimer) Stop(now time.Time) {
	t.EndTime = &now
	t.DurationSeconds = wholeSeconds(now.Sub(t.StartTime))
}

func wholeSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
