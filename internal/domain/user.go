package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PasswordHash string     `json:"-" gorm:"not null"`
	DisplayName  string     `json:"display_name" gorm:"uniqueIndex;not null"`
	Credits      Credits    `json:"credits" gorm:"type:bigint;not null;default:0"`
	IsOnline     bool       `json:"is_online" gorm:"not null;default:false"`
	LastSeenAt   *time.Time `json:"last_seen_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsPresent reports whether the user heartbeated within window of now.
func (u *User) IsPresent(now time.Time, window time.Duration) bool {
	return u.LastSeenAt != nil && now.Sub(*u.LastSeenAt) < window
}
