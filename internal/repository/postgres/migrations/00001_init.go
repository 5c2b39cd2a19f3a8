package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PasswordHash string     `gorm:"type:text;not null"`
	DisplayName  string     `gorm:"type:text;uniqueIndex;not null"`
	Credits      int64      `gorm:"type:bigint;not null;default:0"`
	IsOnline     bool       `gorm:"not null;default:false"`
	LastSeenAt   *time.Time `gorm:"type:timestamptz;index"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

type Session struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	User1ID         uuid.UUID      `gorm:"type:uuid;not null;index"`
	User2ID         uuid.UUID      `gorm:"type:uuid;not null;index"`
	RequestID       *uuid.UUID     `gorm:"type:uuid"`
	StartTime       time.Time      `gorm:"type:timestamptz;not null"`
	EndTime         *time.Time     `gorm:"type:timestamptz"`
	IsActive        bool           `gorm:"not null;default:true;index"`
	WhiteboardData  datatypes.JSON `gorm:"type:jsonb"`
	CodeData        datatypes.JSON `gorm:"type:jsonb"`
	SignalData      datatypes.JSON `gorm:"type:jsonb"`
	SignalSenderID  *uuid.UUID     `gorm:"type:uuid"`
	SignalTimestamp *time.Time     `gorm:"type:timestamptz"`
	LastSyncByID    *uuid.UUID     `gorm:"type:uuid"`
	LastSyncTime    *time.Time     `gorm:"type:timestamptz"`
	User1           User           `gorm:"foreignKey:User1ID;references:ID;constraint:OnDelete:CASCADE"`
	User2           User           `gorm:"foreignKey:User2ID;references:ID;constraint:OnDelete:CASCADE"`
}

type SessionTimer struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	TeacherID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	StartTime       time.Time  `gorm:"type:timestamptz;not null"`
	EndTime         *time.Time `gorm:"type:timestamptz"`
	DurationSeconds int64      `gorm:"not null;default:0"`
	Session         Session    `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	Teacher         User       `gorm:"foreignKey:TeacherID;references:ID;constraint:OnDelete:CASCADE"`
}

type CreditTransaction struct {
	ID              int64      `gorm:"type:bigserial;primaryKey"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	SessionID       *uuid.UUID `gorm:"type:uuid;index"`
	Amount          int64      `gorm:"type:bigint;not null"`
	TransactionType string     `gorm:"type:varchar(16);not null"`
	BalanceAfter    int64      `gorm:"type:bigint;not null"`
	Description     string     `gorm:"type:text"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	User            User       `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Session         *Session   `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:SET NULL"`
}

type Bank struct {
	ID           int       `gorm:"primaryKey"`
	TotalCredits int64     `gorm:"type:bigint;not null;default:0"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (Bank) TableName() string { return "bank" }

type ChatMessage struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Message   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"type:timestamptz;not null"`
	Session   Session   `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

type SessionEvent struct {
	ID        int64          `gorm:"type:bigserial;primaryKey"`
	SessionID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Type      string         `gorm:"type:varchar(32);not null"`
	SenderID  *uuid.UUID     `gorm:"type:uuid"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now()"`
	Session   Session        `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&Session{},
		&SessionTimer{},
		&CreditTransaction{},
		&Bank{},
		&ChatMessage{},
		&SessionEvent{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&SessionEvent{},
		&ChatMessage{},
		&Bank{},
		&CreditTransaction{},
		&SessionTimer{},
		&Session{},
		&User{},
	)
}
