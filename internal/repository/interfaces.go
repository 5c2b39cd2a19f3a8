package repository

import (
	"context"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	// GetForUpdate reads the user and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateCredits(ctx context.Context, id uuid.UUID, credits domain.Credits) error
	// Touch records a heartbeat and reports whether the user was offline before it.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SetOffline(ctx context.Context, id uuid.UUID) error
	ListSeenSince(ctx context.Context, since time.Time) ([]*domain.User, error)
	// MarkStaleOffline clears is_online for users not seen since before and returns them.
	MarkStaleOffline(ctx context.Context, before time.Time) ([]*domain.User, error)
}

type SessionRepository interface {
	// Create fails with domain.ErrDuplicateActiveSession when the pair already has an active session.
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	GetActiveByPair(ctx context.Context, a, b uuid.UUID) (*domain.Session, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Session, error)
	ListActiveStartedBefore(ctx context.Context, before time.Time) ([]*domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
}

type TimerRepository interface {
	Create(ctx context.Context, timer *domain.SessionTimer) error
	// GetActive returns the running timer of a session or nil.
	GetActive(ctx context.Context, sessionID uuid.UUID) (*domain.SessionTimer, error)
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.SessionTimer, error)
	// SumStopped totals duration_seconds over the stopped timers of teacherID.
	SumStopped(ctx context.Context, sessionID, teacherID uuid.UUID) (int64, error)
	Update(ctx context.Context, timer *domain.SessionTimer) error
}

type LedgerRepository interface {
	Create(ctx context.Context, entry *domain.LedgerEntry) error
	GetByUserID(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, limit int) ([]*domain.LedgerEntry, error)
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.LedgerEntry, error)
	SumByUserID(ctx context.Context, userID uuid.UUID) (domain.Credits, error)
}

type BankRepository interface {
	Get(ctx context.Context) (*domain.Bank, error)
	Add(ctx context.Context, amount domain.Credits) error
	// Deduct fails with domain.ErrBankInsufficient rather than go below zero.
	Deduct(ctx context.Context, amount domain.Credits) error
}

type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// Recent returns the last limit messages in chronological order.
	Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	Since(ctx context.Context, sessionID uuid.UUID, sinceID int64, limit int) ([]*domain.ChatMessage, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *domain.SessionEvent) error
	Since(ctx context.Context, sessionID uuid.UUID, sinceID int64, limit int) ([]*domain.SessionEvent, error)
	LatestID(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// Transactor runs fn with repositories bound to a single database transaction.
// Returning an error from fn rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

type Repositories struct {
	User    UserRepository
	Session SessionRepository
	Timer   TimerRepository
	Ledger  LedgerRepository
	Bank    BankRepository
	Chat    ChatRepository
	Event   EventRepository
	Tx      Transactor
}
