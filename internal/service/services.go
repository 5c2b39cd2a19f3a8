package service

import (
	"time"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/repository"
)

// Clock returns the current time. Tests substitute a controllable one.
type Clock func() time.Time

type Services struct {
	Auth     *AuthService
	Ledger   *LedgerService
	Timer    *TimerService
	Session  *SessionService
	Sync     *SyncService
	Chat     *ChatService
	Presence *PresenceService
}

type options struct {
	notifier  Notifier
	publisher SettlementPublisher
	clock     Clock
}

type Option func(*options)

// WithNotifier routes session and presence events to n.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithPublisher announces committed settlements through p.
func WithPublisher(p SettlementPublisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func NewServices(repos *repository.Repositories, cfg *config.Config, opts ...Option) *Services {
	o := options{
		notifier:  NopNotifier{},
		publisher: nopPublisher{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ledger := NewLedgerService(repos, o.clock)
	timer := NewTimerService(repos, o.notifier, o.clock)
	settlement := NewSettlementEngine(ledger, cfg.SecondsPerCredit, cfg.BankCutPercent)

	return &Services{
		Auth:     NewAuthService(repos, ledger, cfg, o.clock),
		Ledger:   ledger,
		Timer:    timer,
		Session:  NewSessionService(repos, timer, settlement, o.notifier, o.publisher, o.clock),
		Sync:     NewSyncService(repos, o.notifier, o.clock),
		Chat:     NewChatService(repos, o.notifier, o.clock),
		Presence: NewPresenceService(repos.User, o.notifier, o.clock, cfg.PresenceWindow),
	}
}
