package service

import (
	"context"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PresenceService tracks who is online from heartbeats. A user is present
// while their last heartbeat is younger than the window.
type PresenceService struct {
	users    repository.UserRepository
	notifier Notifier
	now      Clock
	window   time.Duration
}

func NewPresenceService(users repository.UserRepository, notifier Notifier, clock Clock, window time.Duration) *PresenceService {
	return &PresenceService{users: users, notifier: notifier, now: clock, window: window}
}

// Heartbeat records activity and announces users coming back online.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	cameOnline, err := s.users.Touch(ctx, userID, s.now())
	if err != nil {
		return err
	}
	if cameOnline {
		s.announce(ctx, userID, domain.PresenceOnline)
	}
	return nil
}

// Connect is a heartbeat that always announces the user online.
func (s *PresenceService) Connect(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.users.Touch(ctx, userID, s.now()); err != nil {
		return err
	}
	s.announce(ctx, userID, domain.PresenceOnline)
	return nil
}

func (s *PresenceService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.SetOffline(ctx, userID); err != nil {
		return err
	}
	s.announce(ctx, userID, domain.PresenceOffline)
	return nil
}

// Online heartbeats userID and lists every user seen within the window.
func (s *PresenceService) Online(ctx context.Context, userID uuid.UUID) ([]*domain.User, error) {
	if err := s.Heartbeat(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.ListSeenSince(ctx, s.now().Add(-s.window))
}

// Sweep marks users without a recent heartbeat offline and announces them.
func (s *PresenceService) Sweep(ctx context.Context) (int, error) {
	stale, err := s.users.MarkStaleOffline(ctx, s.now().Add(-s.window))
	if err != nil {
		return 0, err
	}
	for _, u := range stale {
		s.notifier.PublishPresence(ctx, domain.PresenceEvent{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Status:      domain.PresenceOffline,
		})
	}
	return len(stale), nil
}

// RunSweeper sweeps every interval until ctx is done.
func (s *PresenceService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Str("component", "presence").Msg("sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("count", n).Str("component", "presence").Msg("marked users offline")
			}
		}
	}
}

func (s *PresenceService) announce(ctx context.Context, userID uuid.UUID, status domain.PresenceStatus) {
	evt := domain.PresenceEvent{UserID: userID, Status: status}
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		evt.DisplayName = u.DisplayName
	}
	s.notifier.PublishPresence(ctx, evt)
}
