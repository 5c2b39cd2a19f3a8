package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionListLimit = 50
	eventPageLimit   = 100
)

type SessionService struct {
	repos      *repository.Repositories
	timers     *TimerService
	settlement *SettlementEngine
	notifier   Notifier
	publisher  SettlementPublisher
	now        Clock
}

func NewSessionService(
	repos *repository.Repositories,
	timers *TimerService,
	settlement *SettlementEngine,
	notifier Notifier,
	publisher SettlementPublisher,
	clock Clock,
) *SessionService {
	return &SessionService{
		repos:      repos,
		timers:     timers,
		settlement: settlement,
		notifier:   notifier,
		publisher:  publisher,
		now:        clock,
	}
}

// SessionDetail is a session with its live timer state.
type SessionDetail struct {
	*domain.Session
	ActiveTimer          *domain.SessionTimer `json:"active_timer"`
	User1TeachingSeconds int64                `json:"user1_teaching_seconds"`
	User2TeachingSeconds int64                `json:"user2_teaching_seconds"`
}

// SessionUpdates is the snapshot polled by clients without a socket.
type SessionUpdates struct {
	SessionDetail
	YourCredits domain.Credits `json:"your_credits"`
	LastEventID int64          `json:"last_event_id"`
}

// CreateSession returns the active session of the pair, creating it when none
// exists. created is false when an existing session was returned.
func (s *SessionService) CreateSession(ctx context.Context, initiatorID, otherID uuid.UUID, requestID *uuid.UUID) (*domain.Session, bool, error) {
	if initiatorID == otherID {
		return nil, false, domain.ErrSelfSession
	}
	if _, err := s.repos.User.GetByID(ctx, otherID); err != nil {
		return nil, false, err
	}

	existing, err := s.repos.Session.GetActiveByPair(ctx, initiatorID, otherID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, err
	}

	session := &domain.Session{
		ID:        uuid.New(),
		User1ID:   initiatorID,
		User2ID:   otherID,
		RequestID: requestID,
		StartTime: s.now(),
		IsActive:  true,
	}
	if err := s.repos.Session.Create(ctx, session); err != nil {
		if errors.Is(err, domain.ErrDuplicateActiveSession) {
			// lost the race to a concurrent create
			existing, err := s.repos.Session.GetActiveByPair(ctx, initiatorID, otherID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	created, err := s.repos.Session.GetByID(ctx, session.ID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// GetDMSession opens the direct session between userID and targetID.
func (s *SessionService) GetDMSession(ctx context.Context, userID, targetID uuid.UUID) (*domain.Session, bool, error) {
	return s.CreateSession(ctx, userID, targetID, nil)
}

func (s *SessionService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	return s.repos.Session.GetByUserID(ctx, userID, sessionListLimit, 0)
}

// GetParticipantSession loads a session that userID takes part in.
func (s *SessionService) GetParticipantSession(ctx context.Context, sessionID, userID uuid.UUID) (*domain.Session, error) {
	session, err := s.repos.Session.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*SessionDetail, error) {
	session, err := s.GetParticipantSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, session)
}

func (s *SessionService) detail(ctx context.Context, session *domain.Session) (*SessionDetail, error) {
	active, err := s.timers.GetActiveTimer(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	u1, err := s.timers.GetTeachingTime(ctx, session.ID, session.User1ID)
	if err != nil {
		return nil, err
	}
	u2, err := s.timers.GetTeachingTime(ctx, session.ID, session.User2ID)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{
		Session:              session,
		ActiveTimer:          active,
		User1TeachingSeconds: u1,
		User2TeachingSeconds: u2,
	}, nil
}

// Updates is the poll-mode snapshot of a session.
func (s *SessionService) Updates(ctx context.Context, sessionID, userID uuid.UUID) (*SessionUpdates, error) {
	detail, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	me := detail.Session.User2
	if userID == detail.Session.User1ID {
		me = detail.Session.User1
	}
	var credits domain.Credits
	if me != nil {
		credits = me.Credits
	}

	lastEventID, err := s.repos.Event.LatestID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionUpdates{
		SessionDetail: *detail,
		YourCredits:   credits,
		LastEventID:   lastEventID,
	}, nil
}

// Events returns the broadcasts of a session after the since cursor.
func (s *SessionService) Events(ctx context.Context, sessionID, userID uuid.UUID, since int64) ([]*domain.SessionEvent, error) {
	if _, err := s.GetParticipantSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.repos.Event.Since(ctx, sessionID, since, eventPageLimit)
}

// EndSession stops any running timer, closes the session and settles it, all
// in one transaction. A failed settlement leaves the session active.
func (s *SessionService) EndSession(ctx context.Context, sessionID, userID uuid.UUID) (*domain.SettlementSummary, error) {
	var (
		summary   *domain.SettlementSummary
		entries   []*domain.LedgerEntry
		stopped   *domain.SessionTimer
		stopSum   int64
		settleErr error
	)

	err := s.repos.Tx.WithinTransaction(ctx, func(repos *repository.Repositories) error {
		session, err := repos.Session.GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}
		if !session.IsActive {
			return domain.ErrAlreadyEnded
		}

		now := s.now()
		active, err := repos.Timer.GetActive(ctx, sessionID)
		if err != nil {
			return err
		}
		if active != nil {
			active.Stop(now)
			if err := repos.Timer.Update(ctx, active); err != nil {
				return fmt.Errorf("stop timer: %w", err)
			}
			stopSum, err = repos.Timer.SumStopped(ctx, sessionID, active.TeacherID)
			if err != nil {
				return err
			}
			stopped = active
		}

		session.End(now)
		if err := repos.Session.Update(ctx, session); err != nil {
			return fmt.Errorf("end session: %w", err)
		}

		summary, entries, settleErr = s.settlement.Settle(ctx, repos, session)
		return settleErr
	})
	if err != nil {
		if settleErr != nil {
			metrics.SettlementFailuresTotal.Inc()
			log.Error().Err(settleErr).
				Str("component", "settlement").
				Str("session_id", sessionID.String()).
				Msg("settlement rolled back")
			return nil, fmt.Errorf("%w: %w", domain.ErrSettlementFailed, settleErr)
		}
		return nil, err
	}

	metrics.SettlementsTotal.Inc()
	metrics.RecordLedgerEntries(entries...)

	if stopped != nil {
		s.notifier.Publish(ctx, domain.Event{
			SessionID: sessionID,
			Type:      domain.EventTimerStopped,
			SenderID:  userID,
			Echo:      true,
			Payload: TimerStoppedPayload{
				TimerID:      stopped.ID,
				TeacherID:    stopped.TeacherID,
				Duration:     stopped.DurationSeconds,
				NewTotalTime: stopSum,
			},
		})
	}
	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      domain.EventSessionEnded,
		SenderID:  userID,
		Echo:      true,
		Payload:   SessionEndedPayload{EndedBy: userID, Summary: summary},
	})

	if err := s.publisher.PublishSettlement(ctx, summary); err != nil {
		log.Warn().Err(err).
			Str("component", "settlement").
			Str("session_id", sessionID.String()).
			Msg("publish settlement")
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Int64("user1_teaching_seconds", summary.User1.TeachingSeconds).
		Int64("user2_teaching_seconds", summary.User2.TeachingSeconds).
		Str("bank_cut", summary.BankCut.String()).
		Msg("session settled")

	return summary, nil
}

// EndStaleSessions ends every active session started more than olderThan ago
// through the regular settlement path.
func (s *SessionService) EndStaleSessions(ctx context.Context, olderThan time.Duration) ([]*domain.SettlementSummary, error) {
	sessions, err := s.repos.Session.ListActiveStartedBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}

	var summaries []*domain.SettlementSummary
	for _, session := range sessions {
		summary, err := s.EndSession(ctx, session.ID, session.User1ID)
		if errors.Is(err, domain.ErrAlreadyEnded) {
			continue
		}
		if err != nil {
			return summaries, fmt.Errorf("end session %s: %w", session.ID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *SessionService) Typing(ctx context.Context, sessionID, userID uuid.UUID, isTyping bool) error {
	if _, err := s.GetParticipantSession(ctx, sessionID, userID); err != nil {
		return err
	}
	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      domain.EventTypingIndicator,
		SenderID:  userID,
		Ephemeral: true,
		Payload:   TypingPayload{UserID: userID, IsTyping: isTyping},
	})
	return nil
}

// AnnounceParticipant broadcasts that user joined or left the session group.
func (s *SessionService) AnnounceParticipant(ctx context.Context, sessionID uuid.UUID, user *domain.User, joined bool) {
	eventType := domain.EventUserLeft
	if joined {
		eventType = domain.EventUserJoined
	}
	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      eventType,
		SenderID:  user.ID,
		Echo:      true,
		Payload:   ParticipantPayload{UserID: user.ID, DisplayName: user.DisplayName},
	})
}
