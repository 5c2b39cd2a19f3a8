package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
)

// TimerService guards the teaching timer of a session. All mutations lock the
// session row first, so at most one timer runs per session.
type TimerService struct {
	repos    *repository.Repositories
	notifier Notifier
	now      Clock
}

func NewTimerService(repos *repository.Repositories, notifier Notifier, clock Clock) *TimerService {
	return &TimerService{repos: repos, notifier: notifier, now: clock}
}

type StartTimerResult struct {
	Timer *domain.SessionTimer
	// Preempted is the other participant's timer stopped under the preempt policy.
	Preempted *domain.SessionTimer
	// PreemptedTotal is the preempted teacher's stopped total after the stop.
	PreemptedTotal int64
}

type StopTimerResult struct {
	Timer        *domain.SessionTimer
	TotalSeconds int64
}

func (s *TimerService) StartTimer(ctx context.Context, sessionID, userID uuid.UUID, policy config.TimerPolicy) (*StartTimerResult, error) {
	result := &StartTimerResult{}

	err := s.repos.Tx.WithinTransaction(ctx, func(repos *repository.Repositories) error {
		session, err := repos.Session.GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}
		if !session.IsActive {
			return domain.ErrSessionNotActive
		}

		now := s.now()
		active, err := repos.Timer.GetActive(ctx, sessionID)
		if err != nil {
			return err
		}
		if active != nil {
			if active.TeacherID == userID {
				return domain.ErrAlreadyRunning
			}
			if policy != config.TimerPolicyPreempt {
				return domain.ErrTimerLocked
			}
			active.Stop(now)
			if err := repos.Timer.Update(ctx, active); err != nil {
				return fmt.Errorf("stop preempted timer: %w", err)
			}
			total, err := repos.Timer.SumStopped(ctx, sessionID, active.TeacherID)
			if err != nil {
				return err
			}
			result.Preempted = active
			result.PreemptedTotal = total
		}

		timer := &domain.SessionTimer{
			ID:        uuid.New(),
			SessionID: sessionID,
			TeacherID: userID,
			StartTime: now,
		}
		if err := repos.Timer.Create(ctx, timer); err != nil {
			return err
		}
		result.Timer = timer
		return nil
	})
	if err != nil {
		countConflict(err)
		return nil, err
	}

	if result.Preempted != nil {
		s.notifier.Publish(ctx, domain.Event{
			SessionID: sessionID,
			Type:      domain.EventTimerStopped,
			SenderID:  userID,
			Echo:      true,
			Payload: TimerStoppedPayload{
				TimerID:      result.Preempted.ID,
				TeacherID:    result.Preempted.TeacherID,
				Duration:     result.Preempted.DurationSeconds,
				NewTotalTime: result.PreemptedTotal,
				Preempted:    true,
			},
		})
	}

	teacherName := ""
	if teacher, err := s.repos.User.GetByID(ctx, userID); err == nil {
		teacherName = teacher.DisplayName
		result.Timer.Teacher = teacher
	}
	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      domain.EventTimerStarted,
		SenderID:  userID,
		Echo:      true,
		Payload: TimerStartedPayload{
			TimerID:     result.Timer.ID,
			TeacherID:   userID,
			TeacherName: teacherName,
			StartTime:   result.Timer.StartTime,
		},
	})

	return result, nil
}

func (s *TimerService) StopTimer(ctx context.Context, sessionID, userID uuid.UUID) (*StopTimerResult, error) {
	result := &StopTimerResult{}

	err := s.repos.Tx.WithinTransaction(ctx, func(repos *repository.Repositories) error {
		session, err := repos.Session.GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}

		active, err := repos.Timer.GetActive(ctx, sessionID)
		if err != nil {
			return err
		}
		if active == nil {
			return domain.ErrNoActiveTimer
		}
		if active.TeacherID != userID {
			return domain.ErrNotOwner
		}

		active.Stop(s.now())
		if err := repos.Timer.Update(ctx, active); err != nil {
			return fmt.Errorf("stop timer: %w", err)
		}

		total, err := repos.Timer.SumStopped(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		result.Timer = active
		result.TotalSeconds = total
		return nil
	})
	if err != nil {
		countConflict(err)
		return nil, err
	}

	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      domain.EventTimerStopped,
		SenderID:  userID,
		Echo:      true,
		Payload: TimerStoppedPayload{
			TimerID:      result.Timer.ID,
			TeacherID:    userID,
			Duration:     result.Timer.DurationSeconds,
			NewTotalTime: result.TotalSeconds,
		},
	})

	return result, nil
}

func (s *TimerService) GetActiveTimer(ctx context.Context, sessionID uuid.UUID) (*domain.SessionTimer, error) {
	return s.repos.Timer.GetActive(ctx, sessionID)
}

// GetTeachingTime is the stopped total of userID plus the live elapsed time of
// the running timer when userID holds it.
func (s *TimerService) GetTeachingTime(ctx context.Context, sessionID, userID uuid.UUID) (int64, error) {
	total, err := s.repos.Timer.SumStopped(ctx, sessionID, userID)
	if err != nil {
		return 0, err
	}

	active, err := s.repos.Timer.GetActive(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if active != nil && active.TeacherID == userID {
		total += active.Elapsed(s.now())
	}
	return total, nil
}

func countConflict(err error) {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindTimerConflict {
		metrics.TimerConflictsTotal.WithLabelValues(de.Code).Inc()
	}
}
