package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SyncService stores the shared whiteboard, code and signalling state of a
// session so polling clients can read what socket clients broadcast.
type SyncService struct {
	repos    *repository.Repositories
	notifier Notifier
	now      Clock
}

func NewSyncService(repos *repository.Repositories, notifier Notifier, clock Clock) *SyncService {
	return &SyncService{repos: repos, notifier: notifier, now: clock}
}

// SyncInput carries any subset of the shared state. Absent or null fields are
// left alone.
type SyncInput struct {
	Whiteboard json.RawMessage `json:"whiteboard_data,omitempty"`
	Code       json.RawMessage `json:"code_data,omitempty"`
	Signal     json.RawMessage `json:"signal,omitempty"`
}

func provided(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (in SyncInput) empty() bool {
	return !provided(in.Whiteboard) && !provided(in.Code) && !provided(in.Signal)
}

func (s *SyncService) Sync(ctx context.Context, sessionID, userID uuid.UUID, in SyncInput) (*domain.Session, error) {
	var (
		whiteboard, code json.RawMessage
		updated          *domain.Session
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
			return domain.ErrSessionNotActive
		}
		if in.empty() {
			updated = session
			return nil
		}

		now := s.now()
		if provided(in.Whiteboard) {
			if whiteboard, err = stripSource(in.Whiteboard); err != nil {
				return err
			}
			session.WhiteboardData = datatypes.JSON(whiteboard)
		}
		if provided(in.Code) {
			if code, err = stripSource(in.Code); err != nil {
				return err
			}
			session.CodeData = datatypes.JSON(code)
		}
		if provided(in.Signal) {
			mailbox, err := domain.DecodeSignalMailbox(session.SignalData)
			if err != nil {
				return err
			}
			if err := mailbox.Apply(session.RoleOf(userID), userID, in.Signal); err != nil {
				return err
			}
			encoded, err := mailbox.Encode()
			if err != nil {
				return err
			}
			session.SignalData = datatypes.JSON(encoded)
			session.SignalSenderID = &userID
			session.SignalTimestamp = &now
		}

		session.LastSyncByID = &userID
		session.LastSyncTime = &now
		if err := repos.Session.Update(ctx, session); err != nil {
			return fmt.Errorf("sync session: %w", err)
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	if whiteboard != nil {
		s.publish(ctx, sessionID, userID, domain.EventWhiteboard, SnapshotPayload{UserID: userID, Data: whiteboard})
	}
	if code != nil {
		s.publish(ctx, sessionID, userID, domain.EventCodeUpdate, SnapshotPayload{UserID: userID, Data: code})
	}
	if provided(in.Signal) {
		s.publish(ctx, sessionID, userID, domain.EventSignal, SignalPayload{SenderID: userID, Signal: in.Signal})
	}

	return updated, nil
}

func (s *SyncService) publish(ctx context.Context, sessionID, userID uuid.UUID, t domain.EventType, payload any) {
	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      t,
		SenderID:  userID,
		Payload:   payload,
	})
}

// stripSource removes the "source" marker a client sets on its own object
// snapshots, so peers do not discard the stored copy as their own echo.
// Arrays, strings and other scalars are stored as sent.
func stripSource(raw json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(raw) {
		return nil, domain.ErrInvalidSnapshot
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, domain.ErrInvalidSnapshot
	}
	delete(fields, "source")
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}
