package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
)

const (
	ChatHistoryLimit = 50
	maxChatLength    = 4000
)

type ChatService struct {
	repos    *repository.Repositories
	notifier Notifier
	now      Clock
}

func NewChatService(repos *repository.Repositories, notifier Notifier, clock Clock) *ChatService {
	return &ChatService{repos: repos, notifier: notifier, now: clock}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *ChatService) Send(ctx context.Context, sessionID, userID uuid.UUID, text string) (*domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	text = truncateUTF8(text, maxChatLength)

	session, err := s.repos.Session.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	if !session.IsActive {
		return nil, domain.ErrSessionNotActive
	}

	msg := &domain.ChatMessage{
		SessionID: sessionID,
		SenderID:  userID,
		Message:   text,
		Timestamp: s.now(),
	}
	if err := s.repos.Chat.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}
	if session.User1 != nil && session.User1.ID == userID {
		msg.Sender = session.User1
	} else {
		msg.Sender = session.User2
	}

	s.notifier.Publish(ctx, domain.Event{
		SessionID: sessionID,
		Type:      domain.EventChatMessage,
		SenderID:  userID,
		Payload:   NewChatMessageView(msg),
	})
	return msg, nil
}

// History returns messages after sinceID, or the latest ChatHistoryLimit
// messages in chronological order when sinceID is zero.
func (s *ChatService) History(ctx context.Context, sessionID, userID uuid.UUID, sinceID int64) ([]*domain.ChatMessage, error) {
	session, err := s.repos.Session.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}

	if sinceID > 0 {
		return s.repos.Chat.Since(ctx, sessionID, sinceID, ChatHistoryLimit)
	}
	return s.repos.Chat.Recent(ctx, sessionID, ChatHistoryLimit)
}
