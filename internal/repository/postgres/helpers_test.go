package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, repos *repository.Repositories, name string) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  name,
		PasswordHash: "hash",
	}
	require.NoError(t, repos.User.Create(context.Background(), user))
	return user
}

func createSession(t *testing.T, repos *repository.Repositories, a, b *domain.User) *domain.Session {
	t.Helper()

	session := &domain.Session{
		ID:        uuid.New(),
		User1ID:   a.ID,
		User2ID:   b.ID,
		StartTime: time.Now().UTC(),
		IsActive:  true,
	}
	require.NoError(t, repos.Session.Create(context.Background(), session))
	return session
}
