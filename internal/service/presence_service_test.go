package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceService_HeartbeatAndOnline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", 0)
	bob := env.user(t, "bob", 0)

	require.NoError(t, env.services.Presence.Heartbeat(ctx, alice.ID))
	require.NoError(t, env.services.Presence.Heartbeat(ctx, alice.ID))

	presence := env.notifier.Presence()
	require.Len(t, presence, 1, "only the transition to online is announced")
	assert.Equal(t, domain.PresenceOnline, presence[0].Status)
	assert.Equal(t, "alice", presence[0].DisplayName)

	env.clock.Advance(30 * time.Second)
	online, err := env.services.Presence.Online(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, online, 2, "listing online heartbeats the caller")

	env.clock.Advance(45 * time.Second)
	online, err = env.services.Presence.Online(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, bob.ID, online[0].ID)
}

func TestPresenceService_SweepMarksStaleUsersOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", 0)
	bob := env.user(t, "bob", 0)

	require.NoError(t, env.services.Presence.Connect(ctx, alice.ID))
	env.clock.Advance(50 * time.Second)
	require.NoError(t, env.services.Presence.Connect(ctx, bob.ID))
	env.clock.Advance(20 * time.Second)
	env.notifier.Reset()

	n, err := env.services.Presence.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	presence := env.notifier.Presence()
	require.Len(t, presence, 1)
	assert.Equal(t, alice.ID, presence[0].UserID)
	assert.Equal(t, domain.PresenceOffline, presence[0].Status)

	n, err = env.services.Presence.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "already offline users are not announced twice")

	require.NoError(t, env.services.Presence.Heartbeat(ctx, alice.ID))
	last := env.notifier.Presence()
	assert.Equal(t, domain.PresenceOnline, last[len(last)-1].Status)
}

func TestPresenceService_Disconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", 0)

	require.NoError(t, env.services.Presence.Connect(ctx, alice.ID))
	require.NoError(t, env.services.Presence.Disconnect(ctx, alice.ID))

	presence := env.notifier.Presence()
	require.Len(t, presence, 2)
	assert.Equal(t, domain.PresenceOffline, presence[1].Status)

	stored, err := env.repos.User.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
}
