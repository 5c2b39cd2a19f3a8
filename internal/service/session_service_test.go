package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_CreateSessionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", 0)
	bob := env.user(t, "bob", 0)
	requestID := uuid.New()

	first, created, err := env.services.Session.CreateSession(ctx, alice.ID, bob.ID, &requestID)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first.RequestID)
	assert.Equal(t, requestID, *first.RequestID)

	again, created, err := env.services.Session.CreateSession(ctx, bob.ID, alice.ID, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	dm, created, err := env.services.Session.GetDMSession(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dm.ID)
}

func TestSessionService_ConcurrentCreatesYieldOneSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", 0)
	bob := env.user(t, "bob", 0)

	const workers = 8
	ids := make(chan uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := alice.ID, bob.ID
			if i%2 == 1 {
				from, to = to, from
			}
			s, _, err := env.services.Session.CreateSession(ctx, from, to, nil)
			if assert.NoError(t, err) {
				ids <- s.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[uuid.UUID]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1, "every caller sees the same active session")
}

func TestSessionService_CreateSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", 0)

	_, _, err := env.services.Session.CreateSession(ctx, alice.ID, alice.ID, nil)
	assert.ErrorIs(t, err, domain.ErrSelfSession)

	_, _, err = env.services.Session.CreateSession(ctx, alice.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSessionService_EndTwiceIsAlreadyEnded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, session := env.pair(t, 1500, 1500)

	testutil.Teach(t, env.services, env.clock, session.ID, alice, 900)

	_, err := env.services.Session.EndSession(ctx, session.ID, bob.ID)
	require.NoError(t, err)

	before, err := env.repos.Ledger.GetBySessionID(ctx, session.ID)
	require.NoError(t, err)

	_, err = env.services.Session.EndSession(ctx, session.ID, alice.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyEnded)

	after, err := env.repos.Ledger.GetBySessionID(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "no new ledger entries")
	assert.Equal(t, 1, env.publisher.Count())

	ended, err := env.repos.Session.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
	require.NotNil(t, ended.EndTime)
	assert.True(t, ended.EndTime.Equal(env.clock.Now()))
}

func TestSessionService_EndRequiresParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, session := env.pair(t, 1500, 1500)
	outsider := env.user(t, "mallory", 0)

	_, err := env.services.Session.EndSession(ctx, session.ID, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = env.services.Session.EndSession(ctx, uuid.New(), outsider.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionService_EndBroadcastsSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, session := env.pair(t, 1500, 1500)

	testutil.Teach(t, env.services, env.clock, session.ID, alice, 300)
	env.notifier.Reset()

	summary, err := env.services.Session.EndSession(ctx, session.ID, bob.ID)
	require.NoError(t, err)

	evt, ok := env.notifier.Last(domain.EventSessionEnded)
	require.True(t, ok)
	assert.True(t, evt.Echo, "session_ended reaches both participants")
	payload, ok := evt.Payload.(service.SessionEndedPayload)
	require.True(t, ok)
	assert.Equal(t, bob.ID, payload.EndedBy)
	assert.Equal(t, summary, payload.Summary)

	require.Equal(t, 1, env.publisher.Count())
	assert.Equal(t, session.ID, env.publisher.Summaries[0].SessionID)
}

func TestSessionService_DetailAndUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, session := env.pair(t, 1500, 800)

	testutil.Teach(t, env.services, env.clock, session.ID, alice, 120)
	_, err := env.services.Timer.StartTimer(ctx, session.ID, bob.ID, config.TimerPolicyReject)
	require.NoError(t, err)
	env.clock.Advance(45 * time.Second)

	detail, err := env.services.Session.GetSession(ctx, session.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), detail.User1TeachingSeconds)
	assert.Equal(t, int64(45), detail.User2TeachingSeconds)
	require.NotNil(t, detail.ActiveTimer)
	assert.Equal(t, bob.ID, detail.ActiveTimer.TeacherID)

	updates, err := env.services.Session.Updates(ctx, session.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Credits(800), updates.YourCredits)

	outsider := env.user(t, "mallory", 0)
	_, err = env.services.Session.GetSession(ctx, session.ID, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	sessions, err := env.services.Session.ListSessions(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSessionService_EndStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob, old := env.pair(t, 1500, 1500)
	testutil.Teach(t, env.services, env.clock, old.ID, alice, 600)

	env.clock.Advance(3 * time.Hour)
	carol := env.user(t, "carol", 1500)
	fresh := testutil.CreateSession(t, env.services, bob, carol)

	summaries, err := env.services.Session.EndStaleSessions(ctx, 2*time.Hour)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, old.ID, summaries[0].SessionID)
	assert.Equal(t, domain.Credits(180), summaries[0].User1.CreditsEarned)

	still, err := env.repos.Session.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, still.IsActive)
	testutil.AssertReconciled(t, env.repos, alice, bob, carol)
}
