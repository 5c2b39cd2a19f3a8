package service_test

import (
	"testing"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/testutil"
)

type testEnv struct {
	db        *testutil.TestDB
	repos     *repository.Repositories
	services  *service.Services
	clock     *testutil.Clock
	notifier  *testutil.RecordingNotifier
	publisher *testutil.RecordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	repos := testDB.Repos()
	clock := testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	notifier := &testutil.RecordingNotifier{}
	publisher := &testutil.RecordingPublisher{}

	services := service.NewServices(repos, testutil.TestConfig(),
		service.WithNotifier(notifier),
		service.WithPublisher(publisher),
		service.WithClock(clock.Now),
	)

	return &testEnv{
		db:        testDB,
		repos:     repos,
		services:  services,
		clock:     clock,
		notifier:  notifier,
		publisher: publisher,
	}
}

func (e *testEnv) user(t *testing.T, name string, credits domain.Credits) *domain.User {
	t.Helper()

	u, _ := testutil.NewUserBuilder().
		WithDisplayName(name).
		WithCredits(credits).
		Build(t, e.repos, e.services.Ledger)
	return u
}

// pair creates two users and an active session with the first as user1.
func (e *testEnv) pair(t *testing.T, credits1, credits2 domain.Credits) (*domain.User, *domain.User, *domain.Session) {
	t.Helper()

	a := e.user(t, "alice", credits1)
	b := e.user(t, "bob", credits2)
	return a, b, testutil.CreateSession(t, e.services, a, b)
}
