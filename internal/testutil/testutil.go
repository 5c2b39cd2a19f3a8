package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/api"
	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/repository"
	repoPostgres "github.com/dom/linklearn/internal/repository/postgres"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/websocket"
	"github.com/sethvargo/go-envconfig"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB starts a PostgreSQL container and applies the goose migrations.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_linklearn"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB.DB = db
	testDB.DSN = dsn
	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables and resets the bank for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"session_events",
		"chat_messages",
		"credit_transactions",
		"session_timers",
		"sessions",
		"users",
	}

	if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))).Error; err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	if err := tdb.DB.Exec("UPDATE bank SET total_credits = 0 WHERE id = 1").Error; err != nil {
		t.Fatalf("failed to reset bank: %v", err)
	}
}

// Repos returns repositories bound to the test database
func (tdb *TestDB) Repos() *repository.Repositories {
	return repoPostgres.NewRepositories(tdb.DB)
}

// TestConfig returns the default configuration with a test JWT secret
func TestConfig() *config.Config {
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENVIRONMENT":           "test",
		"JWT_SECRET":            "test-jwt-secret-key-for-testing-only",
		"JWT_EXPIRATION_HOURS":  "1",
		"RATE_LIMIT_PER_MINUTE": "0",
	}))
	if err != nil {
		panic(fmt.Sprintf("test config: %v", err))
	}
	return cfg
}

// Clock is a manually advanced clock for deterministic timer tests
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC().Truncate(time.Microsecond)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Config   *config.Config
}

// NewTestServer creates a complete test server with all dependencies.
// Extra options are applied after the gateway notifier.
func NewTestServer(t *testing.T, opts ...service.Option) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()

	repos := repoPostgres.NewRepositories(testDB.DB)
	relay := websocket.NewLocalRelay()
	gateway := websocket.NewGateway(repos.Event, relay)

	services := service.NewServices(repos, cfg, append([]service.Option{service.WithNotifier(gateway)}, opts...)...)

	hub := websocket.NewHub(services, cfg.TimerPolicyWS)
	go hub.Run()
	relay.Attach(hub.Deliver)

	server := httptest.NewServer(api.NewRouter(services, hub, cfg))

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// SessionSocketURL returns the session WebSocket URL with token
func (ts *TestServer) SessionSocketURL(sessionID, token string) string {
	return fmt.Sprintf("%s/api/v1/ws/sessions/%s?token=%s", ts.wsBase(), sessionID, token)
}

// PresenceSocketURL returns the presence WebSocket URL with token
func (ts *TestServer) PresenceSocketURL(token string) string {
	return fmt.Sprintf("%s/api/v1/ws/presence?token=%s", ts.wsBase(), token)
}

func (ts *TestServer) wsBase() string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http")
}
