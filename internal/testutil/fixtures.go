package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/dom/linklearn/internal/service"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
	credits     domain.Credits
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithCredits sets the starting balance, posted as a SIGNUP ledger entry so
// the user reconciles from the first row.
func (b *UserBuilder) WithCredits(credits domain.Credits) *UserBuilder {
	b.credits = credits
	return b
}

// Build creates the user in the database and returns it with the raw password
func (b *UserBuilder) Build(t *testing.T, repos *repository.Repositories, ledger *service.LedgerService) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
	}

	ctx := context.Background()
	err = repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Create(ctx, user); err != nil {
			return err
		}
		if b.credits == 0 {
			return nil
		}
		entry, err := ledger.Post(ctx, tx, service.PostInput{
			UserID:      user.ID,
			Amount:      b.credits,
			Type:        domain.TransactionSignup,
			Description: "test fixture",
		})
		if err != nil {
			return err
		}
		user.Credits = entry.BalanceAfter
		return nil
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token"`
}

// BuildAndAuthenticate registers the user through the API and returns it with
// an access token. The balance is the configured signup bonus.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"display_name": b.displayName,
		"password":     b.password,
	})

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	return &authResp.User, authResp.AccessToken
}

// CreateSession opens an active session between two users through the service
func CreateSession(t *testing.T, services *service.Services, user1, user2 *domain.User) *domain.Session {
	t.Helper()

	session, _, err := services.Session.CreateSession(context.Background(), user1.ID, user2.ID, nil)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

// Teach runs the teaching timer for user for the given seconds on clock.
func Teach(t *testing.T, services *service.Services, clock *Clock, sessionID uuid.UUID, user *domain.User, seconds int64) {
	t.Helper()

	ctx := context.Background()
	if _, err := services.Timer.StartTimer(ctx, sessionID, user.ID, config.TimerPolicyReject); err != nil {
		t.Fatalf("failed to start timer: %v", err)
	}
	clock.Advance(time.Duration(seconds) * time.Second)
	if _, err := services.Timer.StopTimer(ctx, sessionID, user.ID); err != nil {
		t.Fatalf("failed to stop timer: %v", err)
	}
}

// CreateAuthenticatedRequest creates an HTTP request with a JSON body and
// bearer token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	bodyReader := bytes.NewBuffer(nil)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// Do sends an authenticated request and returns the response. The body is
// closed when the test ends.
func Do(t *testing.T, method, url string, body interface{}, token string) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(CreateAuthenticatedRequest(t, method, url, body, token))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
