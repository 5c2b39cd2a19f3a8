package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Credits     float64 `json:"credits"`
}

type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

type Session struct {
	ID       string `json:"id"`
	User1ID  string `json:"user1_id"`
	User2ID  string `json:"user2_id"`
	IsActive bool   `json:"is_active"`
}

type SessionResponse struct {
	Session Session `json:"session"`
	Created bool    `json:"created"`
}

type Timer struct {
	ID              string `json:"id"`
	TeacherID       string `json:"teacher_id"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type StartTimerResponse struct {
	Timer     Timer  `json:"timer"`
	Preempted *Timer `json:"preempted"`
}

type StopTimerResponse struct {
	Timer        Timer `json:"timer"`
	NewTotalTime int64 `json:"new_total_time"`
}

type Participant struct {
	DisplayName     string  `json:"display_name"`
	TeachingSeconds int64   `json:"teaching_seconds"`
	CreditsEarned   float64 `json:"credits_earned"`
	CreditsSpent    float64 `json:"credits_spent"`
}

type Summary struct {
	SessionID string      `json:"session_id"`
	User1     Participant `json:"user1"`
	User2     Participant `json:"user2"`
	BankCut   float64     `json:"bank_cut"`
}

type Event struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type EventsResponse struct {
	Events []Event `json:"events"`
	LastID int64   `json:"last_id"`
}

type Updates struct {
	User1TeachingSeconds int64   `json:"user1_teaching_seconds"`
	User2TeachingSeconds int64   `json:"user2_teaching_seconds"`
	YourCredits          float64 `json:"your_credits"`
	LastEventID          int64   `json:"last_event_id"`
}

// RegisterUser registers a user with a unique display name
func (c *APIClient) RegisterUser(baseName string) (*User, string, error) {
	body := map[string]string{
		"display_name": fmt.Sprintf("%s_%d", baseName, time.Now().UnixNano()%100000),
		"password":     "testpassword123",
	}

	var result AuthResponse
	if err := c.do(http.MethodPost, "/auth/register", "", body, http.StatusCreated, &result); err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}
	return &result.User, result.AccessToken, nil
}

func (c *APIClient) Me(token string) (*User, error) {
	var user User
	if err := c.do(http.MethodGet, "/auth/me", token, nil, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) CreateSession(token, otherUserID string) (*SessionResponse, error) {
	var result SessionResponse
	body := map[string]string{"user2": otherUserID}
	if err := c.do(http.MethodPost, "/sessions", token, body, 0, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) StartTimer(token, sessionID string) (*StartTimerResponse, error) {
	var result StartTimerResponse
	if err := c.do(http.MethodPost, "/sessions/"+sessionID+"/timer/start", token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) StopTimer(token, sessionID string) (*StopTimerResponse, error) {
	var result StopTimerResponse
	if err := c.do(http.MethodPost, "/sessions/"+sessionID+"/timer/stop", token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) EndSession(token, sessionID string) (*Summary, error) {
	var result struct {
		Summary Summary `json:"summary"`
	}
	if err := c.do(http.MethodPost, "/sessions/"+sessionID+"/end", token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result.Summary, nil
}

func (c *APIClient) Sync(token, sessionID string, body map[string]any) error {
	return c.do(http.MethodPost, "/sessions/"+sessionID+"/sync", token, body, http.StatusOK, nil)
}

func (c *APIClient) SendChat(token, sessionID, message string) error {
	body := map[string]string{"message": message}
	return c.do(http.MethodPost, "/sessions/"+sessionID+"/chat", token, body, http.StatusCreated, nil)
}

func (c *APIClient) Updates(token, sessionID string) (*Updates, error) {
	var result Updates
	if err := c.do(http.MethodGet, "/sessions/"+sessionID+"/updates", token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) Events(token, sessionID string, since int64) (*EventsResponse, error) {
	var result EventsResponse
	path := fmt.Sprintf("/sessions/%s/events?since=%d", sessionID, since)
	if err := c.do(http.MethodGet, path, token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) Heartbeat(token string) error {
	return c.do(http.MethodPost, "/presence/heartbeat", token, nil, http.StatusOK, nil)
}

// HTTP helpers

// do sends the request and decodes a JSON reply into out. want = 0 accepts
// any 2xx status.
func (c *APIClient) do(method, path, token string, body any, want int, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == want
	if want == 0 {
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !ok {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
