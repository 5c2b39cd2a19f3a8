package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/api/handlers"
	"github.com/dom/linklearn/internal/api/middleware"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	ts         *testutil.TestServer
	clock      *testutil.Clock
	alice, bob *domain.User
	aliceToken string
	bobToken   string
}

func newPair(t *testing.T) *pair {
	t.Helper()

	clock := testutil.NewClock(time.Now().UTC().Truncate(time.Second))
	ts := testutil.NewTestServer(t, service.WithClock(clock.Now))
	alice, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	bob, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)

	return &pair{ts: ts, clock: clock, alice: alice, bob: bob, aliceToken: aliceToken, bobToken: bobToken}
}

func (p *pair) session(t *testing.T) *domain.Session {
	t.Helper()

	resp := testutil.Do(t, http.MethodPost, p.ts.APIURL("/sessions"), map[string]string{"user2": p.bob.ID.String()}, p.aliceToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result handlers.SessionResponse
	testutil.AssertJSONResponse(t, resp, &result)
	return result.Session
}

func (p *pair) url(sessionID uuid.UUID, suffix string) string {
	return p.ts.APIURL(fmt.Sprintf("/sessions/%s%s", sessionID, suffix))
}

func TestSessionHandler_Create(t *testing.T) {
	p := newPair(t)
	requestID := uuid.New().String()

	resp := testutil.Do(t, http.MethodPost, p.ts.APIURL("/sessions"), map[string]any{
		"user2":      p.bob.ID.String(),
		"request_id": requestID,
	}, p.aliceToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var first handlers.SessionResponse
	testutil.AssertJSONResponse(t, resp, &first)
	assert.True(t, first.Created)
	assert.True(t, first.Session.IsActive)
	require.NotNil(t, first.Session.RequestID)
	assert.Equal(t, requestID, first.Session.RequestID.String())

	resp = testutil.Do(t, http.MethodPost, p.ts.APIURL("/sessions/dm/"+p.alice.ID.String()), nil, p.bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again handlers.SessionResponse
	testutil.AssertJSONResponse(t, resp, &again)
	assert.False(t, again.Created)
	assert.Equal(t, first.Session.ID, again.Session.ID)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedCode   string
	}{
		{"with yourself", map[string]string{"user2": p.alice.ID.String()}, http.StatusBadRequest, "SELF_SESSION"},
		{"unknown user", map[string]string{"user2": uuid.New().String()}, http.StatusNotFound, "USER_NOT_FOUND"},
		{"malformed user id", map[string]string{"user2": "bob"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed request id", map[string]string{"user2": p.bob.ID.String(), "request_id": "x"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, http.MethodPost, p.ts.APIURL("/sessions"), tt.body, p.aliceToken)
			testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
		})
	}

	resp = testutil.Do(t, http.MethodGet, p.ts.APIURL("/sessions"), nil, p.bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []*domain.Session
	testutil.AssertJSONResponse(t, resp, &list)
	assert.Len(t, list, 1)
}

func TestSessionHandler_ErrorEnvelope(t *testing.T) {
	p := newPair(t)
	session := p.session(t)
	_, malloryToken := testutil.NewUserBuilder().WithDisplayName("mallory").BuildAndAuthenticate(t, p.ts)

	resp := testutil.Do(t, http.MethodGet, p.url(session.ID, ""), nil, malloryToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body middleware.ErrorResponse
	testutil.AssertJSONResponse(t, resp, &body)
	assert.Equal(t, "NOT_PARTICIPANT", body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)

	resp = testutil.Do(t, http.MethodGet, p.url(uuid.New(), ""), nil, p.aliceToken)
	testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "SESSION_NOT_FOUND")

	resp = testutil.Do(t, http.MethodGet, p.ts.APIURL("/sessions/not-a-uuid"), nil, p.aliceToken)
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestSessionHandler_TimerPreemptsOverHTTP(t *testing.T) {
	p := newPair(t)
	session := p.session(t)

	resp := testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/start"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var aliceStart handlers.StartTimerResponse
	testutil.AssertJSONResponse(t, resp, &aliceStart)
	assert.Equal(t, p.alice.ID, aliceStart.Timer.TeacherID)
	assert.Nil(t, aliceStart.Preempted)

	p.clock.Advance(30 * time.Second)

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/start"), nil, p.bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bobStart handlers.StartTimerResponse
	testutil.AssertJSONResponse(t, resp, &bobStart)
	assert.Equal(t, p.bob.ID, bobStart.Timer.TeacherID)
	require.NotNil(t, bobStart.Preempted)
	assert.Equal(t, p.alice.ID, bobStart.Preempted.TeacherID)
	assert.Equal(t, int64(30), bobStart.Preempted.DurationSeconds)
	assert.Equal(t, int64(30), bobStart.PreemptedTotal)

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/start"), nil, p.bobToken)
	testutil.AssertErrorResponse(t, resp, http.StatusConflict, "ALREADY_RUNNING")

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/stop"), nil, p.aliceToken)
	testutil.AssertErrorResponse(t, resp, http.StatusConflict, "NOT_OWNER")

	p.clock.Advance(15 * time.Second)
	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/stop"), nil, p.bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped handlers.StopTimerResponse
	testutil.AssertJSONResponse(t, resp, &stopped)
	assert.Equal(t, int64(15), stopped.NewTotalTime)

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/stop"), nil, p.bobToken)
	testutil.AssertErrorResponse(t, resp, http.StatusConflict, "NO_ACTIVE_TIMER")
}

func TestSessionHandler_PollingFlow(t *testing.T) {
	p := newPair(t)
	session := p.session(t)

	resp := testutil.Do(t, http.MethodPost, p.url(session.ID, "/chat"), map[string]string{"message": "can you explain goroutines?"}, p.bobToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent service.ChatMessageView
	testutil.AssertJSONResponse(t, resp, &sent)
	assert.Equal(t, "bob", sent.Sender)

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/sync"), map[string]any{
		"code_data": map[string]string{"code": "go work()", "source": "bob-tab"},
		"signal":    map[string]string{"type": "offer", "sdp": "v=0"},
	}, p.bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = testutil.Do(t, http.MethodGet, p.url(session.ID, "/events?since=0"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page handlers.EventsResponse
	testutil.AssertJSONResponse(t, resp, &page)

	var types []string
	for _, e := range page.Events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"chat_message", "code_update", "signal"}, types)
	assert.Equal(t, page.Events[len(page.Events)-1].ID, page.LastID)

	resp = testutil.Do(t, http.MethodGet, p.url(session.ID, fmt.Sprintf("/events?since=%d", page.LastID)), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty handlers.EventsResponse
	testutil.AssertJSONResponse(t, resp, &empty)
	assert.Empty(t, empty.Events)
	assert.Equal(t, page.LastID, empty.LastID)

	resp = testutil.Do(t, http.MethodGet, p.url(session.ID, "/updates"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updates service.SessionUpdates
	testutil.AssertJSONResponse(t, resp, &updates)
	assert.JSONEq(t, `{"code":"go work()"}`, string(updates.CodeData))
	assert.Equal(t, domain.Credits(1500), updates.YourCredits)
	assert.Equal(t, page.LastID, updates.LastEventID)

	mailbox, err := domain.DecodeSignalMailbox(updates.SignalData)
	require.NoError(t, err)
	assert.NotEmpty(t, mailbox.Offer)

	resp = testutil.Do(t, http.MethodGet, p.url(session.ID, "/chat?since_id=0"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []service.ChatMessageView
	testutil.AssertJSONResponse(t, resp, &history)
	require.Len(t, history, 1)

	resp = testutil.Do(t, http.MethodGet, p.url(session.ID, "/events?since=-1"), nil, p.aliceToken)
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/chat"), map[string]string{"message": "  "}, p.bobToken)
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "EMPTY_MESSAGE")
}

func TestSessionHandler_EndSettles(t *testing.T) {
	p := newPair(t)
	session := p.session(t)

	resp := testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/start"), nil, p.bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p.clock.Advance(15 * time.Minute)

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/end"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ended handlers.EndSessionResponse
	testutil.AssertJSONResponse(t, resp, &ended)
	assert.Equal(t, int64(900), ended.Summary.User2.TeachingSeconds)
	assert.Equal(t, domain.Credits(300), ended.Summary.User1.CreditsSpent)
	assert.Equal(t, domain.Credits(270), ended.Summary.User2.CreditsEarned)
	assert.Equal(t, domain.Credits(30), ended.Summary.BankCut)

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/end"), nil, p.bobToken)
	testutil.AssertErrorResponse(t, resp, http.StatusConflict, "ALREADY_ENDED")

	resp = testutil.Do(t, http.MethodPost, p.url(session.ID, "/timer/start"), nil, p.bobToken)
	testutil.AssertErrorResponse(t, resp, http.StatusConflict, "SESSION_NOT_ACTIVE")

	resp = testutil.Do(t, http.MethodGet, p.ts.APIURL("/credits"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance handlers.BalanceResponse
	testutil.AssertJSONResponse(t, resp, &balance)
	assert.Equal(t, domain.Credits(1200), balance.Credits)

	resp = testutil.Do(t, http.MethodGet, p.ts.APIURL("/bank"), nil, p.aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bank domain.Bank
	testutil.AssertJSONResponse(t, resp, &bank)
	assert.Equal(t, domain.Credits(30), bank.TotalCredits)

	testutil.AssertReconciled(t, p.ts.Repos, p.alice, p.bob)
}
