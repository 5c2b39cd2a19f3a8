package handlers_test

import (
	"net/http"
	"testing"

	"github.com/dom/linklearn/internal/api/handlers"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditsHandler_Transactions(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().WithDisplayName("saver").BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedLen    int
	}{
		{"all types", "", http.StatusOK, 1},
		{"signup only", "?type=SIGNUP", http.StatusOK, 1},
		{"teaching only", "?type=TEACHING", http.StatusOK, 0},
		{"unknown type", "?type=GIFT", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, http.MethodGet, ts.APIURL("/credits/transactions"+tt.query), nil, token)
			if tt.expectedStatus != http.StatusOK {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, "INVALID_TRANSACTION_TYPE")
				return
			}

			require.Equal(t, http.StatusOK, resp.StatusCode)
			var entries []domain.LedgerEntry
			testutil.AssertJSONResponse(t, resp, &entries)
			assert.Len(t, entries, tt.expectedLen)
		})
	}
}

func TestCreditsHandler_BalanceRendersTwoDecimals(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := testutil.Do(t, http.MethodGet, ts.APIURL("/credits"), nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	testutil.AssertJSONResponse(t, resp, &raw)
	assert.Equal(t, 15.0, raw["credits"])
}

func TestPresenceHandler_HeartbeatAndOnline(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	_, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)

	resp := testutil.Do(t, http.MethodPost, ts.APIURL("/presence/heartbeat"), nil, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var beat handlers.HeartbeatResponse
	testutil.AssertJSONResponse(t, resp, &beat)
	assert.Equal(t, "online", beat.Status)

	resp = testutil.Do(t, http.MethodGet, ts.APIURL("/presence/online"), nil, bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var online []handlers.OnlineUser
	testutil.AssertJSONResponse(t, resp, &online)
	require.Len(t, online, 2)
	assert.Equal(t, alice.ID, online[0].ID, "sorted by display name")

	resp = testutil.Do(t, http.MethodGet, ts.APIURL("/presence/online"), nil, "")
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "NOT_AUTHENTICATED")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := testutil.Do(t, http.MethodGet, ts.BaseURL()+"/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = testutil.Do(t, http.MethodGet, ts.BaseURL()+"/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
