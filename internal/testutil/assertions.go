package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/dom/linklearn/internal/api/middleware"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies the error envelope's status and code
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedCode string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	var body middleware.ErrorResponse
	AssertJSONResponse(t, resp, &body)
	assert.Equal(t, expectedCode, body.Error.Code, "error code mismatch")
}

// AssertBalance checks a user's stored balance
func AssertBalance(t *testing.T, repos *repository.Repositories, userID uuid.UUID, expected domain.Credits) {
	t.Helper()

	user, err := repos.User.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), user.Credits.String(), "balance of %s", user.DisplayName)
}

// AssertReconciled checks that each user's balance equals the sum of their
// ledger entries and that no balance is negative.
func AssertReconciled(t *testing.T, repos *repository.Repositories, users ...*domain.User) {
	t.Helper()

	ctx := context.Background()
	for _, u := range users {
		stored, err := repos.User.GetByID(ctx, u.ID)
		require.NoError(t, err)
		sum, err := repos.Ledger.SumByUserID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, sum, stored.Credits, "ledger sum for %s", stored.DisplayName)
		assert.GreaterOrEqual(t, int64(stored.Credits), int64(0), "negative balance for %s", stored.DisplayName)
	}
}

// AssertBank checks the bank total
func AssertBank(t *testing.T, repos *repository.Repositories, expected domain.Credits) {
	t.Helper()

	bank, err := repos.Bank.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected.String(), bank.TotalCredits.String(), "bank total")
}
