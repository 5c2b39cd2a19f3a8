package postgres_test

import (
	"context"
	"testing"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_Queries(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := testDB.Repos()
	ctx := context.Background()

	alice := createUser(t, repos, "alice")
	bob := createUser(t, repos, "bob")
	session := createSession(t, repos, alice, bob)

	entries := []*domain.LedgerEntry{
		{UserID: alice.ID, Amount: 1500, TransactionType: domain.TransactionSignup, BalanceAfter: 1500},
		{UserID: alice.ID, SessionID: &session.ID, Amount: -200, TransactionType: domain.TransactionLearning, BalanceAfter: 1300},
		{UserID: bob.ID, SessionID: &session.ID, Amount: 180, TransactionType: domain.TransactionTeaching, BalanceAfter: 180},
	}
	for _, e := range entries {
		require.NoError(t, repos.Ledger.Create(ctx, e))
		assert.NotZero(t, e.ID)
	}

	t.Run("all types newest first", func(t *testing.T) {
		got, err := repos.Ledger.GetByUserID(ctx, alice.ID, "", 50)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, domain.TransactionLearning, got[0].TransactionType)
	})

	t.Run("filtered by type", func(t *testing.T) {
		got, err := repos.Ledger.GetByUserID(ctx, alice.ID, domain.TransactionSignup, 50)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.Credits(1500), got[0].Amount)
	})

	t.Run("by session", func(t *testing.T) {
		got, err := repos.Ledger.GetBySessionID(ctx, session.ID)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("sum", func(t *testing.T) {
		sum, err := repos.Ledger.SumByUserID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Credits(1300), sum)

		sum, err = repos.Ledger.SumByUserID(ctx, createUser(t, repos, "nobody").ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Credits(0), sum)
	})
}

func TestBankRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := testDB.Repos()
	ctx := context.Background()

	bank, err := repos.Bank.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BankID, bank.ID)
	assert.Equal(t, domain.Credits(0), bank.TotalCredits, "migration seeds an empty bank")

	require.NoError(t, repos.Bank.Add(ctx, 40))
	require.NoError(t, repos.Bank.Add(ctx, 2))
	require.NoError(t, repos.Bank.Deduct(ctx, 12))

	assert.ErrorIs(t, repos.Bank.Deduct(ctx, 31), domain.ErrBankInsufficient)
	assert.ErrorIs(t, repos.Bank.Deduct(ctx, -1), domain.ErrInvalidAmount)

	testutil.AssertBank(t, repos, 30)

	require.NoError(t, testDB.DB.Exec("DELETE FROM bank").Error)
	assert.ErrorIs(t, repos.Bank.Add(ctx, 5), domain.ErrBankMissing)
}
