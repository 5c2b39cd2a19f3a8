package service

import (
	"context"
	"fmt"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
)

const TransactionHistoryLimit = 50

// LedgerService is the only writer of user balances. Every balance change is
// paired with a ledger entry in the same transaction.
type LedgerService struct {
	repos *repository.Repositories
	now   Clock
}

func NewLedgerService(repos *repository.Repositories, clock Clock) *LedgerService {
	return &LedgerService{repos: repos, now: clock}
}

type PostInput struct {
	UserID      uuid.UUID
	Amount      domain.Credits
	Type        domain.TransactionType
	SessionID   *uuid.UUID
	Description string
}

// Post applies one balance change using repos, which must be bound to the
// caller's transaction.
func (s *LedgerService) Post(ctx context.Context, repos *repository.Repositories, in PostInput) (*domain.LedgerEntry, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("post %q: unknown transaction type", in.Type)
	}

	user, err := repos.User.GetForUpdate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	balance := user.Credits + in.Amount
	if balance < 0 {
		return nil, domain.ErrInsufficientBalance
	}

	if err := repos.User.UpdateCredits(ctx, user.ID, balance); err != nil {
		return nil, fmt.Errorf("update credits: %w", err)
	}

	entry := &domain.LedgerEntry{
		UserID:          user.ID,
		SessionID:       in.SessionID,
		Amount:          in.Amount,
		TransactionType: in.Type,
		BalanceAfter:    balance,
		Description:     in.Description,
		CreatedAt:       s.now(),
	}
	if err := repos.Ledger.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return entry, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID uuid.UUID) (domain.Credits, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// Transactions lists the newest entries of a user, optionally of one type.
func (s *LedgerService) Transactions(ctx context.Context, userID uuid.UUID, txType domain.TransactionType) ([]*domain.LedgerEntry, error) {
	if txType != "" && !txType.Valid() {
		return nil, domain.ErrInvalidTransactionType
	}
	return s.repos.Ledger.GetByUserID(ctx, userID, txType, TransactionHistoryLimit)
}

func (s *LedgerService) Bank(ctx context.Context) (*domain.Bank, error) {
	return s.repos.Bank.Get(ctx)
}

// GrantFromBank moves amount from the bank to a user as a SUPPORT entry.
func (s *LedgerService) GrantFromBank(ctx context.Context, userID uuid.UUID, amount domain.Credits, description string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var entry *domain.LedgerEntry
	err := s.repos.Tx.WithinTransaction(ctx, func(repos *repository.Repositories) error {
		if err := repos.Bank.Deduct(ctx, amount); err != nil {
			return err
		}
		var err error
		entry, err = s.Post(ctx, repos, PostInput{
			UserID:      userID,
			Amount:      amount,
			Type:        domain.TransactionSupport,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLedgerEntries(entry)
	return entry, nil
}
