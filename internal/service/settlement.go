package service

import (
	"context"
	"fmt"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/repository"
	"github.com/google/uuid"
)

// SettlementEngine converts the finalized teaching time of a session into
// ledger movements. Learners are never charged more than they hold; the bank
// keeps a percentage of every charge.
type SettlementEngine struct {
	ledger           *LedgerService
	secondsPerCredit int64
	bankCutPercent   int64
}

func NewSettlementEngine(ledger *LedgerService, secondsPerCredit, bankCutPercent int64) *SettlementEngine {
	return &SettlementEngine{
		ledger:           ledger,
		secondsPerCredit: secondsPerCredit,
		bankCutPercent:   bankCutPercent,
	}
}

// Settle runs inside the transaction that ended the session. Only stopped
// timers count, so the running timer must be stopped first.
func (e *SettlementEngine) Settle(ctx context.Context, repos *repository.Repositories, session *domain.Session) (*domain.SettlementSummary, []*domain.LedgerEntry, error) {
	users, err := lockParticipants(ctx, repos, session)
	if err != nil {
		return nil, nil, err
	}

	summary := &domain.SettlementSummary{
		SessionID: session.ID,
		User1: domain.ParticipantSettlement{
			UserID:      session.User1ID,
			DisplayName: users[session.User1ID].DisplayName,
		},
		User2: domain.ParticipantSettlement{
			UserID:      session.User2ID,
			DisplayName: users[session.User2ID].DisplayName,
		},
	}

	directions := []struct {
		teacher *domain.ParticipantSettlement
		learner *domain.ParticipantSettlement
	}{
		{&summary.User1, &summary.User2},
		{&summary.User2, &summary.User1},
	}

	var entries []*domain.LedgerEntry
	for _, d := range directions {
		seconds, err := repos.Timer.SumStopped(ctx, session.ID, d.teacher.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("sum teaching time: %w", err)
		}
		d.teacher.TeachingSeconds = seconds

		owed := domain.CreditsForSeconds(seconds, e.secondsPerCredit)
		if owed <= 0 {
			continue
		}

		// balances may have moved in the previous direction
		users, err = lockParticipants(ctx, repos, session)
		if err != nil {
			return nil, nil, err
		}
		learner := users[d.learner.UserID]

		actual := domain.MinCredits(owed, learner.Credits)
		if actual <= 0 {
			continue
		}
		cut := actual.Percent(e.bankCutPercent)
		teacherReceives := actual - cut

		sessionID := session.ID
		spent, err := e.ledger.Post(ctx, repos, PostInput{
			UserID:      d.learner.UserID,
			Amount:      -actual,
			Type:        domain.TransactionLearning,
			SessionID:   &sessionID,
			Description: fmt.Sprintf("Learned from %s for %ds", d.teacher.DisplayName, seconds),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("debit learner: %w", err)
		}
		entries = append(entries, spent)

		if teacherReceives > 0 {
			earned, err := e.ledger.Post(ctx, repos, PostInput{
				UserID:      d.teacher.UserID,
				Amount:      teacherReceives,
				Type:        domain.TransactionTeaching,
				SessionID:   &sessionID,
				Description: fmt.Sprintf("Taught %s for %ds", d.learner.DisplayName, seconds),
			})
			if err != nil {
				return nil, nil, fmt.Errorf("credit teacher: %w", err)
			}
			entries = append(entries, earned)
		}

		if cut > 0 {
			if err := repos.Bank.Add(ctx, cut); err != nil {
				return nil, nil, fmt.Errorf("bank cut: %w", err)
			}
		}

		d.learner.CreditsSpent += actual
		d.teacher.CreditsEarned += teacherReceives
		summary.BankCut += cut
	}

	return summary, entries, nil
}

// lockParticipants reads both users FOR UPDATE in id order.
func lockParticipants(ctx context.Context, repos *repository.Repositories, session *domain.Session) (map[uuid.UUID]*domain.User, error) {
	users := make(map[uuid.UUID]*domain.User, 2)
	for _, id := range session.Participants() {
		u, err := repos.User.GetForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock participant: %w", err)
		}
		users[id] = u
	}
	return users, nil
}
