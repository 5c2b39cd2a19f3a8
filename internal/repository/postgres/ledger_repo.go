package postgres

import (
	"context"

	"github.com/dom/linklearn/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetByUserID returns the newest entries first. An empty txType matches all types.
func (r *ledgerRepository) GetByUserID(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, limit int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if txType != "" {
		q = q.Where("transaction_type = ?", txType)
	}
	err := q.Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerRepository) SumByUserID(ctx context.Context, userID uuid.UUID) (domain.Credits, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return domain.Credits(total), err
}
