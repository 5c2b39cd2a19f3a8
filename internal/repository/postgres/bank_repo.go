package postgres

import (
	"context"

	"github.com/dom/linklearn/internal/domain"
	"gorm.io/gorm"
)

type bankRepository struct {
	db *gorm.DB
}

func NewBankRepository(db *gorm.DB) *bankRepository {
	return &bankRepository{db: db}
}

func (r *bankRepository) Get(ctx context.Context) (*domain.Bank, error) {
	var bank domain.Bank
	if err := r.db.WithContext(ctx).First(&bank, "id = ?", domain.BankID).Error; err != nil {
		return nil, err
	}
	return &bank, nil
}

func (r *bankRepository) Add(ctx context.Context, amount domain.Credits) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Bank{}).
		Where("id = ?", domain.BankID).
		Update("total_credits", gorm.Expr("total_credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBankMissing
	}
	return nil
}

func (r *bankRepository) Deduct(ctx context.Context, amount domain.Credits) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Bank{}).
		Where("id = ? AND total_credits >= ?", domain.BankID, amount).
		Update("total_credits", gorm.Expr("total_credits - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBankInsufficient
	}
	return nil
}
