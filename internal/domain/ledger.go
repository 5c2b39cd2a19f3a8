package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTeaching TransactionType = "TEACHING"
	TransactionLearning TransactionType = "LEARNING"
	TransactionSignup   TransactionType = "SIGNUP"
	TransactionSupport  TransactionType = "SUPPORT"
	TransactionBankCut  TransactionType = "BANK_CUT"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTeaching, TransactionLearning, TransactionSignup, TransactionSupport, TransactionBankCut:
		return true
	}
	return false
}

// LedgerEntry is an append-only record of one balance change.
type LedgerEntry struct {
	ID              int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID          uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	SessionID       *uuid.UUID      `json:"session_id" gorm:"type:uuid;index"`
	Amount          Credits         `json:"amount" gorm:"type:bigint;not null"`
	TransactionType TransactionType `json:"transaction_type" gorm:"type:varchar(16);not null"`
	BalanceAfter    Credits         `json:"balance_after" gorm:"type:bigint;not null"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "credit_transactions"
}

const BankID = 1

// Bank is the singleton platform pool that collects settlement cuts.
type Bank struct {
	ID           int       `json:"-" gorm:"primaryKey"`
	TotalCredits Credits   `json:"total_credits" gorm:"type:bigint;not null;default:0"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Bank) TableName() string {
	return "bank"
}
