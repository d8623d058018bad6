package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStatus is the enabled/disabled state of a wallet.
type WalletStatus string

const (
	WalletStatusEnabled  WalletStatus = "enabled"
	WalletStatusDisabled WalletStatus = "disabled"
)

func (s WalletStatus) Valid() bool {
	return s == WalletStatusEnabled || s == WalletStatusDisabled
}

// Wallet is the per-owner balance record. Balance is a cache of the signed
// sum of the wallet's applied transactions.
type Wallet struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OwnerID         uuid.UUID       `json:"owner_id" db:"owner_id"`
	Status          WalletStatus    `json:"status" db:"status"`
	StatusChangedAt *time.Time      `json:"status_changed_at" db:"status_changed_at"`
	Balance         decimal.Decimal `json:"balance" db:"balance"`
}

func NewWallet(ownerID uuid.UUID) *Wallet {
	return &Wallet{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Status:  WalletStatusDisabled,
		Balance: decimal.Zero,
	}
}

func (w *Wallet) Enabled() bool {
	return w.Status == WalletStatusEnabled
}
