package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction increases or decreases the balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Signed returns amount with the sign this direction applies to a balance.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == DirectionDebit {
		return amount.Neg()
	}
	return amount
}

type TransactionStatus string

// TransactionStatusApplied is the only state a stored transaction can be in:
// rejected transactions are never persisted.
const TransactionStatusApplied TransactionStatus = "applied"

type Transaction struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	WalletID    uuid.UUID         `json:"wallet_id" db:"wallet_id"`
	Direction   Direction         `json:"direction" db:"direction"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	ReferenceID string            `json:"reference_id" db:"reference_id"`
	Status      TransactionStatus `json:"status" db:"status"`
	CommittedAt time.Time         `json:"committed_at" db:"committed_at"`
}
