package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrAlreadyExists      = errors.New("record already exists")
	ErrDuplicateReference = errors.New("duplicate reference id")
	ErrStatusUnchanged    = errors.New("wallet already in requested status")
	ErrWalletDisabled     = errors.New("wallet is disabled")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

// ApplyParams describes a single balance change. Amount is always positive;
// Direction decides the sign.
type ApplyParams struct {
	WalletID    uuid.UUID
	Direction   models.Direction
	Amount      decimal.Decimal
	ReferenceID string
	Now         time.Time
}

// LedgerStore persists wallets and their transactions.
//
// ApplyTransaction is the atomic boundary of the ledger: it serializes on the
// wallet, re-checks the enabled state and, for debits, that the balance stays
// non-negative, inserts the transaction and adjusts the balance as one unit.
// On any error nothing is written.
type LedgerStore interface {
	CreateWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	ApplyTransaction(ctx context.Context, p ApplyParams) (*models.Transaction, decimal.Decimal, error)
	SetWalletStatus(ctx context.Context, walletID uuid.UUID, status models.WalletStatus, now time.Time) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// IdentityStore keeps customer identities and their issued tokens.
type IdentityStore interface {
	ResolveOrCreateCustomer(ctx context.Context, customerXID string) (uuid.UUID, error)
	// SaveToken stores token for owner unless one is already stored, and
	// returns whichever token is stored afterwards.
	SaveToken(ctx context.Context, ownerID uuid.UUID, token string) (string, error)
	GetToken(ctx context.Context, ownerID uuid.UUID) (string, error)
	OwnerByToken(ctx context.Context, token string) (uuid.UUID, error)
}
