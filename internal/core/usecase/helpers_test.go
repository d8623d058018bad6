package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/auth"
	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/Nzyazin/miniwallet/internal/core/repository/memory"
	"github.com/Nzyazin/miniwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

type fixture struct {
	store     *memory.WalletStore
	identity  *memory.IdentityStore
	lifecycle usecase.WalletLifecycle
	engine    usecase.TransactionEngine
	query     usecase.WalletQuery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.NewWalletStore(), usecase.NewNoopMetrics())
}

func newFixtureWith(t *testing.T, store *memory.WalletStore, metrics usecase.Metrics) *fixture {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("test-secret")
	require.NoError(t, err)

	log := logger.NewNop()
	identity := memory.NewIdentityStore()
	return &fixture{
		store:     store,
		identity:  identity,
		lifecycle: usecase.NewWalletLifecycle(store, identity, issuer, log, metrics),
		engine:    usecase.NewWalletUsecase(store, log, metrics),
		query:     usecase.NewWalletQuery(store, log, metrics),
	}
}

// enabledOwner runs init and enable for a fresh customer.
func (f *fixture) enabledOwner(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	res, err := f.lifecycle.Initialize(ctx, "customer-"+uuid.NewString())
	require.NoError(t, err)
	_, err = f.lifecycle.Enable(ctx, res.OwnerID, time.Now())
	require.NoError(t, err)
	return res.OwnerID
}

func (f *fixture) balance(t *testing.T, ownerID uuid.UUID) decimal.Decimal {
	t.Helper()
	wallet, err := f.lifecycle.GetStatus(context.Background(), ownerID)
	require.NoError(t, err)
	return wallet.Balance
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// brokenStore fails every call that reaches the ledger after a wallet was found.
type brokenStore struct {
	repository.LedgerStore
}

func (brokenStore) ApplyTransaction(context.Context, repository.ApplyParams) (*models.Transaction, decimal.Decimal, error) {
	return nil, decimal.Zero, errStoreDown
}

func (brokenStore) SetWalletStatus(context.Context, uuid.UUID, models.WalletStatus, time.Time) (*models.Wallet, error) {
	return nil, errStoreDown
}

func (brokenStore) ListTransactions(context.Context, uuid.UUID, int, int) ([]models.Transaction, error) {
	return nil, errStoreDown
}
