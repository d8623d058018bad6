package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type WalletQuery interface {
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

type walletQuery struct {
	store   repository.LedgerStore
	log     logger.Logger
	metrics Metrics
}

func NewWalletQuery(store repository.LedgerStore, log logger.Logger, metrics Metrics) WalletQuery {
	return &walletQuery{store: store, log: log, metrics: metrics}
}

// ListTransactions returns the owner's transactions newest first. A zero
// limit means DefaultPageLimit; larger limits are capped at MaxPageLimit.
func (q *walletQuery) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) (_ []models.Transaction, err error) {
	defer func(started time.Time) { q.metrics.ObserveOperation("list_transactions", started, err) }(time.Now())

	if limit < 0 || offset < 0 {
		return nil, ErrInvalidInput.Wrap(errors.New("limit and offset must not be negative"))
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	wallet, err := lookupWallet(ctx, q.store, q.log, ownerID)
	if err != nil {
		return nil, err
	}

	transactions, err := q.store.ListTransactions(ctx, wallet.ID, limit, offset)
	if err != nil {
		q.log.Error("Transaction listing failed",
			logger.ErrorField("error", err),
			logger.StringField("wallet_id", wallet.ID.String()))
		return nil, ErrStorage.Wrap(err)
	}
	return transactions, nil
}
