package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionResult struct {
	Transaction *models.Transaction
	Balance     decimal.Decimal
}

type TransactionEngine interface {
	Credit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, referenceID string, now time.Time) (*TransactionResult, error)
	Debit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, referenceID string, now time.Time) (*TransactionResult, error)
}

type walletUsecase struct {
	repo    repository.LedgerStore
	log     logger.Logger
	metrics Metrics
}

func NewWalletUsecase(repo repository.LedgerStore, log logger.Logger, metrics Metrics) TransactionEngine {
	return &walletUsecase{repo: repo, log: log, metrics: metrics}
}

func (uc *walletUsecase) Credit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, referenceID string, now time.Time) (*TransactionResult, error) {
	return uc.operate(ctx, operation{ownerID, models.DirectionCredit, amount, referenceID, now})
}

func (uc *walletUsecase) Debit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, referenceID string, now time.Time) (*TransactionResult, error) {
	return uc.operate(ctx, operation{ownerID, models.DirectionDebit, amount, referenceID, now})
}

type operation struct {
	ownerID     uuid.UUID
	direction   models.Direction
	amount      decimal.Decimal
	referenceID string
	now         time.Time
}

// operate validates in a fixed order, first failure wins: amount, reference,
// wallet existence, enabled state, funds. The store repeats the last two
// checks under the wallet lock.
func (uc *walletUsecase) operate(ctx context.Context, op operation) (_ *TransactionResult, err error) {
	defer func(started time.Time) { uc.metrics.ObserveOperation(string(op.direction), started, err) }(time.Now())
	uc.logStart(op)

	if !models.ValidAmount(op.amount) {
		return nil, ErrInvalidAmount
	}
	op.referenceID = strings.TrimSpace(op.referenceID)
	if op.referenceID == "" {
		return nil, ErrInvalidInput.Wrap(errors.New("reference_id is required"))
	}

	wallet, err := lookupWallet(ctx, uc.repo, uc.log, op.ownerID)
	if err != nil {
		return nil, err
	}

	if !wallet.Enabled() {
		return nil, ErrWalletDisabled
	}

	if err = uc.checkBalance(wallet, op); err != nil {
		return nil, err
	}

	transaction, balance, err := uc.repo.ApplyTransaction(ctx, repository.ApplyParams{
		WalletID:    wallet.ID,
		Direction:   op.direction,
		Amount:      op.amount,
		ReferenceID: op.referenceID,
		Now:         op.now,
	})
	if err != nil {
		return nil, uc.applyError(err, op)
	}

	uc.metrics.AddApplied(op.direction, op.amount)
	uc.log.Info("Transaction applied",
		logger.StringField("wallet_id", wallet.ID.String()),
		logger.StringField("transaction_id", transaction.ID.String()),
		logger.DecimalField("balance", balance))

	return &TransactionResult{Transaction: transaction, Balance: balance}, nil
}

func (uc *walletUsecase) logStart(op operation) {
	uc.log.Info("Starting operation",
		logger.StringField("owner_id", op.ownerID.String()),
		logger.StringField("type", string(op.direction)),
		logger.DecimalField("amount", op.amount),
		logger.StringField("reference_id", op.referenceID))
}

func (uc *walletUsecase) checkBalance(wallet *models.Wallet, op operation) error {
	if op.direction == models.DirectionDebit && wallet.Balance.LessThan(op.amount) {
		uc.log.Warn("Insufficient funds",
			logger.DecimalField("balance", wallet.Balance),
			logger.DecimalField("requested", op.amount))
		return ErrInsufficientFunds
	}
	return nil
}

func (uc *walletUsecase) applyError(err error, op operation) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateReference):
		uc.log.Warn("Duplicate reference", logger.StringField("reference_id", op.referenceID))
		return ErrDuplicateTransaction
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrWalletDisabled):
		return ErrWalletDisabled
	case errors.Is(err, repository.ErrNotFound):
		return ErrWalletNotFound
	default:
		uc.log.Error("Apply failed",
			logger.ErrorField("error", err),
			logger.StringField("reference_id", op.referenceID))
		return ErrStorage.Wrap(err)
	}
}
