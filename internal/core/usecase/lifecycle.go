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
)

type TokenIssuer interface {
	Issue(ownerID uuid.UUID) (string, error)
}

type InitResult struct {
	OwnerID uuid.UUID
	Token   string
}

type WalletLifecycle interface {
	Initialize(ctx context.Context, customerXID string) (*InitResult, error)
	Enable(ctx context.Context, ownerID uuid.UUID, now time.Time) (*models.Wallet, error)
	Disable(ctx context.Context, ownerID uuid.UUID, now time.Time) (*models.Wallet, error)
	GetStatus(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
}

type walletLifecycle struct {
	store    repository.LedgerStore
	identity repository.IdentityStore
	tokens   TokenIssuer
	log      logger.Logger
	metrics  Metrics
}

func NewWalletLifecycle(
	store repository.LedgerStore,
	identity repository.IdentityStore,
	tokens TokenIssuer,
	log logger.Logger,
	metrics Metrics,
) WalletLifecycle {
	return &walletLifecycle{
		store:    store,
		identity: identity,
		tokens:   tokens,
		log:      log,
		metrics:  metrics,
	}
}

// Initialize creates the wallet of a customer. A customer who already has a
// wallet gets ErrWalletAlreadyExists and no token.
func (uc *walletLifecycle) Initialize(ctx context.Context, customerXID string) (_ *InitResult, err error) {
	defer func(started time.Time) { uc.metrics.ObserveOperation("init", started, err) }(time.Now())

	customerXID = strings.TrimSpace(customerXID)
	if customerXID == "" {
		return nil, ErrInvalidInput.Wrap(errors.New("customer_xid is required"))
	}

	ownerID, err := uc.identity.ResolveOrCreateCustomer(ctx, customerXID)
	if err != nil {
		uc.log.Error("Customer resolution failed",
			logger.ErrorField("error", err),
			logger.StringField("customer_xid", customerXID))
		return nil, ErrStorage.Wrap(err)
	}

	// The token is stored before the wallet, so a failed wallet insert can be
	// retried by calling init again.
	token, err := uc.issueOrGetToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if _, err = uc.store.CreateWallet(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			uc.log.Warn("Wallet already exists", logger.StringField("owner_id", ownerID.String()))
			return nil, ErrWalletAlreadyExists
		}
		uc.log.Error("Wallet creation failed",
			logger.ErrorField("error", err),
			logger.StringField("owner_id", ownerID.String()))
		return nil, ErrStorage.Wrap(err)
	}

	uc.log.Info("Wallet created", logger.StringField("owner_id", ownerID.String()))
	return &InitResult{OwnerID: ownerID, Token: token}, nil
}

func (uc *walletLifecycle) issueOrGetToken(ctx context.Context, ownerID uuid.UUID) (string, error) {
	token, err := uc.identity.GetToken(ctx, ownerID)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", ErrStorage.Wrap(err)
	}

	issued, err := uc.tokens.Issue(ownerID)
	if err != nil {
		return "", ErrStorage.Wrap(err)
	}
	token, err = uc.identity.SaveToken(ctx, ownerID, issued)
	if err != nil {
		return "", ErrStorage.Wrap(err)
	}
	return token, nil
}

func (uc *walletLifecycle) Enable(ctx context.Context, ownerID uuid.UUID, now time.Time) (_ *models.Wallet, err error) {
	defer func(started time.Time) { uc.metrics.ObserveOperation("enable", started, err) }(time.Now())
	return uc.setStatus(ctx, ownerID, models.WalletStatusEnabled, now)
}

func (uc *walletLifecycle) Disable(ctx context.Context, ownerID uuid.UUID, now time.Time) (_ *models.Wallet, err error) {
	defer func(started time.Time) { uc.metrics.ObserveOperation("disable", started, err) }(time.Now())
	return uc.setStatus(ctx, ownerID, models.WalletStatusDisabled, now)
}

func (uc *walletLifecycle) setStatus(ctx context.Context, ownerID uuid.UUID, status models.WalletStatus, now time.Time) (*models.Wallet, error) {
	unchanged := ErrAlreadyDisabled
	if status == models.WalletStatusEnabled {
		unchanged = ErrAlreadyEnabled
	}

	wallet, err := uc.getWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if wallet.Status == status {
		return nil, unchanged
	}

	// The store repeats the comparison atomically, so only one of two racing
	// toggles wins.
	updated, err := uc.store.SetWalletStatus(ctx, wallet.ID, status, now)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStatusUnchanged):
		return nil, unchanged
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrWalletNotFound
	default:
		uc.log.Error("Status update failed",
			logger.ErrorField("error", err),
			logger.StringField("wallet_id", wallet.ID.String()))
		return nil, ErrStorage.Wrap(err)
	}

	uc.log.Info("Wallet status changed",
		logger.StringField("wallet_id", updated.ID.String()),
		logger.StringField("status", string(updated.Status)))
	return updated, nil
}

func (uc *walletLifecycle) GetStatus(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	return uc.getWallet(ctx, ownerID)
}

func (uc *walletLifecycle) getWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	return lookupWallet(ctx, uc.store, uc.log, ownerID)
}

func lookupWallet(ctx context.Context, store repository.LedgerStore, log logger.Logger, ownerID uuid.UUID) (*models.Wallet, error) {
	wallet, err := store.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		log.Error("Wallet lookup failed",
			logger.ErrorField("error", err),
			logger.StringField("owner_id", ownerID.String()))
		return nil, ErrStorage.Wrap(err)
	}
	return wallet, nil
}
