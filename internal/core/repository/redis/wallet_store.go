package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var (
	//go:embed lua/create_wallet.lua
	luaCreateWallet string
	//go:embed lua/apply_transaction.lua
	luaApplyTransaction string
	//go:embed lua/set_status.lua
	luaSetStatus string
)

const (
	applyOK                = 1
	applyWalletMissing     = -1
	applyWalletDisabled    = -2
	applyInsufficientFunds = -3
	applyDuplicateRef      = -4
)

// Hash tags keep every key of one wallet in the same cluster slot. Reference
// keys are global and live in their own slot, so the store needs a
// single-node or sentinel deployment.
func keyWallet(walletID uuid.UUID) string      { return fmt.Sprintf("wallet:{%s}", walletID) }
func keyTransactions(walletID uuid.UUID) string { return fmt.Sprintf("wallet:{%s}:tx", walletID) }
func keyOwnerWallet(ownerID uuid.UUID) string   { return fmt.Sprintf("owner:{%s}:wallet", ownerID) }
func keyReference(ref string) string            { return "reference:" + ref }

type redisWalletStore struct {
	rdb         goredis.UniversalClient
	log         logger.Logger
	scrCreate   *goredis.Script
	scrApply    *goredis.Script
	scrSetState *goredis.Script
}

// NewRedisWalletStore keeps the ledger in Redis. Every mutation is a single
// Lua script, which Redis runs without interleaving other commands.
func NewRedisWalletStore(rdb goredis.UniversalClient, log logger.Logger) repository.LedgerStore {
	return &redisWalletStore{
		rdb:         rdb,
		log:         log,
		scrCreate:   goredis.NewScript(luaCreateWallet),
		scrApply:    goredis.NewScript(luaApplyTransaction),
		scrSetState: goredis.NewScript(luaSetStatus),
	}
}

func (s *redisWalletStore) CreateWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	wallet := models.NewWallet(ownerID)

	keys := []string{keyOwnerWallet(ownerID), keyWallet(wallet.ID)}
	created, err := s.scrCreate.Run(ctx, s.rdb, keys, wallet.ID.String(), ownerID.String(), string(wallet.Status)).Int64()
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if created == 0 {
		return nil, fmt.Errorf("%w: wallet for owner %s", repository.ErrAlreadyExists, ownerID)
	}

	return wallet, nil
}

func (s *redisWalletStore) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	rawID, err := s.rdb.Get(ctx, keyOwnerWallet(ownerID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: wallet for owner %s", repository.ErrNotFound, ownerID)
		}
		return nil, fmt.Errorf("get owner wallet: %w", err)
	}

	walletID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse wallet id %q: %w", rawID, err)
	}
	return s.loadWallet(ctx, walletID)
}

func (s *redisWalletStore) ApplyTransaction(ctx context.Context, p repository.ApplyParams) (*models.Transaction, decimal.Decimal, error) {
	minor, err := models.ToMinorUnits(p.Amount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if p.Direction == models.DirectionDebit {
		minor = -minor
	}

	transaction := &models.Transaction{
		ID:          uuid.New(),
		WalletID:    p.WalletID,
		Direction:   p.Direction,
		Amount:      p.Amount,
		ReferenceID: p.ReferenceID,
		Status:      models.TransactionStatusApplied,
		CommittedAt: p.Now.UTC(),
	}
	payload, err := json.Marshal(transaction)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("encode transaction: %w", err)
	}

	keys := []string{keyWallet(p.WalletID), keyReference(p.ReferenceID), keyTransactions(p.WalletID)}
	raw, err := s.scrApply.Run(ctx, s.rdb, keys, minor, transaction.ID.String(), string(payload)).Slice()
	if err != nil {
		s.log.Error("Apply script failed",
			logger.ErrorField("error", err),
			logger.StringField("wallet_id", p.WalletID.String()),
			logger.Int64Field("delta", minor))
		return nil, decimal.Zero, fmt.Errorf("apply transaction: %w", err)
	}
	if len(raw) != 2 {
		return nil, decimal.Zero, fmt.Errorf("apply transaction: unexpected reply %v", raw)
	}
	code, _ := raw[0].(int64)
	rawBalance, _ := raw[1].(string)
	balance, err := strconv.ParseInt(rawBalance, 10, 64)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("apply transaction: parse balance %q: %w", rawBalance, err)
	}

	switch code {
	case applyOK:
		return transaction, models.FromMinorUnits(balance), nil
	case applyWalletMissing:
		return nil, decimal.Zero, fmt.Errorf("%w: wallet %s", repository.ErrNotFound, p.WalletID)
	case applyWalletDisabled:
		return nil, decimal.Zero, repository.ErrWalletDisabled
	case applyInsufficientFunds:
		return nil, decimal.Zero, repository.ErrInsufficientFunds
	case applyDuplicateRef:
		return nil, decimal.Zero, fmt.Errorf("%w: %s", repository.ErrDuplicateReference, p.ReferenceID)
	default:
		return nil, decimal.Zero, fmt.Errorf("apply transaction: unknown result code %d", code)
	}
}

func (s *redisWalletStore) SetWalletStatus(ctx context.Context, walletID uuid.UUID, status models.WalletStatus, now time.Time) (*models.Wallet, error) {
	changedAt := now.UTC().Format(time.RFC3339Nano)
	code, err := s.scrSetState.Run(ctx, s.rdb, []string{keyWallet(walletID)}, string(status), changedAt).Int64()
	if err != nil {
		return nil, fmt.Errorf("set wallet status: %w", err)
	}

	switch code {
	case -1:
		return nil, fmt.Errorf("%w: wallet %s", repository.ErrNotFound, walletID)
	case 0:
		return nil, repository.ErrStatusUnchanged
	}
	return s.loadWallet(ctx, walletID)
}

func (s *redisWalletStore) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		return []models.Transaction{}, nil
	}

	start := int64(offset)
	items, err := s.rdb.LRange(ctx, keyTransactions(walletID), start, start+int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	transactions := make([]models.Transaction, 0, len(items))
	for _, item := range items {
		var tx models.Transaction
		if err := json.Unmarshal([]byte(item), &tx); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		if !tx.Direction.Valid() {
			return nil, fmt.Errorf("decode transaction %s: unknown direction %q", tx.ID, tx.Direction)
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func (s *redisWalletStore) loadWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	fields, err := s.rdb.HGetAll(ctx, keyWallet(walletID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: wallet %s", repository.ErrNotFound, walletID)
	}
	return decodeWallet(fields)
}

func decodeWallet(fields map[string]string) (*models.Wallet, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("decode wallet id: %w", err)
	}
	ownerID, err := uuid.Parse(fields["owner_id"])
	if err != nil {
		return nil, fmt.Errorf("decode owner id: %w", err)
	}
	minor, err := strconv.ParseInt(fields["balance"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}

	status := models.WalletStatus(fields["status"])
	if !status.Valid() {
		return nil, fmt.Errorf("decode wallet %s: unknown status %q", id, status)
	}

	wallet := &models.Wallet{
		ID:      id,
		OwnerID: ownerID,
		Status:  status,
		Balance: models.FromMinorUnits(minor),
	}
	if raw := fields["status_changed_at"]; raw != "" {
		changedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode status_changed_at: %w", err)
		}
		wallet.StatusChangedAt = &changedAt
	}
	return wallet, nil
}
