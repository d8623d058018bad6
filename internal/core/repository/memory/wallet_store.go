package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type walletEntry struct {
	mu           sync.Mutex
	wallet       models.Wallet
	transactions []models.Transaction
}

// WalletStore keeps the ledger in process memory. Each wallet has its own
// mutex; the indexes are sync.Maps, so operations on different wallets never
// contend on a shared lock.
type WalletStore struct {
	wallets    sync.Map // uuid.UUID -> *walletEntry
	owners     sync.Map // owner uuid.UUID -> wallet uuid.UUID
	references sync.Map // reference id -> wallet uuid.UUID
}

func NewWalletStore() *WalletStore {
	return &WalletStore{}
}

var _ repository.LedgerStore = (*WalletStore)(nil)

func (s *WalletStore) CreateWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wallet := models.NewWallet(ownerID)
	s.wallets.Store(wallet.ID, &walletEntry{wallet: *wallet})

	if _, loaded := s.owners.LoadOrStore(ownerID, wallet.ID); loaded {
		s.wallets.Delete(wallet.ID)
		return nil, fmt.Errorf("%w: wallet for owner %s", repository.ErrAlreadyExists, ownerID)
	}

	return wallet, nil
}

func (s *WalletStore) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	walletID, ok := s.owners.Load(ownerID)
	if !ok {
		return nil, fmt.Errorf("%w: wallet for owner %s", repository.ErrNotFound, ownerID)
	}
	entry, err := s.entry(walletID.(uuid.UUID))
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	wallet := entry.wallet
	return &wallet, nil
}

func (s *WalletStore) ApplyTransaction(ctx context.Context, p repository.ApplyParams) (*models.Transaction, decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, decimal.Zero, err
	}

	entry, err := s.entry(p.WalletID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.wallet.Enabled() {
		return nil, decimal.Zero, repository.ErrWalletDisabled
	}

	newBalance := entry.wallet.Balance.Add(p.Direction.Signed(p.Amount))
	if newBalance.IsNegative() {
		return nil, decimal.Zero, repository.ErrInsufficientFunds
	}

	// Reserving the reference is the last step that can fail, so a reserved
	// reference always belongs to an applied transaction.
	if _, loaded := s.references.LoadOrStore(p.ReferenceID, p.WalletID); loaded {
		return nil, decimal.Zero, fmt.Errorf("%w: %s", repository.ErrDuplicateReference, p.ReferenceID)
	}

	transaction := models.Transaction{
		ID:          uuid.New(),
		WalletID:    p.WalletID,
		Direction:   p.Direction,
		Amount:      p.Amount,
		ReferenceID: p.ReferenceID,
		Status:      models.TransactionStatusApplied,
		CommittedAt: p.Now.UTC(),
	}
	entry.transactions = append(entry.transactions, transaction)
	entry.wallet.Balance = newBalance

	return &transaction, newBalance, nil
}

func (s *WalletStore) SetWalletStatus(ctx context.Context, walletID uuid.UUID, status models.WalletStatus, now time.Time) (*models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.entry(walletID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.wallet.Status == status {
		return nil, repository.ErrStatusUnchanged
	}
	changedAt := now.UTC()
	entry.wallet.Status = status
	entry.wallet.StatusChangedAt = &changedAt

	wallet := entry.wallet
	return &wallet, nil
}

func (s *WalletStore) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.entry(walletID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	out := []models.Transaction{}
	for i := len(entry.transactions) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, entry.transactions[i])
	}
	return out, nil
}

func (s *WalletStore) entry(walletID uuid.UUID) (*walletEntry, error) {
	v, ok := s.wallets.Load(walletID)
	if !ok {
		return nil, fmt.Errorf("%w: wallet %s", repository.ErrNotFound, walletID)
	}
	return v.(*walletEntry), nil
}
