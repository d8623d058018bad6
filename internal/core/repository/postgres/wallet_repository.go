package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

const walletColumns = `id, owner_id, status, status_changed_at, balance`

type postgresWalletRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresWalletRepo(db *sqlx.DB, log logger.Logger) repository.LedgerStore {
	return &postgresWalletRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresWalletRepo) CreateWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	wallet := models.NewWallet(ownerID)

	const query = `INSERT INTO wallets (id, owner_id, status, status_changed_at, balance)
		VALUES ($1, $2, $3, NULL, $4)`

	_, err := r.db.ExecContext(ctx, query, wallet.ID, wallet.OwnerID, wallet.Status, wallet.Balance)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: wallet for owner %s", repository.ErrAlreadyExists, ownerID)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	return wallet, nil
}

func (r *postgresWalletRepo) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	err := r.db.GetContext(ctx, &wallet, query, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet for owner %s", repository.ErrNotFound, ownerID)
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}

	return &wallet, nil
}

// ApplyTransaction holds a row lock on the wallet for the whole unit of work,
// so concurrent applies on one wallet run one after another while other
// wallets are unaffected.
func (r *postgresWalletRepo) ApplyTransaction(ctx context.Context, p repository.ApplyParams) (_ *models.Transaction, _ decimal.Decimal, err error) {
	var isCommitted bool
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.log.Error("Error beginning transaction", logger.ErrorField("error", err))
		return nil, decimal.Zero, fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Error("Transaction rollback failed", logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				r.log.Debug("Transaction rolled back", logger.ErrorField("error", err))
			}
		}
	}()

	wallet, err := r.lockWallet(ctx, tx, p.WalletID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if !wallet.Enabled() {
		return nil, decimal.Zero, repository.ErrWalletDisabled
	}

	newBalance := wallet.Balance.Add(p.Direction.Signed(p.Amount))
	if newBalance.IsNegative() {
		return nil, decimal.Zero, repository.ErrInsufficientFunds
	}

	transaction, err := r.createTransaction(ctx, tx, p)
	if err != nil {
		return nil, decimal.Zero, err
	}

	newBalance, err = r.updateBalance(ctx, tx, p)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing transaction", logger.ErrorField("error", err))
		return nil, decimal.Zero, fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return transaction, newBalance, nil
}

func (r *postgresWalletRepo) lockWallet(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &wallet, query, walletID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", repository.ErrNotFound, walletID)
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &wallet, nil
}

func (r *postgresWalletRepo) updateBalance(ctx context.Context, tx *sqlx.Tx, p repository.ApplyParams) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	const updateQuery = `
		UPDATE wallets
		SET balance = balance + $1
		WHERE id = $2
		RETURNING balance
	`
	err := tx.GetContext(ctx, &newBalance, updateQuery, p.Direction.Signed(p.Amount), p.WalletID)
	if err != nil {
		if isCheckViolation(err) {
			return decimal.Zero, repository.ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	return newBalance, nil
}

func (r *postgresWalletRepo) createTransaction(ctx context.Context, tx *sqlx.Tx, p repository.ApplyParams) (*models.Transaction, error) {
	transaction := &models.Transaction{
		ID:          uuid.New(),
		WalletID:    p.WalletID,
		Direction:   p.Direction,
		Amount:      p.Amount,
		ReferenceID: p.ReferenceID,
		Status:      models.TransactionStatusApplied,
		CommittedAt: p.Now.UTC(),
	}

	const query = `INSERT INTO transactions
		(id, wallet_id, direction, amount, reference_id, status, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.ExecContext(ctx, query,
		transaction.ID,
		transaction.WalletID,
		transaction.Direction,
		transaction.Amount,
		transaction.ReferenceID,
		transaction.Status,
		transaction.CommittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateReference, p.ReferenceID)
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	return transaction, nil
}

func (r *postgresWalletRepo) SetWalletStatus(ctx context.Context, walletID uuid.UUID, status models.WalletStatus, now time.Time) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `UPDATE wallets
		SET status = $1, status_changed_at = $2
		WHERE id = $3 AND status <> $1
		RETURNING ` + walletColumns

	err := r.db.GetContext(ctx, &wallet, query, status, now.UTC(), walletID)
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set wallet status: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletID); err != nil {
		return nil, fmt.Errorf("check wallet: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: wallet %s", repository.ErrNotFound, walletID)
	}
	return nil, repository.ErrStatusUnchanged
}

func (r *postgresWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	const query = `SELECT id, wallet_id, direction, amount, reference_id, status, committed_at
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY committed_at DESC, id
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &transactions, query, walletID, limit, offset); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqCheckViolation
}
