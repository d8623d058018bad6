package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type postgresIdentityRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresIdentityRepo(db *sqlx.DB, log logger.Logger) repository.IdentityStore {
	return &postgresIdentityRepo{db: db, log: log}
}

func (r *postgresIdentityRepo) ResolveOrCreateCustomer(ctx context.Context, customerXID string) (uuid.UUID, error) {
	var ownerID uuid.UUID
	// The no-op update makes RETURNING yield the existing row on conflict.
	const query = `INSERT INTO customers (owner_id, customer_xid, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (customer_xid) DO UPDATE SET customer_xid = EXCLUDED.customer_xid
		RETURNING owner_id`

	if err := r.db.GetContext(ctx, &ownerID, query, uuid.New(), customerXID); err != nil {
		return uuid.Nil, fmt.Errorf("resolve customer: %w", err)
	}
	return ownerID, nil
}

func (r *postgresIdentityRepo) SaveToken(ctx context.Context, ownerID uuid.UUID, token string) (string, error) {
	const query = `UPDATE customers SET token = $2 WHERE owner_id = $1 AND token IS NULL`
	if _, err := r.db.ExecContext(ctx, query, ownerID, token); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	return r.GetToken(ctx, ownerID)
}

func (r *postgresIdentityRepo) GetToken(ctx context.Context, ownerID uuid.UUID) (string, error) {
	var customer models.Customer
	const query = `SELECT owner_id, customer_xid, token, created_at FROM customers WHERE owner_id = $1`
	if err := r.db.GetContext(ctx, &customer, query, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: customer %s", repository.ErrNotFound, ownerID)
		}
		return "", fmt.Errorf("get token: %w", err)
	}
	if customer.Token == nil {
		return "", fmt.Errorf("%w: token for customer %s", repository.ErrNotFound, ownerID)
	}
	return *customer.Token, nil
}

func (r *postgresIdentityRepo) OwnerByToken(ctx context.Context, token string) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := r.db.GetContext(ctx, &ownerID, `SELECT owner_id FROM customers WHERE token = $1`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, repository.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("owner by token: %w", err)
	}
	return ownerID, nil
}
