package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/resolve_customer.lua
	luaResolveCustomer string
	//go:embed lua/save_token.lua
	luaSaveToken string
)

func keyCustomerXID(xid string) string          { return "customer:xid:" + xid }
func keyCustomer(ownerID uuid.UUID) string      { return fmt.Sprintf("customer:{%s}", ownerID) }
func keyCustomerToken(ownerID uuid.UUID) string { return fmt.Sprintf("customer:{%s}:token", ownerID) }
func keyToken(token string) string              { return "token:" + token }

type redisIdentityStore struct {
	rdb        goredis.UniversalClient
	log        logger.Logger
	scrResolve *goredis.Script
	scrToken   *goredis.Script
}

func NewRedisIdentityStore(rdb goredis.UniversalClient, log logger.Logger) repository.IdentityStore {
	return &redisIdentityStore{
		rdb:        rdb,
		log:        log,
		scrResolve: goredis.NewScript(luaResolveCustomer),
		scrToken:   goredis.NewScript(luaSaveToken),
	}
}

func (s *redisIdentityStore) ResolveOrCreateCustomer(ctx context.Context, customerXID string) (uuid.UUID, error) {
	candidate := uuid.New()
	keys := []string{keyCustomerXID(customerXID), keyCustomer(candidate)}

	raw, err := s.scrResolve.Run(ctx, s.rdb, keys, candidate.String(), customerXID).Text()
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve customer: %w", err)
	}

	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse owner id %q: %w", raw, err)
	}
	return ownerID, nil
}

func (s *redisIdentityStore) SaveToken(ctx context.Context, ownerID uuid.UUID, token string) (string, error) {
	keys := []string{keyCustomer(ownerID), keyCustomerToken(ownerID), keyToken(token)}

	stored, err := s.scrToken.Run(ctx, s.rdb, keys, token, ownerID.String()).Text()
	if err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	if stored == "" {
		return "", fmt.Errorf("%w: customer %s", repository.ErrNotFound, ownerID)
	}
	return stored, nil
}

func (s *redisIdentityStore) GetToken(ctx context.Context, ownerID uuid.UUID) (string, error) {
	token, err := s.rdb.Get(ctx, keyCustomerToken(ownerID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("%w: token for customer %s", repository.ErrNotFound, ownerID)
		}
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

func (s *redisIdentityStore) OwnerByToken(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.rdb.Get(ctx, keyToken(token)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, repository.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("owner by token: %w", err)
	}

	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse owner id %q: %w", raw, err)
	}
	return ownerID, nil
}
