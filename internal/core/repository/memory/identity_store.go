package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
)

type IdentityStore struct {
	customers sync.Map // customer xid -> owner uuid.UUID
	owners    sync.Map // owner uuid.UUID -> customer xid
	tokens    sync.Map // owner uuid.UUID -> token
	byToken   sync.Map // token -> owner uuid.UUID
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{}
}

var _ repository.IdentityStore = (*IdentityStore)(nil)

func (s *IdentityStore) ResolveOrCreateCustomer(_ context.Context, customerXID string) (uuid.UUID, error) {
	// The owner entry exists before the xid points at it, so SaveToken never
	// sees a resolved owner it does not know.
	candidate := uuid.New()
	s.owners.Store(candidate, customerXID)
	v, loaded := s.customers.LoadOrStore(customerXID, candidate)
	if loaded {
		s.owners.Delete(candidate)
	}
	return v.(uuid.UUID), nil
}

func (s *IdentityStore) SaveToken(_ context.Context, ownerID uuid.UUID, token string) (string, error) {
	if _, ok := s.owners.Load(ownerID); !ok {
		return "", fmt.Errorf("%w: customer %s", repository.ErrNotFound, ownerID)
	}
	s.byToken.Store(token, ownerID)
	v, loaded := s.tokens.LoadOrStore(ownerID, token)
	if loaded && v.(string) != token {
		s.byToken.Delete(token)
	}
	return v.(string), nil
}

func (s *IdentityStore) GetToken(_ context.Context, ownerID uuid.UUID) (string, error) {
	v, ok := s.tokens.Load(ownerID)
	if !ok {
		return "", fmt.Errorf("%w: token for customer %s", repository.ErrNotFound, ownerID)
	}
	return v.(string), nil
}

func (s *IdentityStore) OwnerByToken(_ context.Context, token string) (uuid.UUID, error) {
	v, ok := s.byToken.Load(token)
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	return v.(uuid.UUID), nil
}
