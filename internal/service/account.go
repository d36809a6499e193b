package service

import (
	"context"

	"github.com/corebanking/digibank/internal/domain"
)

// AccountService is the read-only account surface. Balances are only ever
// written by the transfer engine.
type AccountService struct {
	store Store
}

func NewAccountService(store Store) *AccountService {
	return &AccountService{store: store}
}

// List returns the actor's accounts in ascending id order.
func (s *AccountService) List(ctx context.Context, actorUserID int64) ([]domain.Account, error) {
	return s.store.AccountsByUser(ctx, actorUserID)
}

// Get returns one actor-owned account; foreign and unknown ids are not found.
func (s *AccountService) Get(ctx context.Context, actorUserID, accountID int64) (*domain.Account, error) {
	return s.store.AccountForOwner(ctx, accountID, actorUserID)
}
