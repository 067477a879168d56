// Package services – account resolution
//
// Maps the provider-side external user reference (the Discord ID attached to
// a payment) to an internal ledger account.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
	"github.com/mynted/credits-backend/internal/repo"
)

// UserResolver resolves an external user reference to a ledger account.
// Implementations return ErrUnknownUser when no identity can be established.
type UserResolver interface {
	Resolve(ctx context.Context, externalRef string) (*domain.Account, error)
}

// AccountResolver resolves Discord references against the accounts table,
// creating an empty account on first sight of a linked purchase. An empty
// reference (payment without a linked Discord account) is ErrUnknownUser.
type AccountResolver struct {
	DB *gorm.DB
}

// Resolve implements UserResolver.
func (r *AccountResolver) Resolve(ctx context.Context, externalRef string) (*domain.Account, error) {
	if externalRef == "" {
		return nil, ErrUnknownUser
	}
	return repo.GetOrCreateAccount(ctx, r.DB, externalRef)
}
