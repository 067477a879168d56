// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Account model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an account is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The balance invariant (balance = granted - consumed - refunded >= 0) is
// enforced one level up in services.LedgerService, which is the only caller
// of the mutating functions here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetAccount fetches an account by its internal ID, or ErrNotFound.
func GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountByDiscordID fetches an account by its linked Discord identifier,
// or ErrNotFound.
func GetAccountByDiscordID(ctx context.Context, db *gorm.DB, discordID string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where("discord_id = ?", discordID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOrCreateAccount returns the account linked to discordID, creating an
// empty one when none exists. A concurrent create racing on the unique
// discord_id index is resolved by re-reading the winner's row.
func GetOrCreateAccount(ctx context.Context, db *gorm.DB, discordID string) (*domain.Account, error) {
	a, err := GetAccountByDiscordID(ctx, db, discordID)
	if err == nil {
		return a, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	fresh := &domain.Account{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fresh).Error; err != nil {
		if isUniqueViolation(err) {
			return GetAccountByDiscordID(ctx, db, discordID)
		}
		return nil, err
	}
	return fresh, nil
}

// UpdateAccountTotals persists the cached balance and running totals for an
// account. It returns ErrNotFound if the account row is missing.
func UpdateAccountTotals(ctx context.Context, db *gorm.DB, a *domain.Account) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"balance":        a.Balance,
			"total_granted":  a.TotalGranted,
			"total_consumed": a.TotalConsumed,
			"total_refunded": a.TotalRefunded,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
