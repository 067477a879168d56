// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for operator
// reconciliation flags.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
)

// CreateFlag records a reconciliation flag of the given kind for eventID.
// accountID may be empty when the event could not be tied to an account.
func CreateFlag(ctx context.Context, db *gorm.DB, kind, eventID, accountID, details string) (*domain.ReconciliationFlag, error) {
	f := &domain.ReconciliationFlag{
		ID:        uuid.NewString(),
		Kind:      kind,
		EventID:   eventID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if accountID != "" {
		f.AccountID = &accountID
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// ListUnresolvedFlags returns open flags, oldest first, capped at limit.
func ListUnresolvedFlags(ctx context.Context, db *gorm.DB, limit int) ([]domain.ReconciliationFlag, error) {
	var out []domain.ReconciliationFlag
	err := db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ResolveFlag marks a flag handled. It returns ErrNotFound when the flag does
// not exist or is already resolved.
func ResolveFlag(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ReconciliationFlag{}).
		Where("id = ? AND resolved = ?", id, false).
		Update("resolved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
