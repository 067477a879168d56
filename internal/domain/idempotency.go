// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed API
// request, keyed by (account_id, scope, key). It enables safe retries of the
// bot-facing consume/grant endpoints by returning the originally produced
// transaction without re-executing ledger side effects.
//
// This store is distinct from WebhookEvent: webhook deliveries deduplicate on
// the provider-assigned event id, while this table deduplicates
// client-supplied Idempotency-Key headers.
type Idempotency struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	AccountID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_scope_key,priority:1"`
	Scope         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_scope_key,priority:2"`
	Key           string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_scope_key,priority:3"`
	TransactionID string    `gorm:"type:TEXT NOT NULL"`
	Status        int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt     time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
