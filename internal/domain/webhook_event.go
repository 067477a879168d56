// Package domain defines the core persistence models for the application.
// This file holds the webhook event record backing the reserve-then-commit
// idempotency protocol.
package domain

import "time"

// Webhook event processing states. A record is created as StatusReserved at
// first sight of an event id, moves to StatusCommitted once the ledger effect
// is durably applied, or to StatusFailed when processing could not complete
// (a later redelivery may re-reserve a failed record).
const (
	EventStatusReserved  = "reserved"
	EventStatusCommitted = "committed"
	EventStatusFailed    = "failed"
)

// Normalized payment event types.
const (
	EventPurchaseSucceeded = "purchase_succeeded"
	EventPurchaseFailed    = "purchase_failed"
	EventRefundIssued      = "refund_issued"
)

// WebhookEvent is one idempotency record per provider event id. The unique
// index on EventID is what makes the reserve step atomic: concurrent
// deliveries of the same event race on the INSERT and exactly one wins.
//
// A committed record short-circuits every future duplicate delivery by
// returning ResultSummary without re-executing ledger mutations.
type WebhookEvent struct {
	EventID       string    `json:"event_id"       gorm:"type:varchar(128);primaryKey"`
	Provider      string    `json:"provider"       gorm:"type:varchar(32);not null"`
	Type          string    `json:"type"           gorm:"type:varchar(32);not null"`
	Status        string    `json:"status"         gorm:"type:varchar(16);not null;index;check:status IN ('reserved','committed','failed')"`
	ResultSummary string    `json:"result_summary" gorm:"type:varchar(500)"`
	Attempts      int       `json:"attempts"       gorm:"not null;default:1"`
	FirstSeenAt   time.Time `json:"first_seen_at"  gorm:"type:DATETIME NOT NULL"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (WebhookEvent) TableName() string { return "webhook_events" }
