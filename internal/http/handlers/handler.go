// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the Handler aggregate that carries the injected services
// and settings every endpoint needs. Handlers stay thin: they bind and
// validate transport input, call one service method, and translate sentinel
// errors into the stable error envelope defined in errors.go.
package handlers

import (
	"time"

	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/services"
)

// Handler bundles the dependencies shared by all HTTP endpoints.
type Handler struct {
	DB      *gorm.DB
	Ledger  *services.LedgerService
	Webhook *services.WebhookService

	// WebhookSecret signs inbound provider deliveries.
	WebhookSecret string
	// IdempotencyTTL bounds how long a consume-surface Idempotency-Key
	// replays its stored result.
	IdempotencyTTL time.Duration
}

// New constructs a Handler with all dependencies injected.
func New(db *gorm.DB, ledger *services.LedgerService, webhook *services.WebhookService, webhookSecret string, idempotencyTTL time.Duration) *Handler {
	return &Handler{
		DB:             db,
		Ledger:         ledger,
		Webhook:        webhook,
		WebhookSecret:  webhookSecret,
		IdempotencyTTL: idempotencyTTL,
	}
}
