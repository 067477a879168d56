// Package services defines the business logic for the credit ledger and the
// webhook processing pipeline. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Ledger errors.
var (
	// ErrAccountNotFound indicates that the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCreditAmount is returned when a grant or consume amount is
	// zero or negative.
	ErrInvalidCreditAmount = errors.New("credit amount must be positive")

	// ErrInsufficientBalance is returned when a consume would drive the
	// balance below zero. No mutation is performed in that case.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoMatchingGrant is returned when a refund references a payment for
	// which no grant transaction was ever committed.
	ErrNoMatchingGrant = errors.New("no matching grant for refund")

	// ErrAlreadyReversed is returned when the grant tied to a refund has
	// already been reversed by an earlier refund event.
	ErrAlreadyReversed = errors.New("grant already reversed")

	// ErrLockTimeout is returned when the per-account lock could not be
	// acquired within the configured bound. Safe to retry.
	ErrLockTimeout = errors.New("account lock timeout")
)

// Webhook pipeline errors.
var (
	// ErrUnknownUser is returned when a payment event carries no resolvable
	// external user reference.
	ErrUnknownUser = errors.New("no linked user for payment event")

	// ErrUnmappedProduct is returned when a purchase references a product
	// with no configured credit mapping.
	ErrUnmappedProduct = errors.New("product has no credit mapping")

	// ErrEventInFlight is returned when another delivery of the same event
	// is currently being processed. The caller should answer retryable.
	ErrEventInFlight = errors.New("event processing in flight")
)
