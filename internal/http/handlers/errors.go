// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., signature_invalid, insufficient_balance) are
//     reserved for business logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Webhook delivery contract: the payment provider redelivers on any non-2xx
// response, so the codes paired with 409/500/503 mark retryable conditions and
// the codes paired with 400/401 mark deliveries that can never succeed.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "insufficient_balance",
//	  "message": "balance 10 cannot cover 25 credits"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Webhook-specific (non-retryable):
	ErrCodeSignatureInvalid = "signature_invalid"
	ErrCodeMalformedPayload = "malformed_payload"
	ErrCodeUnmappedProduct  = "unmapped_product"

	// Webhook-specific (retryable):
	ErrCodeEventInFlight   = "event_in_flight"
	ErrCodeNoMatchingGrant = "no_matching_grant"

	// Ledger-specific:
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeAccountBusy         = "account_busy"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)
