// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the webhook event store implementing the
// reserve-then-commit idempotency protocol.
//
// Protocol:
//   - ReserveEvent atomically claims an event id for processing. The claim is
//     an INSERT racing on the primary key, so exactly one of N concurrent
//     deliveries of the same event wins; the rest observe the winner's state.
//   - CommitEvent transitions reserved -> committed with the stored outcome.
//     Callers run it inside the same DB transaction as the ledger mutation so
//     the effect and its record are durable together.
//   - MarkEventFailed transitions reserved -> failed, which permits a later
//     redelivery to re-reserve and retry. A reservation must never be left
//     dangling: every Reserve that proceeds ends in Commit or MarkFailed.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
)

// ErrDuplicate indicates that a record already exists for a key that must be
// unique (webhook event id, or an idempotency tuple).
var ErrDuplicate = errors.New("duplicate")

// ReserveOutcome describes the result of a reservation attempt.
type ReserveOutcome int

const (
	// ReserveProceed: the caller holds the reservation and must process the
	// event, finishing with CommitEvent or MarkEventFailed.
	ReserveProceed ReserveOutcome = iota
	// ReserveInFlight: another delivery of the same event is being processed
	// right now. The caller must not touch the ledger; respond retryable.
	ReserveInFlight
	// ReserveCommitted: the event was fully processed before. The returned
	// record carries the stored result; respond success without side effects.
	ReserveCommitted
)

// ReserveEvent claims eventID for processing. See ReserveOutcome for the
// contract. A previously failed event is re-reserved (attempts incremented)
// so provider redelivery can retry it.
func ReserveEvent(ctx context.Context, db *gorm.DB, eventID, provider, eventType string) (ReserveOutcome, *domain.WebhookEvent, error) {
	now := time.Now().UTC()
	rec := &domain.WebhookEvent{
		EventID:     eventID,
		Provider:    provider,
		Type:        eventType,
		Status:      domain.EventStatusReserved,
		Attempts:    1,
		FirstSeenAt: now,
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return ReserveProceed, rec, nil
	}
	if !isUniqueViolation(err) {
		return ReserveInFlight, nil, err
	}

	// Lost the insert race or the event was seen before: inspect the row.
	existing, gerr := GetEvent(ctx, db, eventID)
	if gerr != nil {
		return ReserveInFlight, nil, gerr
	}
	switch existing.Status {
	case domain.EventStatusCommitted:
		return ReserveCommitted, existing, nil
	case domain.EventStatusFailed:
		// Guarded re-reserve; RowsAffected==0 means a concurrent redelivery
		// re-reserved first, so treat it as in flight.
		res := db.WithContext(ctx).
			Model(&domain.WebhookEvent{}).
			Where("event_id = ? AND status = ?", eventID, domain.EventStatusFailed).
			Updates(map[string]any{
				"status":   domain.EventStatusReserved,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return ReserveInFlight, nil, res.Error
		}
		if res.RowsAffected == 0 {
			return ReserveInFlight, existing, nil
		}
		return ReserveProceed, existing, nil
	default:
		return ReserveInFlight, existing, nil
	}
}

// CommitEvent transitions a reserved event to committed, storing the outcome
// summary. It returns ErrNotFound if no reserved record exists for eventID.
func CommitEvent(ctx context.Context, db *gorm.DB, eventID, resultSummary string) error {
	return transitionEvent(ctx, db, eventID, domain.EventStatusCommitted, resultSummary)
}

// MarkEventFailed transitions a reserved event to failed so that a future
// redelivery can re-reserve it. It returns ErrNotFound if no reserved record
// exists for eventID.
func MarkEventFailed(ctx context.Context, db *gorm.DB, eventID, resultSummary string) error {
	return transitionEvent(ctx, db, eventID, domain.EventStatusFailed, resultSummary)
}

// GetEvent fetches a webhook event record by id, or ErrNotFound.
func GetEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.WebhookEvent, error) {
	var rec domain.WebhookEvent
	if err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// transitionEvent moves a reserved event into a terminal state.
func transitionEvent(ctx context.Context, db *gorm.DB, eventID, status, summary string) error {
	res := db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("event_id = ? AND status = ?", eventID, domain.EventStatusReserved).
		Updates(map[string]any{
			"status":         status,
			"result_summary": summary,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE/primary-key violation.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
