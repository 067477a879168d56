package repo

import (
	"context"
	"testing"

	"github.com/mynted/credits-backend/internal/domain"
)

func TestReserveEvent_FirstSight_Proceeds(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	out, rec, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventPurchaseSucceeded)
	if err != nil {
		t.Fatalf("ReserveEvent: %v", err)
	}
	if out != ReserveProceed {
		t.Fatalf("outcome = %v, want ReserveProceed", out)
	}
	if rec.Status != domain.EventStatusReserved || rec.Attempts != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestReserveEvent_WhileReserved_IsInFlight(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	if _, _, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventPurchaseSucceeded); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	out, _, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventPurchaseSucceeded)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if out != ReserveInFlight {
		t.Fatalf("outcome = %v, want ReserveInFlight", out)
	}
}

func TestReserveEvent_AfterCommit_ReturnsStoredResult(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	if _, _, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventPurchaseSucceeded); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := CommitEvent(ctx, db, "evt_1", "granted 50 credits"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	out, rec, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventPurchaseSucceeded)
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if out != ReserveCommitted {
		t.Fatalf("outcome = %v, want ReserveCommitted", out)
	}
	if rec.ResultSummary != "granted 50 credits" {
		t.Fatalf("summary = %q", rec.ResultSummary)
	}
}

func TestReserveEvent_AfterFailure_RetriesAndCountsAttempts(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	if _, _, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventRefundIssued); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := MarkEventFailed(ctx, db, "evt_1", "no matching grant"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	out, _, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventRefundIssued)
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if out != ReserveProceed {
		t.Fatalf("outcome = %v, want ReserveProceed after failure", out)
	}

	rec, err := GetEvent(ctx, db, "evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.EventStatusReserved || rec.Attempts != 2 {
		t.Fatalf("unexpected record after retry: %+v", rec)
	}
}

func TestCommitEvent_WithoutReservation_Errors(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	if err := CommitEvent(ctx, db, "missing", "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := MarkEventFailed(ctx, db, "missing", "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitEvent_Twice_SecondErrors(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	if _, _, err := ReserveEvent(ctx, db, "evt_1", "whop", domain.EventPurchaseSucceeded); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := CommitEvent(ctx, db, "evt_1", "ok"); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := CommitEvent(ctx, db, "evt_1", "again"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double commit, got %v", err)
	}
}

func TestReserveEvent_ConcurrentDuplicates_OneWinner(t *testing.T) {
	db := newTestDB(t, &domain.WebhookEvent{})
	ctx := context.Background()

	// One pooled connection: goroutines still race on the reserve logic but
	// the in-memory driver never sees overlapping writers.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	const n = 8
	outcomes := make(chan ReserveOutcome, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			out, _, err := ReserveEvent(ctx, db, "evt_dup", "whop", domain.EventPurchaseSucceeded)
			outcomes <- out
			errs <- err
		}()
	}

	winners := 0
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("reserve error: %v", err)
		}
		if <-outcomes == ReserveProceed {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}
