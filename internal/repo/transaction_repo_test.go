package repo

import (
	"context"
	"testing"

	"github.com/mynted/credits-backend/internal/domain"
)

func TestAppendAndFindBySourceEvent(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.CreditTransaction{})
	ctx := context.Background()

	a, err := GetOrCreateAccount(ctx, db, "discord-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}

	src := "evt_pay_1"
	grant, err := AppendTransaction(ctx, db, a.ID, domain.TxKindGrant, 50, &src, "")
	if err != nil {
		t.Fatalf("append grant: %v", err)
	}
	if grant.Delta != 50 || grant.Kind != domain.TxKindGrant {
		t.Fatalf("unexpected grant: %+v", grant)
	}

	found, err := FindGrantBySourceEvent(ctx, db, src)
	if err != nil {
		t.Fatalf("find grant: %v", err)
	}
	if found.ID != grant.ID {
		t.Fatalf("found %q, want %q", found.ID, grant.ID)
	}

	if _, err := FindGrantBySourceEvent(ctx, db, "unknown"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := FindReversalBySourceEvent(ctx, db, src); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound before reversal, got %v", err)
	}

	if _, err := AppendTransaction(ctx, db, a.ID, domain.TxKindRefundReversal, -50, &src, ""); err != nil {
		t.Fatalf("append reversal: %v", err)
	}
	rev, err := FindReversalBySourceEvent(ctx, db, src)
	if err != nil {
		t.Fatalf("find reversal: %v", err)
	}
	if rev.Delta != -50 {
		t.Fatalf("unexpected reversal: %+v", rev)
	}
}

func TestListTransactionsPage_And_Count(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.CreditTransaction{})
	ctx := context.Background()

	a, err := GetOrCreateAccount(ctx, db, "discord-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := AppendTransaction(ctx, db, a.ID, domain.TxKindGrant, 10, nil, ""); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	total, err := CountTransactions(ctx, db, a.ID)
	if err != nil || total != 5 {
		t.Fatalf("count = %d err = %v, want 5", total, err)
	}

	page, err := ListTransactionsPage(ctx, db, a.ID, 0, 3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page len = %d, want 3", len(page))
	}

	rest, err := ListTransactionsPage(ctx, db, a.ID, 3, 3)
	if err != nil || len(rest) != 2 {
		t.Fatalf("rest len = %d err = %v, want 2", len(rest), err)
	}
}

func TestFoldTransactions_Conservation(t *testing.T) {
	db := newTestDB(t, &domain.Account{}, &domain.CreditTransaction{})
	ctx := context.Background()

	a, err := GetOrCreateAccount(ctx, db, "discord-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}

	src := "evt_pay_1"
	mustAppend := func(kind string, delta int64, source *string) {
		t.Helper()
		if _, err := AppendTransaction(ctx, db, a.ID, kind, delta, source, ""); err != nil {
			t.Fatalf("append %s %d: %v", kind, delta, err)
		}
	}
	mustAppend(domain.TxKindGrant, 50, &src)
	mustAppend(domain.TxKindConsume, -30, nil)
	mustAppend(domain.TxKindRefundReversal, -20, &src)

	sums, err := FoldTransactions(ctx, db, a.ID)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if sums.Granted != 50 || sums.Consumed != 30 || sums.Refunded != 20 {
		t.Fatalf("unexpected sums: %+v", sums)
	}
	if sums.Balance() != 0 {
		t.Fatalf("balance = %d, want 0", sums.Balance())
	}
}
