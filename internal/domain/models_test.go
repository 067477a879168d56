package domain

import (
	"testing"
	"time"
)

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Account{}.TableName():            "accounts",
		CreditTransaction{}.TableName():  "credit_transactions",
		WebhookEvent{}.TableName():       "webhook_events",
		ReconciliationFlag{}.TableName(): "reconciliation_flags",
		Idempotency{}.TableName():        "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("table name mismatch: got %q want %q", got, want)
		}
	}
}

func TestModels_MigrateAndConstraints(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Account{}, &CreditTransaction{}, &WebhookEvent{}, &ReconciliationFlag{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	acc := &Account{ID: "a1", DiscordID: "d1", Balance: 10, TotalGranted: 10, CreatedAt: time.Now().UTC()}
	if err := db.Create(acc).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}

	// DiscordID is unique.
	dup := &Account{ID: "a2", DiscordID: "d1"}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on discord_id")
	}

	// Negative balance is rejected by the check constraint.
	if err := db.Exec(`UPDATE accounts SET balance = -1 WHERE id = 'a1'`).Error; err == nil {
		t.Fatalf("expected check violation on negative balance")
	}

	// Transaction kind is constrained to the known set.
	bad := &CreditTransaction{ID: "t1", AccountID: "a1", Kind: "bogus", Delta: 1, CreatedAt: time.Now().UTC()}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected check violation on transaction kind")
	}

	src := "evt_1"
	good := &CreditTransaction{ID: "t2", AccountID: "a1", Kind: TxKindGrant, Delta: 10, SourceEventID: &src, CreatedAt: time.Now().UTC()}
	if err := db.Create(good).Error; err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// Webhook event ids are primary keys: second insert with the same id fails.
	ev := &WebhookEvent{EventID: "evt_1", Provider: "whop", Type: EventPurchaseSucceeded, Status: EventStatusReserved, FirstSeenAt: time.Now().UTC()}
	if err := db.Create(ev).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	ev2 := &WebhookEvent{EventID: "evt_1", Provider: "whop", Type: EventPurchaseSucceeded, Status: EventStatusReserved, FirstSeenAt: time.Now().UTC()}
	if err := db.Create(ev2).Error; err == nil {
		t.Fatalf("expected primary key violation on duplicate event id")
	}
}
