// Package domain defines the persistence models for credit accounts, the
// append-only transaction ledger, and operator reconciliation flags. These
// types are mapped with GORM and form the core data layer of the credits
// backend.
package domain

import (
	"time"
)

// Transaction kinds recorded in the ledger.
const (
	TxKindGrant          = "grant"
	TxKindConsume        = "consume"
	TxKindRefundReversal = "refund_reversal"
)

// Reconciliation flag kinds raised for operator attention.
const (
	FlagUnlinkedPurchase = "unlinked_purchase"
	FlagUnmappedProduct  = "unmapped_product"
	FlagRefundShortfall  = "refund_shortfall"
)

// Account holds the cached credit balance for one user. The transaction log
// is the source of truth; Balance and the three running totals are a cache
// that must satisfy Balance = TotalGranted - TotalConsumed - TotalRefunded
// and is repaired from the log on mismatch (see services.LedgerService.Reconcile).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - DiscordID: external user reference from the payment provider's payload;
//     unique, used by the webhook pipeline to resolve accounts.
//   - Balance: spendable credits, never negative.
//   - TotalGranted / TotalConsumed / TotalRefunded: lifetime counters.
type Account struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	DiscordID     string    `json:"discord_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_accounts_discord"`
	Balance       int64     `json:"balance"        gorm:"not null;default:0;check:balance >= 0"`
	TotalGranted  int64     `json:"total_granted"  gorm:"not null;default:0"`
	TotalConsumed int64     `json:"total_consumed" gorm:"not null;default:0"`
	TotalRefunded int64     `json:"total_refunded" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// CreditTransaction is one append-only ledger entry. Rows are never updated
// or deleted; the account balance is always derivable by folding Delta over
// all rows of an account.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - AccountID: foreign key to the owning account (indexed).
//   - Kind: grant | consume | refund_reversal (enforced by DB constraint).
//   - Delta: signed credit movement (>0 grant, <0 consume/reversal).
//   - SourceEventID: provider event that caused the entry. Set on grants
//     (the purchase event) and on reversals (the reversed purchase event);
//     null for in-app consumption.
//   - Note: free-form audit text (e.g. refund shortfall detail).
type CreditTransaction struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	AccountID     string    `json:"account_id"      gorm:"type:char(36);not null;index:idx_account_txs,priority:1"`
	Kind          string    `json:"kind"            gorm:"type:varchar(24);not null;check:kind IN ('grant','consume','refund_reversal')"`
	Delta         int64     `json:"delta"           gorm:"not null"`
	SourceEventID *string   `json:"source_event_id,omitempty" gorm:"type:varchar(128);index"`
	Note          string    `json:"note,omitempty"  gorm:"type:varchar(500)"`
	CreatedAt     time.Time `json:"created_at"      gorm:"index:idx_account_txs,priority:2"`

	// Account is the parent account. Transactions are cascade-deleted if the
	// account row is removed.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CreditTransaction.
func (CreditTransaction) TableName() string { return "credit_transactions" }

// ReconciliationFlag records a payment event that was acknowledged to the
// provider but needs operator attention: a purchase without a linked account,
// an unmapped product, or a refund that could not be fully reversed. Raising
// a flag is what keeps those events from being silently dropped.
type ReconciliationFlag struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Kind      string    `json:"kind"       gorm:"type:varchar(32);not null;index;check:kind IN ('unlinked_purchase','unmapped_product','refund_shortfall')"`
	EventID   string    `json:"event_id"   gorm:"type:varchar(128);not null;index"`
	AccountID *string   `json:"account_id,omitempty" gorm:"type:char(36);index"`
	Details   string    `json:"details"    gorm:"type:varchar(500)"`
	Resolved  bool      `json:"resolved"   gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ReconciliationFlag.
func (ReconciliationFlag) TableName() string { return "reconciliation_flags" }
