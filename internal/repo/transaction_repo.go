// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// credit transaction ledger.
//
// Ledger rows are insert-only: there is no update or delete function in this
// file on purpose. The fold helpers exist so callers can recompute a balance
// from first principles and reconcile the cached account totals against it.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
)

// AppendTransaction inserts a new ledger row for accountID with the given
// kind, signed delta, optional source event id, and audit note.
func AppendTransaction(ctx context.Context, db *gorm.DB, accountID, kind string, delta int64, sourceEventID *string, note string) (*domain.CreditTransaction, error) {
	tx := &domain.CreditTransaction{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Kind:          kind,
		Delta:         delta,
		SourceEventID: sourceEventID,
		Note:          note,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, err
	}
	return tx, nil
}

// FindGrantBySourceEvent returns the grant transaction created from the given
// provider event id, or ErrNotFound.
func FindGrantBySourceEvent(ctx context.Context, db *gorm.DB, sourceEventID string) (*domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("source_event_id = ? AND kind = ?", sourceEventID, domain.TxKindGrant).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindReversalBySourceEvent returns the reversal that already undid the grant
// tied to sourceEventID, or ErrNotFound when the grant is still unreversed.
func FindReversalBySourceEvent(ctx context.Context, db *gorm.DB, sourceEventID string) (*domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("source_event_id = ? AND kind = ?", sourceEventID, domain.TxKindRefundReversal).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CountTransactions returns the total number of ledger rows for an account.
func CountTransactions(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Where("account_id = ?", accountID).
		Count(&total).Error
	return total, err
}

// ListTransactionsPage returns a page of ledger rows for an account, most
// recent first. Use CountTransactions to obtain the total for pagination
// metadata.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, accountID string, offset, limit int) ([]domain.CreditTransaction, error) {
	var out []domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LedgerSums holds per-kind fold results over an account's transaction log.
type LedgerSums struct {
	Granted  int64
	Consumed int64
	Refunded int64
}

// Balance returns the derived balance: granted - consumed - refunded.
func (s LedgerSums) Balance() int64 { return s.Granted - s.Consumed - s.Refunded }

// FoldTransactions recomputes the per-kind sums for accountID from the
// transaction log. Consume and reversal rows carry negative deltas; the sums
// are returned as positive magnitudes.
func FoldTransactions(ctx context.Context, db *gorm.DB, accountID string) (LedgerSums, error) {
	var rows []struct {
		Kind  string
		Total int64
	}
	err := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Select("kind, COALESCE(SUM(delta),0) AS total").
		Where("account_id = ?", accountID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return LedgerSums{}, err
	}

	var sums LedgerSums
	for _, r := range rows {
		switch r.Kind {
		case domain.TxKindGrant:
			sums.Granted = r.Total
		case domain.TxKindConsume:
			sums.Consumed = -r.Total
		case domain.TxKindRefundReversal:
			sums.Refunded = -r.Total
		}
	}
	return sums, nil
}
