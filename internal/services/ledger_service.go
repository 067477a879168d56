// Package services – LedgerService
//
// This file implements the credit ledger: the authoritative per-account
// balance and its append-only transaction log. Every mutating operation runs
// under the account's exclusive lock and inside a single DB transaction, so
// the cached balance and the appended ledger row are durable together and
// the invariant balance = granted - consumed - refunded >= 0 holds at every
// commit point.
//
// Each public operation has a *Tx sibling that runs against a caller-supplied
// transaction handle without taking the lock. The webhook pipeline uses those
// to put the ledger mutation and the idempotency commit into one atomic unit
// of work while holding the account lock itself.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
	"github.com/mynted/credits-backend/internal/repo"
)

// LedgerService provides balance queries and balance-mutating operations for
// credit accounts.
type LedgerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Locks serializes mutations per account.
	Locks *AccountLocks
}

// NewLedgerService constructs a LedgerService around db and locks.
func NewLedgerService(db *gorm.DB, locks *AccountLocks) *LedgerService {
	return &LedgerService{DB: db, Locks: locks}
}

// Grant appends a grant of credits to accountID, increasing the balance.
// sourceEventID ties the grant to the provider payment event that caused it;
// pass nil for operator grants. Fails with ErrInvalidCreditAmount when
// credits <= 0 and ErrAccountNotFound when the account does not exist.
func (s *LedgerService) Grant(ctx context.Context, accountID string, credits int64, sourceEventID *string, note string) (*domain.CreditTransaction, error) {
	if credits <= 0 {
		return nil, ErrInvalidCreditAmount
	}
	release, err := s.Locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out *domain.CreditTransaction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var terr error
		out, terr = s.GrantTx(ctx, tx, accountID, credits, sourceEventID, note)
		return terr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GrantTx is Grant within a caller-held account lock and DB transaction.
func (s *LedgerService) GrantTx(ctx context.Context, tx *gorm.DB, accountID string, credits int64, sourceEventID *string, note string) (*domain.CreditTransaction, error) {
	if credits <= 0 {
		return nil, ErrInvalidCreditAmount
	}
	acc, err := repo.GetAccount(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	acc.Balance += credits
	acc.TotalGranted += credits
	if err := repo.UpdateAccountTotals(ctx, tx, acc); err != nil {
		return nil, err
	}
	return repo.AppendTransaction(ctx, tx, accountID, domain.TxKindGrant, credits, sourceEventID, note)
}

// Consume deducts amount credits from accountID for a billable action. It
// fails with ErrInsufficientBalance, performing no mutation, when the balance
// cannot cover the amount.
func (s *LedgerService) Consume(ctx context.Context, accountID string, amount int64, note string) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidCreditAmount
	}
	release, err := s.Locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out *domain.CreditTransaction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var terr error
		out, terr = s.ConsumeTx(ctx, tx, accountID, amount, note)
		return terr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConsumeTx is Consume within a caller-held account lock and DB transaction.
func (s *LedgerService) ConsumeTx(ctx context.Context, tx *gorm.DB, accountID string, amount int64, note string) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidCreditAmount
	}
	acc, err := repo.GetAccount(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if acc.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	acc.Balance -= amount
	acc.TotalConsumed += amount
	if err := repo.UpdateAccountTotals(ctx, tx, acc); err != nil {
		return nil, err
	}
	return repo.AppendTransaction(ctx, tx, accountID, domain.TxKindConsume, -amount, nil, note)
}

// ReverseBySourceEvent undoes the grant created from sourceEventID (the
// original purchase event id).
//
// Partial-usage policy: the reversal amount is min(original grant amount,
// current balance). Credits the user already spent are not clawed back and
// the balance never goes negative; the uncovered remainder is returned as
// shortfall so the caller can flag it for audit.
//
// Fails with ErrNoMatchingGrant when no grant exists for sourceEventID and
// ErrAlreadyReversed when an earlier refund already reversed it.
func (s *LedgerService) ReverseBySourceEvent(ctx context.Context, sourceEventID string) (*domain.CreditTransaction, int64, error) {
	// Resolve the account outside the lock; the grant row is immutable.
	grant, err := repo.FindGrantBySourceEvent(ctx, s.DB, sourceEventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrNoMatchingGrant
		}
		return nil, 0, err
	}

	release, err := s.Locks.Acquire(ctx, grant.AccountID)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	var (
		out       *domain.CreditTransaction
		shortfall int64
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var terr error
		out, shortfall, terr = s.ReverseBySourceEventTx(ctx, tx, sourceEventID)
		return terr
	})
	if err != nil {
		return nil, 0, err
	}
	return out, shortfall, nil
}

// ReverseBySourceEventTx is ReverseBySourceEvent within a caller-held account
// lock and DB transaction.
func (s *LedgerService) ReverseBySourceEventTx(ctx context.Context, tx *gorm.DB, sourceEventID string) (*domain.CreditTransaction, int64, error) {
	grant, err := repo.FindGrantBySourceEvent(ctx, tx, sourceEventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrNoMatchingGrant
		}
		return nil, 0, err
	}
	if _, err := repo.FindReversalBySourceEvent(ctx, tx, sourceEventID); err == nil {
		return nil, 0, ErrAlreadyReversed
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, 0, err
	}

	acc, err := repo.GetAccount(ctx, tx, grant.AccountID)
	if err != nil {
		return nil, 0, err
	}

	amount := grant.Delta
	if acc.Balance < amount {
		amount = acc.Balance
	}
	shortfall := grant.Delta - amount

	acc.Balance -= amount
	acc.TotalRefunded += amount
	if err := repo.UpdateAccountTotals(ctx, tx, acc); err != nil {
		return nil, 0, err
	}

	note := ""
	if shortfall > 0 {
		note = fmt.Sprintf("partial reversal: %d of %d credits already consumed", shortfall, grant.Delta)
	}
	src := sourceEventID
	rev, err := repo.AppendTransaction(ctx, tx, acc.ID, domain.TxKindRefundReversal, -amount, &src, note)
	if err != nil {
		return nil, 0, err
	}
	return rev, shortfall, nil
}

// Balance returns the cached spendable balance for accountID.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (int64, error) {
	acc, err := repo.GetAccount(ctx, s.DB, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return acc.Balance, nil
}

// Account returns the full account row for accountID.
func (s *LedgerService) Account(ctx context.Context, accountID string) (*domain.Account, error) {
	acc, err := repo.GetAccount(ctx, s.DB, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

// History returns a page of ledger rows for an account, most recent first,
// plus the total row count. It applies defaults for invalid page/pageSize.
func (s *LedgerService) History(ctx context.Context, accountID string, page, pageSize int) ([]domain.CreditTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountTransactions(ctx, s.DB, accountID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CreditTransaction{}, 0, nil
	}

	items, err := repo.ListTransactionsPage(ctx, s.DB, accountID, offset, pageSize)
	return items, total, err
}

// ReconcileResult reports a Reconcile run for one account.
type ReconcileResult struct {
	AccountID      string `json:"account_id"`
	CachedBalance  int64  `json:"cached_balance"`
	DerivedBalance int64  `json:"derived_balance"`
	Repaired       bool   `json:"repaired"`
}

// Reconcile refolds the transaction log for accountID and repairs the cached
// balance and running totals when they disagree with the derived values. The
// log is the source of truth; the account row is only a cache.
func (s *LedgerService) Reconcile(ctx context.Context, accountID string) (*ReconcileResult, error) {
	release, err := s.Locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *ReconcileResult
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := repo.GetAccount(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		sums, err := repo.FoldTransactions(ctx, tx, accountID)
		if err != nil {
			return err
		}

		res = &ReconcileResult{
			AccountID:      accountID,
			CachedBalance:  acc.Balance,
			DerivedBalance: sums.Balance(),
		}
		if acc.Balance == sums.Balance() &&
			acc.TotalGranted == sums.Granted &&
			acc.TotalConsumed == sums.Consumed &&
			acc.TotalRefunded == sums.Refunded {
			return nil
		}

		acc.Balance = sums.Balance()
		acc.TotalGranted = sums.Granted
		acc.TotalConsumed = sums.Consumed
		acc.TotalRefunded = sums.Refunded
		if err := repo.UpdateAccountTotals(ctx, tx, acc); err != nil {
			return err
		}
		res.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
