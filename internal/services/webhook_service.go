// Package services – WebhookService
//
// This file implements the webhook processing pipeline: reserve the event id,
// dispatch by event type to the ledger, and commit the outcome. The commit of
// the idempotency record runs in the same DB transaction as the ledger
// mutation, so a crash can never leave an applied grant without its record or
// vice versa. Failures mark the reservation failed, which re-opens the event
// for the provider's redelivery.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mynted/credits-backend/internal/domain"
	"github.com/mynted/credits-backend/internal/repo"
	"github.com/mynted/credits-backend/internal/whop"
)

// webhookEvents counts processed webhook events by normalized type and outcome.
var webhookEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of processed payment webhook events.",
	},
	[]string{"type", "outcome"},
)

func init() {
	prometheus.MustRegister(webhookEvents)
}

// Processing outcomes stored on the event record and reported to callers.
const (
	OutcomeGranted         = "granted"
	OutcomeReplayed        = "replayed"
	OutcomeRecordedFailed  = "payment_failed_recorded"
	OutcomeRefunded        = "refunded"
	OutcomeAlreadyReversed = "already_reversed"
	OutcomeUnknownUser     = "unknown_user"
	OutcomeUnmappedProduct = "unmapped_product"
)

// ProcessResult is the answer to one webhook delivery.
type ProcessResult struct {
	EventID  string `json:"event_id"`
	Outcome  string `json:"outcome"`
	Summary  string `json:"summary"`
	Replayed bool   `json:"replayed,omitempty"`
}

// WebhookService routes normalized payment events to ledger operations under
// the reserve-then-commit protocol.
type WebhookService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Resolver UserResolver
	Notifier Notifier
	// Packages maps provider product references to credits granted.
	Packages map[string]int64
}

// Process applies one normalized payment event exactly once.
//
// Outcomes:
//   - nil error: the event is committed (or was already); the result carries
//     the stored summary. Safe to acknowledge to the provider.
//   - ErrEventInFlight: a concurrent delivery holds the reservation; answer
//     retryable without touching the ledger.
//   - ErrUnmappedProduct: committed as a no-op and flagged for operators;
//     answer non-retryable.
//   - ErrNoMatchingGrant: reservation marked failed; answer retryable (the
//     purchase event may simply not have arrived yet).
//   - other errors: transient (storage, lock); reservation marked failed,
//     answer retryable.
func (s *WebhookService) Process(ctx context.Context, ev *whop.PaymentEvent) (*ProcessResult, error) {
	outcome, rec, err := repo.ReserveEvent(ctx, s.DB, ev.EventID, whop.Provider, ev.Type)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case repo.ReserveCommitted:
		webhookEvents.WithLabelValues(ev.Type, OutcomeReplayed).Inc()
		return &ProcessResult{EventID: ev.EventID, Outcome: OutcomeReplayed, Summary: rec.ResultSummary, Replayed: true}, nil
	case repo.ReserveInFlight:
		return nil, ErrEventInFlight
	}

	res, err := s.dispatch(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrUnmappedProduct) && res != nil {
			// Already committed as a flagged no-op; nothing to release.
			webhookEvents.WithLabelValues(ev.Type, res.Outcome).Inc()
			return res, err
		}
		// The reservation must never dangle: release it for redelivery.
		if ferr := repo.MarkEventFailed(ctx, s.DB, ev.EventID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("event_id", ev.EventID).Msg("mark event failed")
		}
		webhookEvents.WithLabelValues(ev.Type, "failed").Inc()
		return nil, err
	}
	webhookEvents.WithLabelValues(ev.Type, res.Outcome).Inc()
	return res, nil
}

// dispatch routes a reserved event by type. Every path commits or returns an
// error; Process handles marking failures.
func (s *WebhookService) dispatch(ctx context.Context, ev *whop.PaymentEvent) (*ProcessResult, error) {
	switch ev.Type {
	case domain.EventPurchaseSucceeded:
		return s.handlePurchase(ctx, ev)
	case domain.EventPurchaseFailed:
		return s.handlePurchaseFailed(ctx, ev)
	case domain.EventRefundIssued:
		return s.handleRefund(ctx, ev)
	default:
		return nil, fmt.Errorf("%w: %q", whop.ErrUnsupportedEventType, ev.Type)
	}
}

func (s *WebhookService) handlePurchase(ctx context.Context, ev *whop.PaymentEvent) (*ProcessResult, error) {
	credits, mapped := s.Packages[ev.ProductRef]
	if !mapped {
		summary := fmt.Sprintf("product %q has no credit mapping", ev.ProductRef)
		err := s.commitFlagged(ctx, ev.EventID, summary, domain.FlagUnmappedProduct, "")
		if err != nil {
			return nil, err
		}
		log.Warn().Str("event_id", ev.EventID).Str("product", ev.ProductRef).Msg("unmapped product flagged")
		return &ProcessResult{EventID: ev.EventID, Outcome: OutcomeUnmappedProduct, Summary: summary}, ErrUnmappedProduct
	}

	acc, err := s.Resolver.Resolve(ctx, ev.DiscordRef)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			summary := "payment has no linked user account"
			if cerr := s.commitFlagged(ctx, ev.EventID, summary, domain.FlagUnlinkedPurchase, ""); cerr != nil {
				return nil, cerr
			}
			log.Warn().Str("event_id", ev.EventID).Msg("unlinked purchase flagged")
			return &ProcessResult{EventID: ev.EventID, Outcome: OutcomeUnknownUser, Summary: summary}, nil
		}
		return nil, err
	}

	release, err := s.Ledger.Locks.Acquire(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	summary := fmt.Sprintf("granted %d credits to account %s", credits, acc.ID)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src := ev.EventID
		if _, err := s.Ledger.GrantTx(ctx, tx, acc.ID, credits, &src, ""); err != nil {
			return err
		}
		return repo.CommitEvent(ctx, tx, ev.EventID, summary)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("event_id", ev.EventID).Str("account_id", acc.ID).Int64("credits", credits).Msg("purchase credited")
	return &ProcessResult{EventID: ev.EventID, Outcome: OutcomeGranted, Summary: summary}, nil
}

func (s *WebhookService) handlePurchaseFailed(ctx context.Context, ev *whop.PaymentEvent) (*ProcessResult, error) {
	summary := "payment failed; recorded for audit, no ledger effect"
	if err := repo.CommitEvent(ctx, s.DB, ev.EventID, summary); err != nil {
		return nil, err
	}
	return &ProcessResult{EventID: ev.EventID, Outcome: OutcomeRecordedFailed, Summary: summary}, nil
}

func (s *WebhookService) handleRefund(ctx context.Context, ev *whop.PaymentEvent) (*ProcessResult, error) {
	// Resolve the account before locking; the grant row is immutable.
	grant, err := repo.FindGrantBySourceEvent(ctx, s.DB, ev.OriginalPaymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Out-of-order delivery: the purchase may still be on its way.
			return nil, ErrNoMatchingGrant
		}
		return nil, err
	}

	release, err := s.Ledger.Locks.Acquire(ctx, grant.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		notice  RefundNotice
		summary string
		outcome = OutcomeRefunded
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rev, shortfall, rerr := s.Ledger.ReverseBySourceEventTx(ctx, tx, ev.OriginalPaymentID)
		if rerr != nil {
			if errors.Is(rerr, ErrAlreadyReversed) {
				// A distinct refund event for an already-reversed grant:
				// committing it as a no-op keeps redeliveries quiet and the
				// ledger untouched.
				outcome = OutcomeAlreadyReversed
				summary = fmt.Sprintf("grant for payment %s already reversed; no-op", ev.OriginalPaymentID)
				return repo.CommitEvent(ctx, tx, ev.EventID, summary)
			}
			return rerr
		}

		removed := -rev.Delta
		summary = fmt.Sprintf("reversed %d credits from account %s", removed, rev.AccountID)
		if shortfall > 0 {
			detail := fmt.Sprintf("refund of payment %s short by %d credits (already consumed)", ev.OriginalPaymentID, shortfall)
			if _, ferr := repo.CreateFlag(ctx, tx, domain.FlagRefundShortfall, ev.EventID, rev.AccountID, detail); ferr != nil {
				return ferr
			}
		}

		acc, aerr := repo.GetAccount(ctx, tx, rev.AccountID)
		if aerr != nil {
			return aerr
		}
		notice = RefundNotice{
			AccountID:  acc.ID,
			DiscordID:  acc.DiscordID,
			EventID:    ev.EventID,
			Credits:    removed,
			Shortfall:  shortfall,
			NewBalance: acc.Balance,
		}
		return repo.CommitEvent(ctx, tx, ev.EventID, summary)
	})
	if err != nil {
		return nil, err
	}

	if outcome == OutcomeRefunded {
		// Fire-and-forget: the user notice must not block the webhook
		// response, and losing it is acceptable.
		go func(n RefundNotice) {
			if nerr := s.Notifier.NotifyRefund(context.Background(), n); nerr != nil {
				log.Warn().Err(nerr).Str("event_id", n.EventID).Msg("refund notice failed")
			}
		}(notice)
	}
	return &ProcessResult{EventID: ev.EventID, Outcome: outcome, Summary: summary}, nil
}

// commitFlagged commits an event as a recorded no-op and raises the given
// reconciliation flag in the same transaction.
func (s *WebhookService) commitFlagged(ctx context.Context, eventID, summary, flagKind, accountID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateFlag(ctx, tx, flagKind, eventID, accountID, summary); err != nil {
			return err
		}
		return repo.CommitEvent(ctx, tx, eventID, summary)
	})
}
