// Package services – refund notifier
//
// The webhook pipeline informs the bot-facing collaborator when a refund
// deducts credits, so the user can be told. Notification is best-effort and
// runs after the ledger commit: losing a notice is acceptable, losing a
// ledger mutation is not, so the notifier must never sit on the commit path.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RefundNotice describes a completed refund deduction.
type RefundNotice struct {
	AccountID  string
	DiscordID  string
	EventID    string
	Credits    int64 // credits actually removed
	Shortfall  int64 // credits that were already spent and not clawed back
	NewBalance int64
}

// Notifier delivers refund notices downstream. Implementations must tolerate
// being called concurrently and should do their own retrying; errors are
// logged, never propagated to webhook processing.
type Notifier interface {
	NotifyRefund(ctx context.Context, n RefundNotice) error
}

// LogNotifier is the default Notifier: it writes the notice to the log.
// The bot process tails these in development; production wires a real
// transport in its place.
type LogNotifier struct{}

// NotifyRefund implements Notifier.
func (LogNotifier) NotifyRefund(_ context.Context, n RefundNotice) error {
	log.Info().
		Str("account_id", n.AccountID).
		Str("discord_id", n.DiscordID).
		Str("event_id", n.EventID).
		Int64("credits_removed", n.Credits).
		Int64("shortfall", n.Shortfall).
		Int64("new_balance", n.NewBalance).
		Msg("refund applied")
	return nil
}
