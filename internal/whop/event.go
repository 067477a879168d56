package whop

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/mynted/credits-backend/internal/domain"
)

var (
	// ErrMalformedPayload is returned when required fields are absent or of
	// the wrong shape.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrUnsupportedEventType is returned for provider event types this
	// service does not act on. Callers acknowledge these as a no-op.
	ErrUnsupportedEventType = errors.New("unsupported event type")
)

// Provider is the provider tag stored on webhook event records.
const Provider = "whop"

// PaymentEvent is a provider notification normalized to internal terms.
//
// EventID is the provider-assigned identifier of the underlying object
// (payment id for purchases, refund id for refunds) and serves as the
// deduplication key: redeliveries of the same occurrence carry the same id.
type PaymentEvent struct {
	EventID          string
	Type             string // domain.EventPurchaseSucceeded | EventPurchaseFailed | EventRefundIssued
	DiscordRef       string // external user reference; may be empty (unlinked purchase)
	ProductRef       string
	AmountMinorUnits int64
	Currency         string // ISO 4217 where recognizable; informational only
	// OriginalPaymentID links a refund to the payment it reverses.
	// Empty for purchase events.
	OriginalPaymentID string
	ReceivedAt        time.Time
}

// wirePayload mirrors the provider's JSON envelope. Only the fields we read
// are declared.
type wirePayload struct {
	Type string `json:"type"`
	Data struct {
		ID          string `json:"id"`
		ProductID   string `json:"product_id"`
		PaymentID   string `json:"payment_id"`
		FinalAmount int64  `json:"final_amount"`
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		User        struct {
			SocialAccounts struct {
				Discord string `json:"discord"`
			} `json:"social_accounts"`
		} `json:"user"`
	} `json:"data"`
}

// ParseEvent decodes a verified raw payload into a PaymentEvent.
//
// Provider event types map as:
//
//	payment.succeeded -> EventPurchaseSucceeded
//	payment.failed    -> EventPurchaseFailed
//	refund.created    -> EventRefundIssued
//
// Any other type yields ErrUnsupportedEventType. Structural problems
// (undecodable JSON, missing object id, refund without a payment reference)
// yield ErrMalformedPayload.
func ParseEvent(raw []byte, receivedAt time.Time) (*PaymentEvent, error) {
	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var eventType string
	switch p.Type {
	case "payment.succeeded":
		eventType = domain.EventPurchaseSucceeded
	case "payment.failed":
		eventType = domain.EventPurchaseFailed
	case "refund.created":
		eventType = domain.EventRefundIssued
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEventType, p.Type)
	}

	if strings.TrimSpace(p.Data.ID) == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrMalformedPayload)
	}

	ev := &PaymentEvent{
		EventID:    p.Data.ID,
		Type:       eventType,
		DiscordRef: strings.TrimSpace(p.Data.User.SocialAccounts.Discord),
		ProductRef: strings.TrimSpace(p.Data.ProductID),
		Currency:   normalizeCurrency(p.Data.Currency),
		ReceivedAt: receivedAt.UTC(),
	}

	switch eventType {
	case domain.EventRefundIssued:
		if strings.TrimSpace(p.Data.PaymentID) == "" {
			return nil, fmt.Errorf("%w: refund without payment_id", ErrMalformedPayload)
		}
		ev.OriginalPaymentID = p.Data.PaymentID
		ev.AmountMinorUnits = p.Data.Amount
	default:
		ev.AmountMinorUnits = p.Data.FinalAmount
	}

	return ev, nil
}

// normalizeCurrency upper-cases a recognizable ISO 4217 code. The monetary
// fields are informational (credits come from the product mapping, not the
// charge amount), so unknown codes pass through as-is rather than failing
// the event.
func normalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return strings.ToUpper(code)
}
