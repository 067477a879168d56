package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mynted/credits-backend/internal/http/middleware"
	"github.com/mynted/credits-backend/internal/services"
	"github.com/mynted/credits-backend/internal/whop"
)

// HandleWhopWebhook ingests one signed payment webhook delivery.
//
// The provider retries on any non-2xx answer, so the status codes draw the
// retry boundary: 2xx acknowledges (committed, replayed, or deliberately
// ignored), 4xx tells the provider the delivery can never succeed, and
// 409/5xx ask for redelivery.
//
// The signature is verified over the exact raw body bytes before any JSON
// decoding touches them.
//
// @Summary      Ingest a Whop payment webhook
// @Description  Verifies the Whop-Signature header, normalizes the event, and applies it to the credit ledger exactly once.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Whop-Signature  header    string  true  "v1,<timestamp>,<hex hmac>"
// @Success      200             {object}  services.ProcessResult
// @Failure      400             {object}  handlers.ErrorResponse "signature_invalid, malformed_payload, unmapped_product"
// @Failure      409             {object}  handlers.ErrorResponse "event_in_flight, no_matching_grant (retryable)"
// @Failure      500             {object}  handlers.ErrorResponse
// @Router       /webhooks/whop [post]
func (h *Handler) HandleWhopWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unable to read request body")
		return
	}

	if err := whop.VerifySignature(h.WebhookSecret, body, c.GetHeader(whop.SignatureHeader)); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeSignatureInvalid, "webhook signature verification failed")
		return
	}

	ev, err := whop.ParseEvent(body, time.Now().UTC())
	if err != nil {
		if errors.Is(err, whop.ErrUnsupportedEventType) {
			// Acknowledge event types we do not handle so the provider
			// stops redelivering them.
			ok(c, http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeMalformedPayload, "payload does not match the expected schema")
		return
	}

	res, err := h.Webhook.Process(c.Request.Context(), ev)
	switch {
	case err == nil:
		ok(c, http.StatusOK, res)
	case errors.Is(err, services.ErrEventInFlight):
		fail(c, http.StatusConflict, ErrCodeEventInFlight, "a concurrent delivery of this event is being processed")
	case errors.Is(err, services.ErrNoMatchingGrant):
		fail(c, http.StatusConflict, ErrCodeNoMatchingGrant, "no grant found for the refunded payment yet")
	case errors.Is(err, services.ErrUnmappedProduct):
		fail(c, http.StatusBadRequest, ErrCodeUnmappedProduct, "product has no credit package mapping")
	case errors.Is(err, services.ErrLockTimeout):
		fail(c, http.StatusServiceUnavailable, ErrCodeAccountBusy, "account is busy, retry the delivery")
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("event_id", ev.EventID).Msg("webhook processing failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "event processing failed")
	}
}
