package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mynted/credits-backend/internal/domain"
	"github.com/mynted/credits-backend/internal/http/middleware"
	"github.com/mynted/credits-backend/internal/repo"
	"github.com/mynted/credits-backend/internal/services"
	"github.com/mynted/credits-backend/internal/utils"
)

// BalanceResponse is the account summary returned by GetBalance.
type BalanceResponse struct {
	AccountID     string `json:"account_id" example:"123e4567-e89b-12d3-a456-426614174000"`
	DiscordID     string `json:"discord_id" example:"238428019845"`
	Balance       int64  `json:"balance" example:"120"`
	TotalGranted  int64  `json:"total_granted" example:"200"`
	TotalConsumed int64  `json:"total_consumed" example:"60"`
	TotalRefunded int64  `json:"total_refunded" example:"20"`
}

// TransactionResponse is one ledger entry in a transaction listing.
type TransactionResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind" example:"grant"`
	Delta         int64     `json:"delta" example:"50"`
	SourceEventID *string   `json:"source_event_id,omitempty"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionsPageResponse is a page of ledger entries, newest first.
type TransactionsPageResponse struct {
	Items    []TransactionResponse `json:"items"`
	Page     int                   `json:"page" example:"1"`
	PageSize int                   `json:"page_size" example:"20"`
	Total    int64                 `json:"total" example:"42"`
}

// MutationRequest is the body for consume and grant operations.
type MutationRequest struct {
	// Amount of credits, strictly positive.
	Amount int64 `json:"amount" binding:"required" example:"25"`
	// Note is an optional audit annotation stored on the transaction.
	Note string `json:"note" example:"image generation"`
}

// MutationResponse reports an applied consume or grant.
type MutationResponse struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Balance       int64  `json:"balance" example:"95"`
	// Replayed is true when an Idempotency-Key matched a stored result and
	// no new ledger mutation happened.
	Replayed bool `json:"replayed,omitempty"`
}

// FlagResponse is one open reconciliation flag.
type FlagResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind" example:"refund_shortfall"`
	EventID   string    `json:"event_id"`
	AccountID *string   `json:"account_id,omitempty"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// GetBalance returns the cached balance and running totals for an account.
//
// @Summary      Get account balance
// @Tags         accounts
// @Produce      json
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  handlers.BalanceResponse
// @Failure      404  {object}  handlers.ErrorResponse
// @Router       /accounts/{id}/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	acc, err := h.Ledger.Account(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load account")
		return
	}
	ok(c, http.StatusOK, BalanceResponse{
		AccountID:     acc.ID,
		DiscordID:     acc.DiscordID,
		Balance:       acc.Balance,
		TotalGranted:  acc.TotalGranted,
		TotalConsumed: acc.TotalConsumed,
		TotalRefunded: acc.TotalRefunded,
	})
}

// ListTransactions returns a page of ledger entries for an account.
//
// @Summary      List account transactions
// @Tags         accounts
// @Produce      json
// @Param        id         path      string  true   "Account ID"
// @Param        page       query     int     false  "Page number (1-based)"
// @Param        page_size  query     int     false  "Page size (max 100)"
// @Success      200        {object}  handlers.TransactionsPageResponse
// @Failure      404        {object}  handlers.ErrorResponse
// @Router       /accounts/{id}/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID := c.Param("id")
	page := utils.ClampInt(utils.AtoiDefault(c.Query("page"), 1), 1, 1<<30, 1)
	pageSize := utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), 20), 1, 100, 20)

	if _, err := h.Ledger.Account(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load account")
		return
	}

	items, total, err := h.Ledger.History(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to list transactions")
		return
	}

	out := TransactionsPageResponse{
		Items:    make([]TransactionResponse, 0, len(items)),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	for _, tx := range items {
		out.Items = append(out.Items, TransactionResponse{
			ID:            tx.ID,
			Kind:          tx.Kind,
			Delta:         tx.Delta,
			SourceEventID: tx.SourceEventID,
			Note:          tx.Note,
			CreatedAt:     tx.CreatedAt,
		})
	}
	ok(c, http.StatusOK, out)
}

// Consume deducts credits from an account for a billable action.
//
// Clients retry with the same Idempotency-Key; a matching stored result is
// replayed without deducting twice.
//
// @Summary      Consume credits
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id               path      string                   true   "Account ID"
// @Param        Idempotency-Key  header    string                   false  "Retry-safe operation key"
// @Param        request          body      handlers.MutationRequest  true   "Amount to deduct"
// @Success      200              {object}  handlers.MutationResponse
// @Failure      400              {object}  handlers.ErrorResponse
// @Failure      404              {object}  handlers.ErrorResponse
// @Failure      409              {object}  handlers.ErrorResponse "insufficient_balance"
// @Router       /accounts/{id}/consume [post]
func (h *Handler) Consume(c *gin.Context) {
	h.mutate(c, func(accountID string, req MutationRequest) (*domain.CreditTransaction, error) {
		return h.Ledger.Consume(c.Request.Context(), accountID, req.Amount, req.Note)
	})
}

// Grant adds credits to an account outside the payment flow (operator or
// promotional grants).
//
// @Summary      Grant credits
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id               path      string                   true   "Account ID"
// @Param        Idempotency-Key  header    string                   false  "Retry-safe operation key"
// @Param        request          body      handlers.MutationRequest  true   "Amount to add"
// @Success      200              {object}  handlers.MutationResponse
// @Failure      400              {object}  handlers.ErrorResponse
// @Failure      404              {object}  handlers.ErrorResponse
// @Router       /accounts/{id}/grant [post]
func (h *Handler) Grant(c *gin.Context) {
	h.mutate(c, func(accountID string, req MutationRequest) (*domain.CreditTransaction, error) {
		return h.Ledger.Grant(c.Request.Context(), accountID, req.Amount, nil, req.Note)
	})
}

// mutate is the shared consume/grant flow: bind, serve Idempotency-Key
// replays, apply the mutation, store the idempotency record, respond.
func (h *Handler) mutate(c *gin.Context, apply func(accountID string, req MutationRequest) (*domain.CreditTransaction, error)) {
	accountID := c.Param("id")

	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	key, hasKey := middleware.GetIdempotencyKey(c)
	scope := c.FullPath()
	if hasKey {
		rec, err := repo.GetIdempotency(c.Request.Context(), h.DB, accountID, scope, key, time.Now().UTC())
		switch {
		case err == nil:
			balance, berr := h.Ledger.Balance(c.Request.Context(), accountID)
			if berr != nil {
				fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load balance")
				return
			}
			ok(c, rec.Status, MutationResponse{
				TransactionID: rec.TransactionID,
				AccountID:     accountID,
				Balance:       balance,
				Replayed:      true,
			})
			return
		case !errors.Is(err, repo.ErrNotFound):
			// A failed lookup must not re-apply a mutation the stored
			// record would have suppressed.
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to check idempotency key")
			return
		}
	}

	tx, err := apply(accountID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
		case errors.Is(err, services.ErrInvalidCreditAmount):
			fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, "amount must be a positive number of credits")
		case errors.Is(err, services.ErrInsufficientBalance):
			fail(c, http.StatusConflict, ErrCodeInsufficientBalance, "balance cannot cover the requested amount")
		case errors.Is(err, services.ErrLockTimeout):
			fail(c, http.StatusServiceUnavailable, ErrCodeAccountBusy, "account is busy, retry shortly")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "ledger operation failed")
		}
		return
	}

	if hasKey {
		// Best effort: a lost record only risks a duplicate charge the
		// client already accepted by retrying without the stored reply.
		if _, err := repo.CreateIdempotency(c.Request.Context(), h.DB, accountID, scope, key, tx.ID, http.StatusOK, h.IdempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("account_id", accountID).Msg("idempotency record not stored")
		}
	}

	balance, err := h.Ledger.Balance(c.Request.Context(), accountID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load balance")
		return
	}
	ok(c, http.StatusOK, MutationResponse{
		TransactionID: tx.ID,
		AccountID:     accountID,
		Balance:       balance,
	})
}

// ListFlags returns open reconciliation flags, oldest first.
//
// @Summary      List open reconciliation flags
// @Tags         reconciliation
// @Produce      json
// @Param        limit  query     int  false  "Maximum flags returned (default 50)"
// @Success      200    {array}   handlers.FlagResponse
// @Router       /reconciliation/flags [get]
func (h *Handler) ListFlags(c *gin.Context) {
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), 50), 1, 500, 50)
	flags, err := repo.ListUnresolvedFlags(c.Request.Context(), h.DB, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to list flags")
		return
	}
	out := make([]FlagResponse, 0, len(flags))
	for _, f := range flags {
		out = append(out, FlagResponse{
			ID:        f.ID,
			Kind:      f.Kind,
			EventID:   f.EventID,
			AccountID: f.AccountID,
			Details:   f.Details,
			CreatedAt: f.CreatedAt,
		})
	}
	ok(c, http.StatusOK, out)
}

// ResolveFlag marks a reconciliation flag handled by an operator.
//
// @Summary      Resolve a reconciliation flag
// @Tags         reconciliation
// @Produce      json
// @Param        id   path  string  true  "Flag ID"
// @Success      204
// @Failure      404  {object}  handlers.ErrorResponse
// @Router       /reconciliation/flags/{id}/resolve [post]
func (h *Handler) ResolveFlag(c *gin.Context) {
	if err := repo.ResolveFlag(c.Request.Context(), h.DB, c.Param("id")); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "flag not found or already resolved")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to resolve flag")
		return
	}
	noContent(c)
}
