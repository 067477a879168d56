// Package handlers implements the HTTP handlers for the webhook ingress and
// the account consumption API.
//
// This file defines the response envelope shared by every endpoint. Errors
// always serialize as an ErrorResponse whose code is one of the errors.go
// constants; the webhook provider and the bot both branch on those codes, so
// they are part of the API contract.
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "insufficient_balance",
//	  "message": "balance cannot cover the requested amount"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mynted/credits-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints. RequestID
// echoes the X-Request-ID header so a client-reported failure can be matched
// against server logs.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go
	Code string `json:"code" example:"not_found"`
	// Safe to surface to end users
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with the standard envelope. Statuses at 500 and
// above are additionally logged through the request-scoped logger; 4xx are
// client mistakes and stay out of the error log.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes the envelope to other packages; the router's NoRoute and
// NoMethod fallbacks use it so even unmatched requests answer in shape.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204 for operations with nothing to return.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
