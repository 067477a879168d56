// Package whop implements the Whop payment-provider boundary: webhook
// signature verification and payload normalization into internal payment
// events. Nothing in this package touches storage; it is pure input
// validation and translation.
package whop

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrSignatureInvalid is returned when a webhook signature header is absent,
// malformed, or does not match the request body.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// SignatureHeader is the request header carrying the Whop webhook signature.
const SignatureHeader = "Whop-Signature"

// VerifySignature authenticates a webhook delivery. Whop follows the
// Standard Webhooks scheme: the header is "v1,<timestamp>,<hexsig>" and the
// signature is hex(HMAC-SHA256(secret, "<timestamp>.<raw body>")).
//
// The check runs over the exact raw request bytes. Callers must pass the body
// as read off the wire, before any JSON decode, because re-serialization can
// change the bytes and break the signature.
//
// The comparison is constant-time. The only returned error is
// ErrSignatureInvalid; no detail about which part failed is leaked.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" || header == "" {
		return ErrSignatureInvalid
	}

	parts := strings.Split(header, ",")
	if len(parts) != 3 || parts[0] != "v1" {
		return ErrSignatureInvalid
	}
	timestamp, provided := parts[1], parts[2]
	if timestamp == "" || provided == "" {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return ErrSignatureInvalid
	}
	return nil
}
