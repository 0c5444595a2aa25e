// Package signature authenticates payment-result payloads exchanged with the gateway.
//
// A signature is the lower-case hex HMAC-SHA-256 of the payload fields joined with ':'
// in a fixed, protocol-defined order.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const delimiter = ":"

// HMACHex returns hex(HMAC-SHA-256(secret, message)).
func HMACHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func Compute(fields []string, secret string) string {
	return HMACHex(secret, strings.Join(fields, delimiter))
}

// Verify reports whether sig matches the fields. A mismatch is not an error; callers must
// treat the payload as untrusted.
func Verify(sig string, fields []string, secret string) bool {
	if sig == "" || secret == "" {
		return false
	}
	expected := Compute(fields, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}

// HostedResult carries the signed fields of a checkout-form or wallet callback.
type HostedResult struct {
	PaymentStatus  string
	PaymentID      string
	Currency       string
	BasketID       string
	ConversationID string
	PaidPrice      string
	Price          string
	Token          string
}

func (h HostedResult) Fields() []string {
	return []string{
		h.PaymentStatus,
		h.PaymentID,
		h.Currency,
		h.BasketID,
		h.ConversationID,
		h.PaidPrice,
		h.Price,
		h.Token,
	}
}

// ThreeDsCallback carries the signed fields the gateway posts after a 3DS challenge.
type ThreeDsCallback struct {
	Status           string
	PaymentID        string
	ConversationData string
	ConversationID   string
	MDStatus         string
}

func (c ThreeDsCallback) Fields() []string {
	return []string{
		c.Status,
		c.PaymentID,
		c.ConversationData,
		c.ConversationID,
		c.MDStatus,
	}
}
