package models

import "time"

// Purpose names one configured limiter use. Each purpose carries its own
// window and limit; buckets for different purposes never collide even for
// the same client identity.
type Purpose string

const (
	// PurposePayment guards the payment intake endpoint (low volume, strict).
	PurposePayment Purpose = "payment"
	// PurposeQuote guards the pricing quote endpoint (high volume, loose).
	PurposeQuote Purpose = "quote"
)

// IsValid checks if the purpose is one of the supported enum values.
func (p Purpose) IsValid() bool {
	switch p {
	case PurposePayment, PurposeQuote:
		return true
	}
	return false
}

// String returns the string representation.
func (p Purpose) String() string {
	return string(p)
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Key builds the bucket store key for a purpose and client identity.
func Key(purpose Purpose, identity string) string {
	return string(purpose) + ":" + identity
}
