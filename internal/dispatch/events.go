package dispatch

import "time"

// ConversionEvent is the fan-out record emitted after a successful capture.
// Sinks receive it verbatim; none of them are a system of record.
type ConversionEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Country    string    `json:"country"`
	PaymentRef string    `json:"payment_ref"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ErrorEvent is sent to the error sink when payment capture fails. Message
// is already sanitized; raw provider errors never reach this type.
type ErrorEvent struct {
	Message     string    `json:"message"`
	RequestPath string    `json:"request_path"`
	OccurredAt  time.Time `json:"occurred_at"`
}
