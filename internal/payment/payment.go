package payment

import "context"

// CaptureRequest is what the dispatcher hands to the provider: the locale
// adjusted amount in integer minor units plus observability metadata. The
// provider interprets the method and currency; this service does not.
type CaptureRequest struct {
	Amount        int64
	Currency      string
	PaymentMethod string
	CustomerRef   string
	ProductID     string
	Metadata      map[string]string
}

// Intent is the provider's confirmation handle. Opaque beyond the id and the
// client-facing secret the browser needs to confirm the charge.
type Intent struct {
	ID           string
	ClientSecret string
}

// Provider creates a confirmable payment intent with an external capture
// service. Implementations must bound their own network calls.
type Provider interface {
	CreateIntent(ctx context.Context, req CaptureRequest) (*Intent, error)
}
