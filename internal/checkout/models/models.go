package models

import (
	"errors"
	"math"
	"strings"
)

// CheckoutRequest is the payment intake body. Amount is minor-unit-agnostic
// at this layer; the provider interprets it against the currency.
type CheckoutRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"paymentMethod"`
	UserID        string  `json:"userId"`
	ProductID     string  `json:"productId"`
}

// Validate rejects malformed input with a field-specific message before any
// rate-limit quota is spent on the request.
func (r CheckoutRequest) Validate() error {
	if r.Amount <= 0 || math.IsInf(r.Amount, 0) || math.IsNaN(r.Amount) {
		return errors.New("amount must be a positive finite number")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return errors.New("currency is required")
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return errors.New("paymentMethod is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("userId is required")
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return errors.New("productId is required")
	}
	return nil
}

// SuccessResponse is the 200 body. Success captures are the only path that
// produces it; the constructor-based Outcome type keeps an error field from
// ever appearing here.
type SuccessResponse struct {
	Success       bool   `json:"success"`
	ClientSecret  string `json:"clientSecret"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	EdgeOptimized bool   `json:"edgeOptimized"`
}

// RateLimitedResponse is the 429 body.
type RateLimitedResponse struct {
	Error string `json:"error"`
}

// RiskRejectedResponse is the 400 body for the risk gate. The score is
// surfaced deliberately so the product can explain the step-up challenge.
type RiskRejectedResponse struct {
	Error      string  `json:"error"`
	FraudScore float64 `json:"fraudScore"`
}

// FailureResponse is the generic 500 body. Never carries provider detail.
type FailureResponse struct {
	Error     string `json:"error"`
	EdgeError bool   `json:"edgeError"`
}

// ValidationResponse is the 400 body for malformed input.
type ValidationResponse struct {
	Error string `json:"error"`
}

// QuoteResponse is the locale-priced quote for the calculator UI.
type QuoteResponse struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Country  string `json:"country"`
}
