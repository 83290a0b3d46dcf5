package models

import (
	rlmodels "edgepay/internal/ratelimit/models"
)

// OutcomeKind enumerates the terminal states of one checkout request:
// received -> rate checked -> context extracted -> risk scored ->
// {rate limited | risk rejected | payment attempted} -> {succeeded | failed}.
// There is no retry loop inside a request; retries belong to the caller.
type OutcomeKind int

const (
	OutcomeRateLimited OutcomeKind = iota
	OutcomeRiskRejected
	OutcomeSucceeded
	OutcomeFailed
)

// String returns the metric/log label for the outcome.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeRiskRejected:
		return "risk_rejected"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is a closed sum over the terminal states. Constructors are the only
// way to build one, so a success can never carry an error and a rejection can
// never carry a client secret.
type Outcome struct {
	kind         OutcomeKind
	rate         *rlmodels.Result
	score        float64
	clientSecret string
	amount       int64
	currency     string
}

// RateLimited builds the outcome for a denied rate check.
func RateLimited(rate *rlmodels.Result) Outcome {
	return Outcome{kind: OutcomeRateLimited, rate: rate}
}

// RiskRejected builds the outcome for a score above the gate.
func RiskRejected(score float64) Outcome {
	return Outcome{kind: OutcomeRiskRejected, score: score}
}

// Succeeded builds the outcome for a captured payment.
func Succeeded(clientSecret string, amount int64, currency string) Outcome {
	return Outcome{
		kind:         OutcomeSucceeded,
		clientSecret: clientSecret,
		amount:       amount,
		currency:     currency,
	}
}

// Failed builds the generic failure outcome. It deliberately carries nothing:
// the sanitized detail goes to the error sink, not the caller.
func Failed() Outcome {
	return Outcome{kind: OutcomeFailed}
}

func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// RateResult is non-nil only for OutcomeRateLimited.
func (o Outcome) RateResult() *rlmodels.Result {
	return o.rate
}

// FraudScore is meaningful only for OutcomeRiskRejected.
func (o Outcome) FraudScore() float64 {
	return o.score
}

// Success returns the 200 body for OutcomeSucceeded.
func (o Outcome) Success() SuccessResponse {
	return SuccessResponse{
		Success:       true,
		ClientSecret:  o.clientSecret,
		Amount:        o.amount,
		Currency:      o.currency,
		EdgeOptimized: true,
	}
}
