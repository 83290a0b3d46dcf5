package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"edgepay/internal/platform/config"
)

// Engine computes locale-adjusted charge amounts from a fixed multiplier
// table. Unknown countries get the default multiplier, which is below 1.0:
// when we cannot place a buyer we price as if they were in a discounted
// market rather than charging full rate (purchasing-power-parity policy).
type Engine struct {
	multipliers map[string]decimal.Decimal
	fallback    decimal.Decimal
}

// New builds an engine from configuration. Multipliers must be positive;
// the config layer validates this before we get here, but a bad table is
// still rejected so tests constructing configs by hand fail loudly.
func New(cfg config.PricingConfig) (*Engine, error) {
	if cfg.DefaultMultiplier <= 0 {
		return nil, errors.New("default multiplier must be positive")
	}

	multipliers := make(map[string]decimal.Decimal, len(cfg.Multipliers))
	for code, m := range cfg.Multipliers {
		if m <= 0 {
			return nil, errors.New("multiplier must be positive for country " + code)
		}
		multipliers[strings.ToUpper(code)] = decimal.NewFromFloat(m)
	}

	return &Engine{
		multipliers: multipliers,
		fallback:    decimal.NewFromFloat(cfg.DefaultMultiplier),
	}, nil
}

// AdjustedAmount returns base multiplied by the country's multiplier, rounded
// half-up to the nearest integer minor unit. Amounts are positive, so
// decimal's round-half-away-from-zero is half-up here.
func (e *Engine) AdjustedAmount(base float64, country string) int64 {
	return decimal.NewFromFloat(base).Mul(e.Multiplier(country)).Round(0).IntPart()
}

// Multiplier returns the multiplier applied for a country code.
func (e *Engine) Multiplier(country string) decimal.Decimal {
	if m, ok := e.multipliers[strings.ToUpper(country)]; ok {
		return m
	}
	return e.fallback
}
