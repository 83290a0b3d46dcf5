package checkout

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"edgepay/internal/checkout/models"
	rlmw "edgepay/internal/ratelimit/middleware"
	rlmodels "edgepay/internal/ratelimit/models"
	"edgepay/pkg/platform/httputil"
	"edgepay/pkg/platform/middleware/metadata"
)

const (
	rateLimitedMessage  = "Too many payment attempts, please try again later"
	quoteLimitedMessage = "Too many quote requests, please try again later"
	riskRejectedMessage = "Payment requires additional verification"
	failureMessage      = "Payment processing failed"
)

// Handler owns the HTTP surface of the intake pipeline.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the checkout routes. The quote endpoint is guarded by the
// limiter middleware; the checkout endpoint runs its rate check inside the
// pipeline, after input validation, so malformed requests burn no quota.
func (h *Handler) Register(r chi.Router, limited *rlmw.Middleware) {
	r.Post("/v1/checkout", h.handleCheckout)
	r.With(limited.Limit(rlmodels.PurposeQuote, quoteLimitedMessage)).
		Get("/v1/quote", h.handleQuote)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ValidationResponse{
			Error: "invalid JSON body",
		})
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ValidationResponse{
			Error: err.Error(),
		})
		return
	}

	meta := metadata.GetClientMeta(r.Context())
	outcome := h.svc.Checkout(r.Context(), req, meta, r.URL.Path)

	switch outcome.Kind() {
	case models.OutcomeRateLimited:
		if rate := outcome.RateResult(); rate != nil {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rate.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rate.ResetAt.Unix(), 10))
			w.Header().Set("Retry-After", strconv.Itoa(rate.RetryAfter))
		}
		httputil.WriteJSON(w, http.StatusTooManyRequests, models.RateLimitedResponse{
			Error: rateLimitedMessage,
		})

	case models.OutcomeRiskRejected:
		httputil.WriteJSON(w, http.StatusBadRequest, models.RiskRejectedResponse{
			Error:      riskRejectedMessage,
			FraudScore: outcome.FraudScore(),
		})

	case models.OutcomeSucceeded:
		httputil.WriteJSON(w, http.StatusOK, outcome.Success())

	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, models.FailureResponse{
			Error:     failureMessage,
			EdgeError: true,
		})
	}
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ValidationResponse{
			Error: "amount must be a positive finite number",
		})
		return
	}
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = "USD"
	}

	meta := metadata.GetClientMeta(r.Context())
	httputil.WriteJSON(w, http.StatusOK, h.svc.Quote(r.Context(), amount, currency, meta))
}
