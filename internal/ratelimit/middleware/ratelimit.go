package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"edgepay/internal/ratelimit/models"
	"edgepay/internal/ratelimit/service"
	"edgepay/pkg/platform/httputil"
	"edgepay/pkg/platform/middleware/metadata"
)

// Middleware applies a configured limiter purpose to a route. The payment
// endpoint does its own rate check inside the pipeline (after input
// validation); this middleware is for read-style endpoints like quotes.
type Middleware struct {
	limiter *service.Limiter
	logger  *slog.Logger
}

func New(limiter *service.Limiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// Limit guards the wrapped handler with the given purpose. The denial body
// message is per-purpose so callers see an error tied to what they were doing.
func (m *Middleware) Limit(purpose models.Purpose, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := metadata.GetClientMeta(r.Context())

			result := m.limiter.TryAcquire(r.Context(), meta.Identity, purpose)
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": message,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
