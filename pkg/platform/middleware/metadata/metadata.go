package metadata

import (
	"context"
	"net/http"
	"strings"
)

// Headers injected by the edge platform in front of this service.
const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
	HeaderGeoCountry   = "X-Vercel-IP-Country"
	HeaderGeoRegion    = "X-Vercel-IP-Country-Region"
	HeaderEdgeLocation = "X-Edge-Location"
)

// UnknownIdentity is the sentinel used when no forwarding header is present.
// All such clients share one rate-limit bucket; that is deliberate.
const UnknownIdentity = "unknown"

const (
	defaultCountry = "US"
	defaultRegion  = "unknown"
)

// ClientMeta is the normalized per-request context seed: who the client is
// and where the platform says they are. Extraction is pure header massaging;
// it never fails and never touches the network.
type ClientMeta struct {
	Identity     string
	Country      string
	Region       string
	EdgeLocation string
}

type contextKeyClientMeta struct{}

// ClientMetadata extracts client identity and geolocation from the request
// and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := FromRequest(r)
		ctx := context.WithValue(r.Context(), contextKeyClientMeta{}, meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientMeta retrieves the client metadata from the context. Returns
// sentinel defaults when the middleware did not run.
func GetClientMeta(ctx context.Context) ClientMeta {
	if meta, ok := ctx.Value(contextKeyClientMeta{}).(ClientMeta); ok {
		return meta
	}
	return ClientMeta{
		Identity: UnknownIdentity,
		Country:  defaultCountry,
		Region:   defaultRegion,
	}
}

// WithClientMeta injects client metadata into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMeta(ctx context.Context, meta ClientMeta) context.Context {
	return context.WithValue(ctx, contextKeyClientMeta{}, meta)
}

// FromRequest normalizes request headers into a ClientMeta.
func FromRequest(r *http.Request) ClientMeta {
	return ClientMeta{
		Identity:     clientIdentity(r),
		Country:      headerOr(r, HeaderGeoCountry, defaultCountry),
		Region:       headerOr(r, HeaderGeoRegion, defaultRegion),
		EdgeLocation: r.Header.Get(HeaderEdgeLocation),
	}
}

// clientIdentity resolves the rate-limit key for the request, handling
// proxies and load balancers.
func clientIdentity(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	// Take the first entry, which is the original client.
	if xff := r.Header.Get(HeaderForwardedFor); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get(HeaderRealIP); xri != "" {
		return strings.TrimSpace(xri)
	}

	return UnknownIdentity
}

func headerOr(r *http.Request, name, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
		return v
	}
	return fallback
}
