package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"edgepay/internal/platform/config"
	"edgepay/pkg/platform/sentinel"
)

// HTTPProvider talks to a Stripe-style payment intents API: form-encoded
// creation request, JSON response carrying an id and a client secret.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(cfg config.ProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

func (p *HTTPProvider) CreateIntent(ctx context.Context, req CaptureRequest) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("payment_method", req.PaymentMethod)
	form.Set("confirm", "false")
	if req.CustomerRef != "" {
		form.Set("metadata[customer_ref]", req.CustomerRef)
	}
	if req.ProductID != "" {
		form.Set("metadata[product_id]", req.ProductID)
	}
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused; the body itself is provider
		// internal detail and must not travel further up.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		kind := sentinel.ErrRejected
		if resp.StatusCode >= 500 {
			kind = sentinel.ErrUnavailable
		}
		return nil, fmt.Errorf("create intent: provider returned status %d: %w", resp.StatusCode, kind)
	}

	var ir intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if ir.ID == "" || ir.ClientSecret == "" {
		return nil, fmt.Errorf("intent response missing id or client secret")
	}

	return &Intent{ID: ir.ID, ClientSecret: ir.ClientSecret}, nil
}
