package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookSink POSTs conversion events as JSON to a collector endpoint.
// Covers the generic "fire-and-forget analytics collector" class: the
// collector's response body is ignored, only the status matters.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSink{url: url, client: client}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Deliver(ctx context.Context, event ConversionEvent) error {
	return postJSON(ctx, s.client, s.url, event)
}

// WebhookErrorSink POSTs error events to an error-tracking collector.
type WebhookErrorSink struct {
	url     string
	client  *http.Client
	metrics *Metrics
}

func NewWebhookErrorSink(url string, client *http.Client, metrics *Metrics) *WebhookErrorSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookErrorSink{url: url, client: client, metrics: metrics}
}

func (s *WebhookErrorSink) Report(ctx context.Context, event ErrorEvent) error {
	if s.metrics != nil {
		s.metrics.RecordErrorReport()
	}
	return postJSON(ctx, s.client, s.url, event)
}

func postJSON(ctx context.Context, client *http.Client, url string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}
