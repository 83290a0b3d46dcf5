package payment

import (
	"context"
	"sync"
)

// RecordingProvider is a deterministic Provider for tests and local runs.
// It records every capture request so tests can assert on invocation counts,
// in particular that rejected requests never reach the provider.
type RecordingProvider struct {
	mu       sync.Mutex
	requests []CaptureRequest

	// Err, when set, is returned instead of an intent.
	Err error
}

func (p *RecordingProvider) CreateIntent(ctx context.Context, req CaptureRequest) (*Intent, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	return &Intent{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
	}, nil
}

// Calls returns how many capture attempts were made.
func (p *RecordingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of the recorded capture requests.
func (p *RecordingProvider) Requests() []CaptureRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CaptureRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
