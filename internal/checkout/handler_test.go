package checkout

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"edgepay/internal/dispatch"
	"edgepay/internal/payment"
	"edgepay/internal/pricing"
	rlmw "edgepay/internal/ratelimit/middleware"
	rlmodels "edgepay/internal/ratelimit/models"
	rlservice "edgepay/internal/ratelimit/service"
	"edgepay/internal/ratelimit/store"
	"edgepay/internal/risk"
	"edgepay/pkg/platform/middleware/metadata"
	"edgepay/pkg/testutil"
)

// HandlerSuite runs the full pipeline over HTTP with real in-memory
// components; only the external collaborators (provider, sinks) are stubs.
type HandlerSuite struct {
	suite.Suite
	router    http.Handler
	provider  *payment.RecordingProvider
	sinkA     *recordingSink
	sinkB     *recordingSink
	errorSink *recordingErrorSink
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.build(nil, nil)
}

// build wires the router with fresh components. Tests that need a failing
// provider or sink rebuild explicitly with the errors they want injected.
func (s *HandlerSuite) build(providerErr, sinkBErr error) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	limiter, err := rlservice.New(store.NewInMemoryWindowStore(), map[rlmodels.Purpose]rlservice.Window{
		rlmodels.PurposePayment: {Window: time.Minute, MaxRequests: 5},
		rlmodels.PurposeQuote:   {Window: 10 * time.Second, MaxRequests: 50},
	}, rlservice.WithLogger(logger))
	s.Require().NoError(err)

	engine, err := pricing.New(testPricingConfig())
	s.Require().NoError(err)

	scorer, err := risk.NewScorer(testRiskConfig(),
		risk.NewStaticReputationList([]string{"203.0.113.66"}),
		risk.NewInMemoryUserRiskStore(map[string]float64{"repeat-offender": 0.95}),
		risk.WithLogger(logger))
	s.Require().NoError(err)

	s.provider = &payment.RecordingProvider{Err: providerErr}
	s.sinkA = &recordingSink{name: "a"}
	s.sinkB = &recordingSink{name: "b", err: sinkBErr}
	s.errorSink = &recordingErrorSink{}

	broadcaster := dispatch.NewBroadcaster([]dispatch.Sink{s.sinkA, s.sinkB},
		time.Second, dispatch.WithLogger(logger))

	svc, err := New(limiter, engine, scorer, s.provider, broadcaster, s.errorSink,
		2*time.Second, WithLogger(logger), WithEdgeLocation("test-edge"))
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)
	NewHandler(svc, logger).Register(r, rlmw.New(limiter, logger))
	s.router = r
}

func (s *HandlerSuite) postCheckout(body string, headers map[string]string) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(http.MethodPost, "/v1/checkout", body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return testutil.DoRequest(s.router, req)
}

func validBody(amount float64) string {
	return fmt.Sprintf(`{"amount":%g,"currency":"USD","paymentMethod":"pm_card","userId":"user-1","productId":"gold-1oz"}`, amount)
}

func (s *HandlerSuite) TestCheckout_Success() {
	rec := s.postCheckout(validBody(1000), map[string]string{
		metadata.HeaderForwardedFor: "203.0.113.7",
		metadata.HeaderGeoCountry:   "JP",
	})

	s.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		Success       bool    `json:"success"`
		ClientSecret  string  `json:"clientSecret"`
		Amount        int64   `json:"amount"`
		Currency      string  `json:"currency"`
		EdgeOptimized bool    `json:"edgeOptimized"`
		Error         *string `json:"error"`
	}
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.True(resp.Success)
	s.True(resp.EdgeOptimized)
	s.Equal(int64(1200), resp.Amount) // JP multiplier applied
	s.Equal("USD", resp.Currency)
	s.NotEmpty(resp.ClientSecret)
	s.Nil(resp.Error, "success body must not carry an error field")
}

func (s *HandlerSuite) TestCheckout_RateLimited() {
	headers := map[string]string{metadata.HeaderForwardedFor: "203.0.113.7"}

	for i := range 5 {
		rec := s.postCheckout(validBody(100), headers)
		s.Require().Equal(http.StatusOK, rec.Code, "request %d", i)
	}

	rec := s.postCheckout(validBody(100), headers)
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))

	var resp map[string]any
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal("Too many payment attempts, please try again later", resp["error"])

	// The sixth attempt never reached the provider.
	s.Equal(5, s.provider.Calls())

	// A different client is unaffected.
	rec = s.postCheckout(validBody(100), map[string]string{metadata.HeaderForwardedFor: "198.51.100.9"})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestCheckout_RiskRejected() {
	rec := s.postCheckout(
		`{"amount":100,"currency":"USD","paymentMethod":"pm_card","userId":"repeat-offender","productId":"gold-1oz"}`,
		map[string]string{metadata.HeaderForwardedFor: "203.0.113.7"})

	s.Require().Equal(http.StatusBadRequest, rec.Code)

	var resp struct {
		Error      string  `json:"error"`
		FraudScore float64 `json:"fraudScore"`
	}
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal("Payment requires additional verification", resp.Error)
	s.InDelta(0.95, resp.FraudScore, 1e-9)

	s.Zero(s.provider.Calls(), "no payment attempt on risk rejection")
	s.Empty(s.sinkA.Events())
}

func (s *HandlerSuite) TestCheckout_MalformedInput() {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{not json`, "invalid JSON body"},
		{"zero amount", `{"amount":0,"currency":"USD","paymentMethod":"pm","userId":"u","productId":"p"}`, "amount"},
		{"negative amount", `{"amount":-5,"currency":"USD","paymentMethod":"pm","userId":"u","productId":"p"}`, "amount"},
		{"missing currency", `{"amount":100,"paymentMethod":"pm","userId":"u","productId":"p"}`, "currency"},
		{"missing payment method", `{"amount":100,"currency":"USD","userId":"u","productId":"p"}`, "paymentMethod"},
		{"missing user", `{"amount":100,"currency":"USD","paymentMethod":"pm","productId":"p"}`, "userId"},
		{"missing product", `{"amount":100,"currency":"USD","paymentMethod":"pm","userId":"u"}`, "productId"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.postCheckout(tt.body, map[string]string{metadata.HeaderForwardedFor: "203.0.113.20"})
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Contains(rec.Body.String(), tt.want)
		})
	}

	s.Zero(s.provider.Calls())
}

func (s *HandlerSuite) TestCheckout_MalformedInputBurnsNoQuota() {
	headers := map[string]string{metadata.HeaderForwardedFor: "203.0.113.30"}

	// Far more malformed requests than the window allows.
	for range 20 {
		rec := s.postCheckout(`{"amount":0}`, headers)
		s.Require().Equal(http.StatusBadRequest, rec.Code)
	}

	rec := s.postCheckout(validBody(100), headers)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestCheckout_ProviderFailure() {
	s.build(errors.New("provider returned status 502: internal gateway detail"), nil)

	rec := s.postCheckout(validBody(100), map[string]string{metadata.HeaderForwardedFor: "203.0.113.7"})

	s.Require().Equal(http.StatusInternalServerError, rec.Code)

	var resp struct {
		Error     string `json:"error"`
		EdgeError bool   `json:"edgeError"`
	}
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal("Payment processing failed", resp.Error)
	s.True(resp.EdgeError)
	s.NotContains(rec.Body.String(), "gateway detail", "provider detail must not leak")

	s.Require().Len(s.errorSink.Events(), 1)
	s.Equal("/v1/checkout", s.errorSink.Events()[0].RequestPath)
}

func (s *HandlerSuite) TestCheckout_FanOutIsolation() {
	s.build(nil, errors.New("collector down"))

	rec := s.postCheckout(validBody(500), map[string]string{metadata.HeaderForwardedFor: "203.0.113.7"})

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(s.sinkA.Events(), 1)
	s.Len(s.sinkB.Events(), 1)
}

func (s *HandlerSuite) TestCheckout_UnknownClientsShareBucket() {
	// No forwarding headers at all: everyone is "unknown" and shares quota.
	for i := range 5 {
		rec := s.postCheckout(validBody(100), nil)
		s.Require().Equal(http.StatusOK, rec.Code, "request %d", i)
	}
	rec := s.postCheckout(validBody(100), nil)
	s.Equal(http.StatusTooManyRequests, rec.Code)
}

func (s *HandlerSuite) TestQuote() {
	req := httptest.NewRequest(http.MethodGet, "/v1/quote?amount=1000&currency=USD", nil)
	req.Header.Set(metadata.HeaderForwardedFor, "203.0.113.7")
	req.Header.Set(metadata.HeaderGeoCountry, "IN")
	rec := testutil.DoRequest(s.router, req)

	s.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Country  string `json:"country"`
	}
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal(int64(300), resp.Amount)
	s.Equal("IN", resp.Country)

	s.Zero(s.provider.Calls(), "quotes never touch the provider")
}

func (s *HandlerSuite) TestQuote_InvalidAmount() {
	for _, q := range []string{"", "amount=abc", "amount=-5", "amount=0"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/quote?"+q, nil)
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	}
}

func (s *HandlerSuite) TestQuote_RateLimited() {
	headers := "203.0.113.40"
	for i := range 50 {
		req := httptest.NewRequest(http.MethodGet, "/v1/quote?amount=100", nil)
		req.Header.Set(metadata.HeaderForwardedFor, headers)
		rec := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rec.Code, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/quote?amount=100", nil)
	req.Header.Set(metadata.HeaderForwardedFor, headers)
	rec := testutil.DoRequest(s.router, req)

	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.Contains(rec.Body.String(), "Too many quote requests")
}
