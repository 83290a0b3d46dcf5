package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgepay/internal/ratelimit/models"
	"edgepay/internal/ratelimit/store"
)

func paymentWindows() map[models.Purpose]Window {
	return map[models.Purpose]Window{
		models.PurposePayment: {Window: time.Minute, MaxRequests: 5},
		models.PurposeQuote:   {Window: 10 * time.Second, MaxRequests: 50},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, paymentWindows())
	assert.Error(t, err)

	_, err = New(store.NewInMemoryWindowStore(), nil)
	assert.Error(t, err)

	_, err = New(store.NewInMemoryWindowStore(), map[models.Purpose]Window{
		models.PurposePayment: {Window: 0, MaxRequests: 5},
	})
	assert.Error(t, err)

	_, err = New(store.NewInMemoryWindowStore(), map[models.Purpose]Window{
		models.Purpose("bogus"): {Window: time.Minute, MaxRequests: 5},
	})
	assert.Error(t, err)
}

func TestTryAcquire_PaymentQuota(t *testing.T) {
	limiter, err := New(store.NewInMemoryWindowStore(), paymentWindows())
	require.NoError(t, err)
	ctx := context.Background()

	allowed, denied := 0, 0
	for range 6 {
		res := limiter.TryAcquire(ctx, "203.0.113.7", models.PurposePayment)
		if res.Allowed {
			allowed++
		} else {
			denied++
			assert.GreaterOrEqual(t, res.RetryAfter, 1)
		}
	}
	assert.Equal(t, 5, allowed)
	assert.Equal(t, 1, denied)
}

func TestTryAcquire_PurposesIndependent(t *testing.T) {
	limiter, err := New(store.NewInMemoryWindowStore(), paymentWindows())
	require.NoError(t, err)
	ctx := context.Background()

	for range 5 {
		res := limiter.TryAcquire(ctx, "203.0.113.7", models.PurposePayment)
		require.True(t, res.Allowed)
	}
	res := limiter.TryAcquire(ctx, "203.0.113.7", models.PurposePayment)
	require.False(t, res.Allowed)

	// The quote purpose still has quota for the same identity.
	res = limiter.TryAcquire(ctx, "203.0.113.7", models.PurposeQuote)
	assert.True(t, res.Allowed)
}

func TestTryAcquire_UnknownIdentitiesShareBucket(t *testing.T) {
	limiter, err := New(store.NewInMemoryWindowStore(), paymentWindows())
	require.NoError(t, err)
	ctx := context.Background()

	for range 5 {
		res := limiter.TryAcquire(ctx, "unknown", models.PurposePayment)
		require.True(t, res.Allowed)
	}
	res := limiter.TryAcquire(ctx, "unknown", models.PurposePayment)
	assert.False(t, res.Allowed)
}

func TestTryAcquire_MissingPurposeDenies(t *testing.T) {
	limiter, err := New(store.NewInMemoryWindowStore(), map[models.Purpose]Window{
		models.PurposeQuote: {Window: 10 * time.Second, MaxRequests: 50},
	})
	require.NoError(t, err)

	res := limiter.TryAcquire(context.Background(), "203.0.113.7", models.PurposePayment)
	assert.False(t, res.Allowed)
	assert.Equal(t, 60, res.RetryAfter)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("store down")
}

func (failingStore) Reset(context.Context, string) error { return nil }

func (failingStore) CurrentCount(context.Context, string) (int, error) { return 0, nil }

func TestTryAcquire_StoreFailureAllows(t *testing.T) {
	limiter, err := New(failingStore{}, paymentWindows())
	require.NoError(t, err)

	res := limiter.TryAcquire(context.Background(), "203.0.113.7", models.PurposePayment)
	assert.True(t, res.Allowed)
}
