package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
	})
	cb.now = func() time.Time { return *now }
	return cb
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	}
	// a success resets the count
	assert.NoError(t, cb.Execute(func() error { return nil }))
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}

	now = now.Add(time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())

	// a half-open failure reopens immediately
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, CBOpen, cb.State())

	now = now.Add(time.Minute)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCBState_String(t *testing.T) {
	assert.Equal(t, "closed", CBClosed.String())
	assert.Equal(t, "open", CBOpen.String())
	assert.Equal(t, "half-open", CBHalfOpen.String())
}
