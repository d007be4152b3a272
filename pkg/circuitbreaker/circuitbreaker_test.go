package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream unavailable")

func newTestBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(Settings{
		Name:        "test",
		MaxFailures: maxFailures,
		Timeout:     timeout,
	})
}

func TestExecutePassesThroughWhileClosed(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	require.NoError(t, cb.Execute(func() error { return nil }))
	require.ErrorIs(t, cb.Execute(func() error { return errDownstream }), errDownstream)
	require.NoError(t, cb.Execute(func() error { return nil }))
}

func TestTripsAfterMaxFailures(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)

	require.ErrorIs(t, cb.Execute(func() error { return errDownstream }), errDownstream)
	require.ErrorIs(t, cb.Execute(func() error { return errDownstream }), errDownstream)

	// Open: calls are rejected without reaching the downstream.
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.NotErrorIs(t, err, errDownstream)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)

	require.Error(t, cb.Execute(func() error { return errDownstream }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errDownstream }))

	// Still closed: the success in between reset the streak.
	require.NoError(t, cb.Execute(func() error { return nil }))
}

func TestProbesAfterTimeout(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	require.Error(t, cb.Execute(func() error { return errDownstream }))
	require.Error(t, cb.Execute(func() error { return nil }), "open breaker rejects immediately")

	time.Sleep(20 * time.Millisecond)

	// The probe is allowed through and a success closes the breaker.
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))
}
