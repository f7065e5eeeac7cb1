package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/campusops/equipment-service/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
)

func Test_circuitBreaker_Call(t *testing.T) {
	successfulService := func() error {
		return nil
	}
	failingService := func() error {
		return errors.New("broker down")
	}

	cb := circuit_breaker.New(10, 50*time.Millisecond, 0.30, 3)

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Call(successfulService))
	}

	// trip the breaker
	for i := 0; i < 10; i++ {
		_ = cb.Call(failingService)
	}
	err := cb.Call(successfulService)
	require.ErrorIs(t, err, circuit_breaker.ErrOpenCB)

	// after the timeout it probes half-open and recovers on successes
	time.Sleep(60 * time.Millisecond)
	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Call(successfulService))
	}

	// a failure while probing reopens it
	for i := 0; i < 10; i++ {
		_ = cb.Call(failingService)
	}
	time.Sleep(60 * time.Millisecond)
	_ = cb.Call(failingService)
	require.ErrorIs(t, cb.Call(successfulService), circuit_breaker.ErrOpenCB)
}
