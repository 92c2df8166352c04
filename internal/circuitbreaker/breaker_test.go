package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
)

func TestBreaker(t *testing.T) {
	logger := logging.GetGlobalLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := New("test-basic", Config{MaxFailures: 2, Timeout: 100 * time.Millisecond, HalfOpenRequests: 1}, logger)

		assert.Equal(t, "closed", cb.State())
		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("circuit opens after failures", func(t *testing.T) {
		cb := New("test-failures", Config{MaxFailures: 3, Timeout: time.Minute, HalfOpenRequests: 1}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return fmt.Errorf("failure %d", i)
			})
			assert.Error(t, err)
		}
		assert.True(t, cb.IsOpen())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("This should not be called")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	})

	t.Run("half-open trial request closes the circuit", func(t *testing.T) {
		cb := New("test-half-open", Config{MaxFailures: 1, Timeout: 50 * time.Millisecond, HalfOpenRequests: 1}, logger)

		cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		assert.Equal(t, "open", cb.State())

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, "half-open", cb.State())

		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("client errors do not trip", func(t *testing.T) {
		cb := New("test-client-errors", Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenRequests: 1}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.NotFoundError("product")
			})
			assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
		}
		assert.False(t, cb.IsOpen())
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		cb := New("test-cancel", DefaultConfig(), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error { called = true; return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("invalid config uses defaults", func(t *testing.T) {
		cb := New("test-invalid", Config{}, logger)
		assert.Equal(t, "test-invalid", cb.Name())
		assert.Equal(t, "closed", cb.State())
	})
}
