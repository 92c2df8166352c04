// Package circuitbreaker guards calls to external services (CMS, broker, mail)
// with Sony's gobreaker.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before going half-open
	Timeout time.Duration
	// HalfOpenRequests is how many trial requests pass while half-open
	HalfOpenRequests int
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.HalfOpenRequests <= 0 {
		return fmt.Errorf("HalfOpenRequests must be positive, got %d", c.HalfOpenRequests)
	}
	return nil
}

var (
	// CMSConfig fails fast so page requests fall back to cached data.
	CMSConfig = Config{
		MaxFailures:      3,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 2,
	}

	// NotifyConfig is for lead notification over AMQP or SMTP.
	NotifyConfig = Config{
		MaxFailures:      5,
		Timeout:          2 * time.Minute,
		HalfOpenRequests: 1,
	}
)

// Breaker wraps a gobreaker.CircuitBreaker.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// New creates a breaker. An invalid config falls back to DefaultConfig.
func New(name string, config Config, logger logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.String("breaker", name),
			logging.Err(err),
		)
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.HalfOpenRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Client errors and caller cancellation say nothing about the remote's health.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	switch errors.GetType(err) {
	case errors.ErrTypeValidation, errors.ErrTypeNotFound:
		return true
	}
	return false
}

// Execute runs fn unless the circuit is open. A rejected call returns an
// UnavailableError.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.UnavailableError(fmt.Sprintf("%s is unavailable", b.name), err).
			WithContext("breaker", b.name)
	}
	return err
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.breaker.State().String()
}

// IsOpen returns true if the circuit breaker is open
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
