package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ZaguanLabs/livetl"
)

// Resilient wraps a remote source with exponential retry and a circuit
// breaker. While the breaker is open, loads fail fast with a non-retryable
// SourceError.
type Resilient struct {
	inner  Source
	retry  livetl.RetryConfig
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// ResilientOption configures a Resilient source.
type ResilientOption func(*resilientConfig)

type resilientConfig struct {
	retry       livetl.RetryConfig
	maxFailures uint32
	openTimeout time.Duration
	logger      *slog.Logger
}

// WithRetryConfig overrides the retry schedule.
func WithRetryConfig(cfg livetl.RetryConfig) ResilientOption {
	return func(c *resilientConfig) { c.retry = cfg }
}

// WithBreaker sets the consecutive failures that open the breaker and how long
// it stays open.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) ResilientOption {
	return func(c *resilientConfig) {
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
		if openTimeout > 0 {
			c.openTimeout = openTimeout
		}
	}
}

// WithLogger sets the logger for breaker state changes.
func WithLogger(logger *slog.Logger) ResilientOption {
	return func(c *resilientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewResilient wraps inner.
func NewResilient(inner Source, opts ...ResilientOption) *Resilient {
	cfg := resilientConfig{
		retry:       livetl.DefaultRetryConfig(),
		maxFailures: 3,
		openTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Resilient{inner: inner, retry: cfg.retry, logger: cfg.logger}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("dictionary source breaker state changed",
				"source", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// Name returns the wrapped source's name.
func (r *Resilient) Name() string { return r.inner.Name() }

// State reports the breaker state.
func (r *Resilient) State() gobreaker.State { return r.cb.State() }

// Load retries retryable failures of the wrapped source. Every attempt counts
// toward the breaker.
func (r *Resilient) Load(ctx context.Context) (map[string]any, error) {
	return livetl.WithRetry(ctx, r.retry, func() (map[string]any, error) {
		res, err := r.cb.Execute(func() (interface{}, error) {
			return r.inner.Load(ctx)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &livetl.SourceError{Source: r.Name(), Message: "circuit breaker open", Cause: err}
		}
		if err != nil {
			return nil, err
		}
		return res.(map[string]any), nil
	})
}
