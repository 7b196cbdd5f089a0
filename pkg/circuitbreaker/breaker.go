// Package circuitbreaker wraps sony/gobreaker for guarding clinic
// suggestion and template lookups, with zap and OpenTelemetry metrics.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// State represents the circuit breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds circuit breaker configuration
type Config struct {
	// Name identifies the circuit breaker
	Name string
	// MaxRequests is max probe requests allowed while half-open
	MaxRequests uint32
	// Interval is the cyclic period for clearing counts while closed
	Interval time.Duration
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// FailureThreshold is consecutive failures before opening on low traffic
	FailureThreshold uint32
	// FailureRatio opens the circuit once this share of requests fail
	FailureRatio float64
	// MinRequests is the minimum sample before the ratio applies
	MinRequests uint32
}

// DefaultConfig returns defaults tuned for interactive template lookups:
// open fast, probe again quickly so the picker recovers within a consult.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      2,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		FailureRatio:     0.5,
		MinRequests:      6,
	}
}

// Breaker guards an external call with a circuit breaker
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger

	meter           metric.Meter
	requestCounter  metric.Int64Counter
	failureCounter  metric.Int64Counter
	rejectedCounter metric.Int64Counter

	stateMu      sync.RWMutex
	currentState State
}

// New creates a circuit breaker
func New(cfg Config, logger *zap.Logger) (*Breaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		name:         cfg.Name,
		logger:       logger,
		meter:        otel.Meter("clinic-breaker"),
		currentState: StateClosed,
	}

	var err error
	b.requestCounter, err = b.meter.Int64Counter("clinic_breaker_requests_total",
		metric.WithDescription("Total requests through the breaker"))
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	b.failureCounter, err = b.meter.Int64Counter("clinic_breaker_failures_total",
		metric.WithDescription("Total failed requests"))
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	b.rejectedCounter, err = b.meter.Int64Counter("clinic_breaker_rejected_total",
		metric.WithDescription("Total requests rejected while open"))
	if err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.onStateChange(from, to)
		},
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b, nil
}

// Execute runs fn through the circuit breaker
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	b.requestCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))

	result, err := b.cb.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			b.rejectedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))
		} else {
			b.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))
		}
		return nil, err
	}
	return result, nil
}

// ExecuteWithFallback runs fn, invoking fallback when the circuit rejects
// the call. Lookup callers use this to degrade to empty suggestion lists.
func (b *Breaker) ExecuteWithFallback(ctx context.Context, fn func() (interface{}, error), fallback func(error) (interface{}, error)) (interface{}, error) {
	result, err := b.Execute(ctx, fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			b.logger.Warn("circuit open, using fallback",
				zap.String("breaker", b.name),
				zap.Error(err))
			return fallback(err)
		}
		return nil, err
	}
	return result, nil
}

// GetState returns the current state
func (b *Breaker) GetState() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.currentState
}

// IsOpen reports whether the circuit is open
func (b *Breaker) IsOpen() bool { return b.GetState() == StateOpen }

// Counts returns the underlying gobreaker counts
func (b *Breaker) Counts() gobreaker.Counts { return b.cb.Counts() }

func (b *Breaker) onStateChange(from, to gobreaker.State) {
	b.stateMu.Lock()
	b.currentState = mapState(to)
	b.stateMu.Unlock()

	b.logger.Warn("circuit breaker state changed",
		zap.String("breaker", b.name),
		zap.String("from", string(mapState(from))),
		zap.String("to", string(mapState(to))))
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
