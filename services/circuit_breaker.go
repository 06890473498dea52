package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"vietnam-stock-trader/observability"
)

// Breaker names for the engine's upstream dependencies. Each external
// service gets its own breaker so a dead news feed cannot take the price
// feed down with it.
const (
	BreakerMarketData = "marketdata"
	BreakerNewsFeed   = "newsfeed"
	BreakerBedrock    = "bedrock"
	BreakerTelegram   = "telegram"
)

// CircuitBreakerConfig tunes how breakers recover after tripping.
type CircuitBreakerConfig struct {
	MaxRequests uint32        // probes allowed while half-open
	Interval    time.Duration // closed-state window for failure counts
	Timeout     time.Duration // how long an open breaker stays open
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests: 5,
	Interval:    1 * time.Minute,
	Timeout:     30 * time.Second,
}

// CircuitBreakerRegistry lazily creates one breaker per upstream name.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   CircuitBreakerConfig
}

func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
	}
}

func (r *CircuitBreakerRegistry) breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// At least 5 calls and half of them failing.
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && ratio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			m := observability.GetMetrics()
			m.SetCircuitBreakerState(name, breakerStateValue(to))
			if to == gobreaker.StateOpen {
				m.RecordCircuitBreakerTrip(name)
			}
		},
	})
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker. A rejected call comes back as
// a plain error so callers classify it like any other upstream failure.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.breaker(name).Execute(func() (any, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fn()
	})

	switch err {
	case gobreaker.ErrOpenState:
		observability.Warn("circuit breaker open, rejecting call", "breaker", name)
		return nil, fmt.Errorf("%s unavailable: circuit breaker open", name)
	case gobreaker.ErrTooManyRequests:
		observability.Warn("circuit breaker half-open, shedding call", "breaker", name)
		return nil, fmt.Errorf("%s unavailable: half-open probe limit reached", name)
	}
	return result, err
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryOnce   sync.Once
)

// GetGlobalRegistry returns the process-wide registry shared by every
// service in this package.
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	})
	return globalRegistry
}

// SetGlobalRegistry swaps the global registry. Tests use this to isolate
// breaker state between cases.
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	globalRegistry = r
}

// WithCircuitBreaker runs fn through the global registry's named breaker,
// keeping the caller's result type.
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// 0=closed, 1=half-open, 2=open.
func breakerStateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
