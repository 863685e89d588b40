package scraper

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-tickets/config"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

// Backoff multipliers per error class, and the decay applied on success.
const (
	penaltyRateLimited = 2.0
	penaltyServer      = 1.5
	penaltyGeneric     = 1.2
	successDecay       = 0.9
	jitterFraction     = 0.2
)

// Limiter throttles outbound requests per source. Each source carries a
// request budget (sliding window) and an adaptive delay that grows on errors
// and decays back to the base on success. State is process-lifetime: it
// survives across orchestration runs so learned backoff is preserved, and is
// mutex-guarded because concurrent runs share it.
type Limiter struct {
	requestsPerMinute int
	baseDelay         time.Duration
	maxDelay          time.Duration

	// sleep is swapped out by tests for determinism.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	states map[models.SourceID]*limiterState
}

type limiterState struct {
	budget            *rate.Limiter
	delay             time.Duration
	consecutiveErrors int
}

// NewLimiter builds a limiter from the shared configuration.
func NewLimiter(cfg *config.Config) *Limiter {
	return &Limiter{
		requestsPerMinute: cfg.RequestsPerMinute,
		baseDelay:         cfg.BaseDelay,
		maxDelay:          cfg.MaxDelay,
		sleep:             sleepContext,
		states:            make(map[models.SourceID]*limiterState),
	}
}

// Wait blocks until the source's budget admits a request and its adaptive
// delay has elapsed. The only possible error is context cancellation.
func (l *Limiter) Wait(ctx context.Context, source models.SourceID) error {
	state := l.state(source)

	l.mu.Lock()
	delay := state.delay
	budget := state.budget
	l.mu.Unlock()

	if err := budget.Wait(ctx); err != nil {
		return err
	}
	return l.sleep(ctx, jittered(delay))
}

// OnSuccess decays the source's delay toward the base.
func (l *Limiter) OnSuccess(source models.SourceID) {
	state := l.state(source)

	l.mu.Lock()
	defer l.mu.Unlock()
	state.consecutiveErrors = 0
	state.delay = time.Duration(float64(state.delay) * successDecay)
	if state.delay < l.baseDelay {
		state.delay = l.baseDelay
	}
}

// OnError grows the source's delay according to the error class.
func (l *Limiter) OnError(source models.SourceID, class Class) {
	state := l.state(source)

	factor := penaltyGeneric
	switch class {
	case ClassRateLimited:
		factor = penaltyRateLimited
	case ClassServer:
		factor = penaltyServer
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	state.consecutiveErrors++
	state.delay = time.Duration(float64(state.delay) * factor)
	if state.delay > l.maxDelay {
		state.delay = l.maxDelay
	}
}

// Delay reports the source's current adaptive delay.
func (l *Limiter) Delay(source models.SourceID) time.Duration {
	state := l.state(source)
	l.mu.Lock()
	defer l.mu.Unlock()
	return state.delay
}

// ConsecutiveErrors reports the source's current error streak.
func (l *Limiter) ConsecutiveErrors(source models.SourceID) int {
	state := l.state(source)
	l.mu.Lock()
	defer l.mu.Unlock()
	return state.consecutiveErrors
}

// Reset discards all per-source state, as on process restart.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = make(map[models.SourceID]*limiterState)
}

func (l *Limiter) state(source models.SourceID) *limiterState {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.states[source]
	if !ok {
		state = &limiterState{
			// limit N/minute with burst N approximates a one-minute
			// sliding window over request timestamps.
			budget: rate.NewLimiter(rate.Limit(float64(l.requestsPerMinute)/60.0), l.requestsPerMinute),
			delay:  l.baseDelay,
		}
		l.states[source] = state
	}
	return state
}

// jittered spreads a delay by ±20% to avoid synchronized retry storms.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	factor := 1 - jitterFraction + 2*jitterFraction*rand.Float64()
	return time.Duration(float64(d) * factor)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
