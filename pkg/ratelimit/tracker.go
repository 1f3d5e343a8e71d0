package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request budget tracking.
var (
	mddbBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mddb_request_budget_remaining",
		Help: "Requests remaining in the current budget window",
	})

	mddbBudgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mddb_request_budget_blocks_total",
		Help: "Total requests rejected because the budget window was exhausted",
	})

	mddbBudgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mddb_request_budget_throttles_total",
		Help: "Total requests delayed because the budget window ran low",
	})
)

// ErrBudgetExhausted is returned by Allow when the window budget is spent.
var ErrBudgetExhausted = errors.New("request budget exhausted")

// throttleDelay is the per-request delay applied in the throttle band.
const throttleDelay = 1 * time.Second

// Tracker counts outbound requests against a redis-backed fixed window and
// gates them. It satisfies the client Gate interface.
type Tracker struct {
	redis  *redis.Client
	key    string
	budget int
	window time.Duration
	logger zerolog.Logger
}

// NewTracker creates a tracker for one API instance. The instance name
// scopes the redis key, so budgets for different instances stay separate.
// A non-positive budget or window falls back to the defaults.
func NewTracker(redisClient *redis.Client, instance string, budget int, window time.Duration, logger zerolog.Logger) *Tracker {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &Tracker{
		redis:  redisClient,
		key:    fmt.Sprintf("mddb:%s:request_budget", instance),
		budget: budget,
		window: window,
		logger: logger,
	}
}

// Allow counts one request against the window and decides whether it may
// proceed. In the throttle band it sleeps briefly before allowing; once the
// budget is spent it returns ErrBudgetExhausted until the window resets.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.take(ctx)
	if err != nil {
		return fmt.Errorf("request budget check: %w", err)
	}

	mddbBudgetRemaining.Set(float64(state.Remaining()))

	if state.NeedsBlock() {
		t.logger.Warn().
			Int("used", state.Used).
			Int("budget", state.Budget).
			Dur("reset_in", state.TimeUntilReset()).
			Msg("Request budget exhausted - blocking request")

		mddbBudgetBlocksTotal.Inc()
		return fmt.Errorf("%w: resets in %s", ErrBudgetExhausted, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("used", state.Used).
			Int("budget", state.Budget).
			Msg("Request budget low - throttling request")

		mddbBudgetThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(throttleDelay):
		}
	}

	return nil
}

// State returns a snapshot of the current window without counting a request.
func (t *Tracker) State(ctx context.Context) (*WindowState, error) {
	used, err := t.redis.Get(ctx, t.key).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get window count: %w", err)
	}

	ttl, err := t.redis.TTL(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("get window ttl: %w", err)
	}
	if ttl < 0 {
		ttl = t.window
	}

	return &WindowState{
		Used:    used,
		Budget:  t.budget,
		ResetAt: time.Now().Add(ttl),
	}, nil
}

// take increments the window counter, starting a fresh window when the
// counter did not exist yet, and returns the resulting state.
func (t *Tracker) take(ctx context.Context) (*WindowState, error) {
	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, t.key)
	ttl := pipe.TTL(ctx, t.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("increment window count: %w", err)
	}

	used := int(incr.Val())

	// A counter without an expiry is a freshly started window.
	windowTTL := ttl.Val()
	if windowTTL < 0 {
		if err := t.redis.Expire(ctx, t.key, t.window).Err(); err != nil {
			return nil, fmt.Errorf("start window: %w", err)
		}
		windowTTL = t.window
	}

	return &WindowState{
		Used:    used,
		Budget:  t.budget,
		ResetAt: time.Now().Add(windowTTL),
	}, nil
}
