package http

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultThrottleBackoff is the pause applied after a 429 without Retry-After.
	DefaultThrottleBackoff = 1 * time.Second
	// MaxThrottleBackoff caps the pause after repeated throttling.
	MaxThrottleBackoff = 60 * time.Second
	// ThrottleCooldown is how long without throttling before a host's rate is restored.
	ThrottleCooldown = 5 * time.Minute
	// MinRateFactor is the lowest fraction of the configured rate used while throttled.
	MinRateFactor = 0.25
)

// RateLimiterConfig defines per-host request rates.
type RateLimiterConfig struct {
	// DefaultRPS applies to hosts without a custom rate (0 = unlimited).
	DefaultRPS float64
	// Burst is the token bucket size (default 1).
	Burst int
	// CustomRates maps host names to requests per second.
	CustomRates map[string]float64
	// EnableDynamicBackoff lowers a host's rate while it keeps throttling us.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns defaults suited to public LibreTranslate
// instances, which allow roughly 80 requests per minute per client.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRPS:           1.3,
		Burst:                3,
		CustomRates:          make(map[string]float64),
		EnableDynamicBackoff: true,
	}
}

// throttleState tracks a host that answered 429/503.
type throttleState struct {
	backoff  time.Duration
	lastHit  time.Time
	strikes  int
	baseRate float64
}

// RateLimiter is a per-host token bucket with throttle-aware backoff.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	throttled map[string]*throttleState
	config    RateLimiterConfig
}

// NewRateLimiter creates a limiter for the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		throttled: make(map[string]*throttleState),
		config:    cfg,
	}
}

// Wait blocks until a request to urlStr is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	if err := rl.waitForBackoff(ctx, hostOf(urlStr)); err != nil {
		return err
	}
	limiter := rl.limiter(hostOf(urlStr))
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) waitForBackoff(ctx context.Context, host string) error {
	rl.mu.Lock()
	st, ok := rl.throttled[host]
	var remaining time.Duration
	if ok {
		remaining = st.backoff - time.Since(st.lastHit)
	}
	rl.mu.Unlock()

	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// limiter returns the bucket for host, nil when unlimited.
func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rps := rl.rps(host)
	if rps <= 0 {
		return nil
	}
	if l, ok := rl.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rps), rl.config.Burst)
	rl.limiters[host] = l
	return l
}

// rps must be called with mu held.
func (rl *RateLimiter) rps(host string) float64 {
	if v, ok := rl.config.CustomRates[host]; ok {
		return v
	}
	return rl.config.DefaultRPS
}

// SetRate overrides the rate for host.
func (rl *RateLimiter) SetRate(host string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.config.CustomRates[host] = rps
	delete(rl.limiters, host)
}

// RecordThrottle notes a 429/503 from urlStr and returns how long callers
// should pause before the next request to that host.
func (rl *RateLimiter) RecordThrottle(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return DefaultThrottleBackoff
	}
	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.throttled[host]
	if !ok {
		st = &throttleState{backoff: DefaultThrottleBackoff, baseRate: rl.rps(host)}
		rl.throttled[host] = st
	} else {
		st.backoff *= 2
		if st.backoff > MaxThrottleBackoff {
			st.backoff = MaxThrottleBackoff
		}
	}
	st.lastHit = time.Now()
	st.strikes++
	if retryAfter > st.backoff {
		st.backoff = retryAfter
	}

	if l, ok := rl.limiters[host]; ok && st.baseRate > 0 {
		factor := 1.0 / float64(st.strikes+1)
		if factor < MinRateFactor {
			factor = MinRateFactor
		}
		l.SetLimit(rate.Limit(st.baseRate * factor))
	}
	return st.backoff
}

// RecordSuccess restores the host's configured rate once it has been quiet
// for ThrottleCooldown.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil {
		return
	}
	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.throttled[host]
	if !ok || time.Since(st.lastHit) < ThrottleCooldown {
		return
	}
	if l, ok := rl.limiters[host]; ok && st.baseRate > 0 {
		l.SetLimit(rate.Limit(st.baseRate))
	}
	delete(rl.throttled, host)
}

// Backoff returns the remaining throttle pause for urlStr's host.
func (rl *RateLimiter) Backoff(urlStr string) time.Duration {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	st, ok := rl.throttled[hostOf(urlStr)]
	if !ok {
		return 0
	}
	if d := st.backoff - time.Since(st.lastHit); d > 0 {
		return d
	}
	return 0
}

// hostOf extracts the host name without port, "unknown" when unparsable.
func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
