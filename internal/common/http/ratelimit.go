package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AlibekovAA/authcore/internal/common/constants"
	"github.com/AlibekovAA/authcore/internal/observability/metrics"
)

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	cleanup  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		cleanup:  time.NewTicker(constants.RateLimitCleanupInterval),
		done:     make(chan struct{}),
	}

	go rl.cleanupLimiters()

	return rl
}

func (rl *RateLimiter) cleanupLimiters() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanup.C:
			rl.mu.Lock()
			for key, limiter := range rl.limiters {
				if limiter.Tokens() >= float64(rl.burst) {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		limiter, exists = rl.limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// Allow consumes a token for key. When none is available it reports how
// long the client should wait before the next attempt.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	limiter := rl.getLimiter(key)
	if limiter.Allow() {
		return true, 0
	}
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanup.Stop()
		close(rl.done)
	})
}

// RateLimitRule is a token bucket budget per client.
type RateLimitRule struct {
	Name              string
	RequestsPerSecond float64
	Burst             int
}

// DefaultAuthRateLimits keeps credential endpoints on a much tighter budget
// than the rest of the API.
func DefaultAuthRateLimits() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"/api/auth/login": {
			Name:              "login",
			RequestsPerSecond: constants.RateLimitLoginRequestsPerSecond,
			Burst:             constants.RateLimitLoginBurst,
		},
		"/api/auth/register": {
			Name:              "register",
			RequestsPerSecond: constants.RateLimitRegisterRequestsPerSecond,
			Burst:             constants.RateLimitRegisterBurst,
		},
	}
}

// PathRateLimiter applies a per-path rule and falls back to a general
// budget for paths without one.
type PathRateLimiter struct {
	clientIP *ClientIPResolver
	rules    map[string]RateLimitRule
	limiters map[string]*RateLimiter
	fallback RateLimitRule
	general  *RateLimiter
}

// NewPathRateLimiter keys buckets with clientIP; a nil resolver keys by the
// connection peer.
func NewPathRateLimiter(rules map[string]RateLimitRule, clientIP *ClientIPResolver) *PathRateLimiter {
	prl := &PathRateLimiter{
		clientIP: clientIP,
		rules:    make(map[string]RateLimitRule, len(rules)),
		limiters: make(map[string]*RateLimiter, len(rules)),
		fallback: RateLimitRule{
			Name:              "general",
			RequestsPerSecond: constants.RateLimitGeneralRequestsPerSecond,
			Burst:             constants.RateLimitGeneralBurst,
		},
	}
	for path, rule := range rules {
		prl.rules[path] = rule
		prl.limiters[path] = NewRateLimiter(rule.RequestsPerSecond, rule.Burst)
	}
	prl.general = NewRateLimiter(prl.fallback.RequestsPerSecond, prl.fallback.Burst)
	return prl
}

func (prl *PathRateLimiter) Stop() {
	for _, limiter := range prl.limiters {
		limiter.Stop()
	}
	prl.general.Stop()
}

func (prl *PathRateLimiter) MiddlewareForPath(path string) func(http.Handler) http.Handler {
	limiter, ok := prl.limiters[path]
	rule := prl.rules[path]
	if !ok {
		limiter = prl.general
		rule = prl.fallback
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, wait := limiter.Allow(prl.clientIP.ClientIP(r))
			if !allowed {
				metrics.RateLimitBlocked.WithLabelValues(path, rule.Name).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				WriteErrorEnvelope(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil, getTraceIDFromContext(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
