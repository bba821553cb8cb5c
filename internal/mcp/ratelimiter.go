package mcp

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket per tool. Each tool refills at the same
// rate and shares the same burst.
type RateLimiter struct {
	logger   *logrus.Logger
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	denied   map[string]int64
}

// RateLimitStats reports the denials recorded per tool.
type RateLimitStats struct {
	RequestsPerSecond float64          `json:"requests_per_second"`
	Burst             int              `json:"burst"`
	Denied            map[string]int64 `json:"denied"`
}

// NewRateLimiter creates a limiter allowing perSecond calls per tool with
// bursts of up to burst calls.
func NewRateLimiter(perSecond float64, burst int, logger *logrus.Logger) *RateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		logger:   logger,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		denied:   make(map[string]int64),
	}
}

// Allow reports whether a call to tool may proceed now.
func (rl *RateLimiter) Allow(tool string) bool {
	return rl.AllowAt(tool, time.Now())
}

// AllowAt is Allow evaluated at the given instant.
func (rl *RateLimiter) AllowAt(tool string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[tool]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[tool] = limiter
	}

	if limiter.AllowN(now, 1) {
		return true
	}

	rl.denied[tool]++
	rl.logger.WithFields(logrus.Fields{
		"tool":         tool,
		"denied_total": rl.denied[tool],
		"burst_limit":  rl.burst,
	}).Warn("Request denied: token bucket empty (burst limit exceeded)")
	return false
}

// Stats returns a snapshot of the limiter settings and denial counts.
func (rl *RateLimiter) Stats() RateLimitStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	denied := make(map[string]int64, len(rl.denied))
	for k, v := range rl.denied {
		denied[k] = v
	}
	return RateLimitStats{
		RequestsPerSecond: float64(rl.limit),
		Burst:             rl.burst,
		Denied:            denied,
	}
}
