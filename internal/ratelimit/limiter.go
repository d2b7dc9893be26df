package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/monitoring"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/resilience"
)

const maxFallbackLimiters = 1000

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int           // requests per minute per client IP
	BurstMultiplier int           // fallback bucket size as a multiple of the limit
	CleanupInterval time.Duration // how often idle fallback buckets are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   60,
		BurstMultiplier: 1,
		CleanupInterval: time.Hour,
	}
}

// Rate is a limit of Limit requests per Period
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and an
// in-memory fallback used when Redis is absent or failing.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	breaker      *resilience.CircuitBreaker
	config       Config
	metrics      *monitoring.Metrics
	now          func() time.Time

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. redisClient may be nil.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		breaker:          resilience.NewCircuitBreaker("redis", resilience.DefaultCircuitBreakerConfig()),
		config:           config,
		metrics:          metrics,
		now:              time.Now,
		fallbackLimiters: make(map[string]*fallbackEntry),
		stop:             make(chan struct{}),
	}

	if rl.redisEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

func (rl *RateLimiter) redisEnabled() bool {
	return rl.redisClient != nil && rl.redisClient.IsEnabled()
}

// AllowIP checks the per-minute limit for a client IP
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("ratelimit:ip:%s", ip), Rate{
		Limit:  rl.config.IPLimitPerMin,
		Period: time.Minute,
	})
}

// Allow checks key against limit using Redis or the fallback
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit Rate) (*Result, error) {
	if limit.Limit <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", limit.Limit, limit.Period)
	}

	if rl.redisEnabled() && rl.redisLimiter != nil {
		var result *Result
		err := rl.breaker.Call(func() error {
			var err error
			result, err = rl.allowRedis(ctx, key, limit)
			return err
		})
		if err == nil {
			return result, nil
		}
		// an open breaker skips Redis without counting a new error
		if !errors.Is(err, resilience.ErrOpen) {
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitRedisError()
			}
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Limit,
		Burst:  limit.Limit,
		Period: limit.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    rl.now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback uses a token bucket refilled at limit/period
func (rl *RateLimiter) allowFallback(key string, limit Rate) *Result {
	now := rl.now()

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists {
		rps := rate.Limit(float64(limit.Limit) / limit.Period.Seconds())
		entry = &fallbackEntry{limiter: rate.NewLimiter(rps, limit.Limit*rl.config.BurstMultiplier)}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	limiter := entry.limiter
	allowed := limiter.AllowN(now, 1)

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(limit.Period),
	}

	if !allowed {
		reservation := limiter.ReserveN(now, 1)
		result.RetryAfter = reservation.DelayFrom(now)
		reservation.CancelAt(now)
		result.ResetAt = now.Add(result.RetryAfter)
	}

	return result
}

func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := rl.pruneFallback(rl.now().Add(-rl.config.CleanupInterval)); removed > 0 {
				slog.Info("Cleaned up fallback rate limiters", "count", removed)
			}
		case <-rl.stop:
			return
		}
	}
}

// pruneFallback drops buckets idle since before cutoff, and everything
// when the table has grown past its bound.
func (rl *RateLimiter) pruneFallback(cutoff time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	if len(rl.fallbackLimiters) > maxFallbackLimiters {
		removed := len(rl.fallbackLimiters)
		rl.fallbackLimiters = make(map[string]*fallbackEntry)
		return removed
	}

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	return removed
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
	}

	if rl.redisEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
		stats["redis_breaker"] = rl.breaker.GetStats()
	}

	return stats
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() error {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
	return nil
}
