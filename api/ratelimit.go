package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const redisKeyPrefix = "scribe:ratelimit:"

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key against a limit per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	Client redis.Cmdable
	Window time.Duration
}

func NewRedisLimiter(client redis.Cmdable, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	k := redisKeyPrefix + key
	count, err := l.Client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.Client.Expire(ctx, k, l.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	if count <= int64(limit) {
		return Decision{Allowed: true, Remaining: limit - int(count)}, nil
	}

	ttl, err := l.Client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl %s: %w", key, err)
	}
	if ttl < 0 {
		// the counter lost its expiry; start a new window instead of blocking forever
		if err := l.Client.Expire(ctx, k, l.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
		ttl = l.Window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	lastSeen time.Time
}

// MemoryLimiter is the single-process fallback when no Redis is configured.
// Each key gets a token bucket that refills limit tokens per window.
type MemoryLimiter struct {
	Window time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(l.Window/time.Duration(limit)), limit),
			limit:   limit,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, RetryAfter: l.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(b.limiter.TokensAt(now))}, nil
}

// sweep drops buckets idle for a full window; they would be full again anyway.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.Window {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.Window {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimitPolicy is the per-window allowance of each tier. Zero disables the tier's limit.
type RateLimitPolicy struct {
	Anonymous     int
	Authenticated int
}

// RateLimit enforces policy for one scope. Authenticated callers are counted per
// user, anonymous ones per client IP. It must run after OptionalAuth.
func RateLimit(scope string, limiter Limiter, policy RateLimitPolicy, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, key, limit := "anonymous", "ip:"+c.ClientIP(), policy.Anonymous
		if id := currentUserID(c); id != nil {
			tier, key, limit = "authenticated", fmt.Sprintf("user:%d", *id), policy.Authenticated
		}
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), scope+":"+key, limit)
		if err != nil {
			log.Warn("Rate limiter unavailable, letting request through",
				zap.String("scope", scope), zap.Error(err), zap.String("request_id", requestID(c)))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if !d.Allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			rateLimitedCounter.WithLabelValues(scope, tier).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
