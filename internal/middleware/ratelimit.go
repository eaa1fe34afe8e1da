package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/config"
	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/logger"
	"github.com/mysocial/shop-api/internal/metrics"
)

// takeToken refills a bucket by whole intervals, then tries to take one
// token.  Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now

local steps = 0
if interval > 0 then
  steps = math.floor(math.max(0, now - at) / interval)
end
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  at = at + steps * interval
end

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.max(0, interval - (now - at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[5]))
return {allowed, tokens, wait}
`)

// bucketDecision is the outcome of one takeToken call.
type bucketDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// tokenBucket is a Redis-backed bucket shared by every API instance.
type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (bucketDecision, error) {
	res, err := takeToken.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(res) != 3 {
		return bucketDecision{}, fmt.Errorf("token bucket: unexpected result %v", res)
	}
	return bucketDecision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a token bucket in Redis.  It
// is a pass-through when disabled or without Redis, and fails open on Redis
// errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	bucket := tokenBucket{cfg: cfg, rdb: rdb}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := bucket.take(c.Request().Context(), key, time.Now())
			if err != nil {
				logger.FromEcho(c).Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.Allowed {
				return next(c)
			}

			secs := int((d.RetryAfter + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			metrics.RateLimited.WithLabelValues(cfg.Prefix).Inc()
			if cfg.Debug {
				logger.FromEcho(c).Info("rate limited", zap.String("key", key), zap.Duration("retry_after", d.RetryAfter))
			}
			return httpx.Fail(c, http.StatusTooManyRequests, httpx.CodeForbidden,
				"Too many requests, please try again later.", map[string]int{"retryAfter": secs})
		}
	}
}

// rateKey builds the bucket key from cfg.KeyStrategy, an underscore-joined
// list of "ip", "user" and "route".  Unknown strategies use all three.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	if len(parts) == 0 || parts[0] == "" {
		parts = []string{"ip", "user", "route"}
	}
	key := []string{cfg.Prefix}
	for _, p := range parts {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key = append(key, "ip", ip)
		case "user":
			key = append(key, "user", userID(c))
		case "route":
			key = append(key, "route", c.Request().Method+" "+c.Path())
		default:
			return rateKey(config.RateLimitConfig{Prefix: cfg.Prefix}, c)
		}
	}
	return strings.Join(key, ":")
}
