package middleware

import (
    "context"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/restaurant-storefront/internal/config"
    "github.com/iliyamo/restaurant-storefront/internal/logger"
)

// tokenBucketScript takes one token from the bucket at KEYS[1], refilling
// whole intervals first.  It returns {allowed, tokens left, retry after ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + intervals * refill_tokens)
        last_refill = last_refill + intervals * interval_ms
    end
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return {allowed, tokens, retry_ms}
`)

// bucketResult is one decision of tokenBucketScript.
type bucketResult struct {
    Allowed   bool
    Remaining int64
    RetryMs   int64
}

// TokenBucketOption customizes NewTokenBucket.
type TokenBucketOption func(*tokenBucket)

// WithJWTSecret lets the limiter read the subject of a bearer token on
// routes where JWTAuth has not run yet, so user keyed strategies see the
// real customer instead of "guest".
func WithJWTSecret(secret string) TokenBucketOption {
    return func(b *tokenBucket) { b.secret = secret }
}

type tokenBucket struct {
    cfg    config.RateLimitConfig
    rdb    *redis.Client
    log    *logger.Logger
    secret string
}

// NewTokenBucket limits requests with a token bucket kept in Redis, one
// bucket per key built from cfg.KeyStrategy.  A Redis failure lets the
// request through; the storefront stays usable without the limiter.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logger.Logger, opts ...TokenBucketOption) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    b := &tokenBucket{cfg: cfg, rdb: rdb, log: logger.OrNop(log).With("component", "ratelimit")}
    for _, opt := range opts {
        opt(b)
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := b.key(c)
            res, err := b.take(c.Request().Context(), key, time.Now())
            if err != nil {
                b.log.Warn("rate limit check failed, allowing request", "key", key, "error", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
            if res.Allowed {
                return next(c)
            }

            secs := int(math.Ceil(float64(res.RetryMs) / 1000))
            h.Set("Retry-After", strconv.Itoa(secs))
            b.log.Debug("request blocked", "key", key, "retry_ms", res.RetryMs)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too_many_requests",
                "message":     "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

func (b *tokenBucket) take(ctx context.Context, key string, now time.Time) (bucketResult, error) {
    vals, err := tokenBucketScript.Run(ctx, b.rdb, []string{key},
        now.UnixMilli(),
        b.cfg.Capacity,
        b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(),
        int64(b.cfg.TTL/time.Second),
    ).Result()
    if err != nil {
        return bucketResult{}, err
    }
    return parseBucketResult(vals)
}

// parseBucketResult decodes the script's reply.  Redis returns Lua numbers
// as int64.
func parseBucketResult(v any) (bucketResult, error) {
    arr, ok := v.([]any)
    if !ok || len(arr) != 3 {
        return bucketResult{}, fmt.Errorf("unexpected token bucket reply %#v", v)
    }
    var n [3]int64
    for i, x := range arr {
        switch t := x.(type) {
        case int64:
            n[i] = t
        case string:
            p, err := strconv.ParseInt(t, 10, 64)
            if err != nil {
                return bucketResult{}, fmt.Errorf("token bucket reply field %d: %w", i, err)
            }
            n[i] = p
        default:
            return bucketResult{}, fmt.Errorf("token bucket reply field %d has type %T", i, x)
        }
    }
    return bucketResult{Allowed: n[0] == 1, Remaining: n[1], RetryMs: n[2]}, nil
}

// key joins cfg.Prefix with the request attributes named by the strategy.
// Unknown strategies behave as ip_session_route.
func (b *tokenBucket) key(c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    attrs := map[string]func() string{
        "ip":      func() string { return ip },
        "user":    func() string { return userID(c, b.secret) },
        "session": func() string { return visitorID(c) },
        "route":   func() string { return c.Request().Method + " " + c.Path() },
    }

    strategy := strings.ToLower(b.cfg.KeyStrategy)
    names := strings.Split(strategy, "_")
    for _, n := range names {
        if attrs[n] == nil {
            names = []string{"ip", "session", "route"}
            break
        }
    }
    parts := []string{b.cfg.Prefix}
    for _, n := range names {
        parts = append(parts, n, attrs[n]())
    }
    return strings.Join(parts, ":")
}
