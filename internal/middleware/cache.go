package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/restaurant-storefront/internal/config"
    "github.com/iliyamo/restaurant-storefront/internal/logger"
)

// cachedResponse is what the menu cache keeps per key.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// uncachedHeaders are never stored: Set-Cookie would hand one visitor's
// session cookie to everyone served from the cache.
var uncachedHeaders = map[string]bool{
    "Set-Cookie":     true,
    "Content-Length": true,
    "X-Cache":        true,
}

// bodyRecorder tees the response body into buf until limit bytes have been
// seen.  A body past the limit is marked truncated and not cached.
type bodyRecorder struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if !r.truncated {
        if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
            r.truncated = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

type responseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *logger.Logger
}

// NewRedisCache serves successful responses of public menu routes from
// Redis for cfg.TTL.  Only mount it on routes whose response is the same
// for every visitor.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *logger.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if cfg.TTL <= 0 {
        cfg.TTL = 5 * time.Minute
    }
    rc := &responseCache{cfg: cfg, rdb: rdb, log: logger.OrNop(log).With("component", "menu_cache")}

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            key := cacheKey(cfg, c)
            if hit, ok := rc.lookup(c.Request().Context(), key); ok {
                return rc.replay(c, hit)
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status == http.StatusOK && !rec.truncated {
                rc.store(key, cachedResponse{
                    Status: rec.status,
                    Header: storableHeader(c.Response().Header()),
                    Body:   rec.buf.Bytes(),
                })
            }
            return nil
        }
    }
}

func (rc *responseCache) lookup(ctx context.Context, key string) (cachedResponse, bool) {
    raw, err := rc.rdb.Get(ctx, key).Bytes()
    if err != nil {
        if !errors.Is(err, redis.Nil) {
            rc.log.Warn("menu cache read failed", "key", key, "error", err)
        }
        return cachedResponse{}, false
    }
    var hit cachedResponse
    if err := json.Unmarshal(raw, &hit); err != nil || hit.Status == 0 {
        rc.log.Warn("dropping unreadable menu cache entry", "key", key)
        _ = rc.rdb.Del(ctx, key).Err()
        return cachedResponse{}, false
    }
    return hit, true
}

func (rc *responseCache) replay(c echo.Context, hit cachedResponse) error {
    h := c.Response().Header()
    for k, vals := range hit.Header {
        for _, v := range vals {
            h.Add(k, v)
        }
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(hit.Status)
    _, err := c.Response().Write(hit.Body)
    return err
}

// store runs after the response is sent, so it does not use the request
// context.
func (rc *responseCache) store(key string, resp cachedResponse) {
    raw, err := json.Marshal(resp)
    if err != nil {
        return
    }
    if err := rc.rdb.Set(context.Background(), key, raw, rc.cfg.TTL).Err(); err != nil {
        rc.log.Warn("menu cache write failed", "key", key, "error", err)
    }
}

func storableHeader(src http.Header) http.Header {
    out := make(http.Header, len(src))
    for k, vals := range src {
        if uncachedHeaders[http.CanonicalHeaderKey(k)] {
            continue
        }
        out[k] = append([]string(nil), vals...)
    }
    return out
}

// cacheKey hashes the request attributes named by cfg.KeyStrategy under
// cfg.Prefix.  Unknown strategies behave as route_query.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
    default:
        parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}
