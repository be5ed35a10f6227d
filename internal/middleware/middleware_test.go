package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strconv"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/restaurant-storefront/internal/config"
    "github.com/iliyamo/restaurant-storefront/internal/model"
    "github.com/iliyamo/restaurant-storefront/internal/orders"
    "github.com/iliyamo/restaurant-storefront/internal/storage"
    "github.com/iliyamo/restaurant-storefront/internal/storefront"
    "github.com/iliyamo/restaurant-storefront/internal/utils"
)

type noOrders struct{}

func (noOrders) GetActiveOrdersByCustomer(context.Context, string, string) ([]model.Order, error) {
    return nil, nil
}

func newRegistry(t *testing.T) *storefront.Registry {
    t.Helper()
    reg := storefront.NewRegistry(storage.NewMemoryBackend(), noOrders{}, storefront.Config{
        Tracker: orders.Config{SweepInterval: time.Hour, PollInterval: time.Hour},
    }, nil)
    t.Cleanup(func() { reg.Close(context.Background()) })
    return reg
}

func newRedis(t *testing.T) *redis.Client {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return rdb
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
    for _, ck := range rec.Result().Cookies() {
        if ck.Name == SessionCookie {
            return ck
        }
    }
    return nil
}

func TestSessionIssuesAndReusesCookie(t *testing.T) {
    e := echo.New()
    var seen []*storefront.Session
    e.GET("/v1/session", func(c echo.Context) error {
        seen = append(seen, CurrentSession(c))
        return c.String(http.StatusOK, CurrentSessionID(c))
    }, Session(newRegistry(t), SessionCookieConfig{}, nil))

    first := serve(e, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
    ck := sessionCookie(first)
    if ck == nil {
        t.Fatal("no sid cookie issued")
    }
    if !ck.HttpOnly || ck.Value != first.Body.String() {
        t.Fatalf("cookie = %+v, body = %q", ck, first.Body.String())
    }

    req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
    req.AddCookie(&http.Cookie{Name: SessionCookie, Value: ck.Value})
    second := serve(e, req)
    if sessionCookie(second) != nil {
        t.Fatal("cookie reissued for a known visitor")
    }
    if len(seen) != 2 || seen[0] == nil || seen[0] != seen[1] {
        t.Fatal("requests with the same cookie got different sessions")
    }
}

func TestSessionReplacesMalformedCookie(t *testing.T) {
    e := echo.New()
    e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
        Session(newRegistry(t), SessionCookieConfig{Secure: true}, nil))

    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})
    rec := serve(e, req)
    ck := sessionCookie(rec)
    if ck == nil || ck.Value == "../../etc" || !ck.Secure {
        t.Fatalf("cookie = %+v", ck)
    }
}

func TestJWTAuthAndRole(t *testing.T) {
    const secret = "test-secret"
    e := echo.New()
    e.GET("/admin", func(c echo.Context) error {
        return c.String(http.StatusOK, c.Get("user_id").(string))
    }, JWTAuth(secret), RequireRole(utils.RoleAdmin))

    admin, _ := utils.NewAccessToken(secret, "admin", utils.RoleAdmin, 5)
    customer, _ := utils.NewAccessToken(secret, "+15550001111", utils.RoleCustomer, 5)

    cases := []struct {
        name   string
        header string
        want   int
    }{
        {"missing", "", http.StatusUnauthorized},
        {"garbage", "Bearer nope", http.StatusUnauthorized},
        {"wrong role", "Bearer " + customer.Token, http.StatusForbidden},
        {"admin", "Bearer " + admin.Token, http.StatusOK},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/admin", nil)
            if tc.header != "" {
                req.Header.Set("Authorization", tc.header)
            }
            if rec := serve(e, req); rec.Code != tc.want {
                t.Fatalf("status = %d, want %d", rec.Code, tc.want)
            }
        })
    }
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            5 * time.Hour,
        KeyStrategy:    "ip_session_route",
        Prefix:         "test:rl",
    }
    e := echo.New()
    e.GET("/v1/menu", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
        NewTokenBucket(cfg, newRedis(t), nil))

    for i := 0; i < 2; i++ {
        rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/menu", nil))
        if rec.Code != http.StatusOK {
            t.Fatalf("request %d: status %d", i, rec.Code)
        }
        if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(1-i) {
            t.Fatalf("request %d: remaining = %q", i, got)
        }
    }
    rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/menu", nil))
    if rec.Code != http.StatusTooManyRequests {
        t.Fatalf("status = %d, want 429", rec.Code)
    }
    if rec.Header().Get("Retry-After") == "" {
        t.Fatal("missing Retry-After")
    }
}

func TestRateKeyStrategies(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
    req.Header.Set("X-Real-IP", "10.0.0.7")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/cart")
    c.Set(sessionIDKey, "sid-1")

    cases := map[string]string{
        "ip":               "rl:ip:10.0.0.7",
        "session":          "rl:session:sid-1",
        "ip_user":          "rl:ip:10.0.0.7:user:guest",
        "ip_session_route": "rl:ip:10.0.0.7:session:sid-1:route:GET /v1/cart",
        "bogus":            "rl:ip:10.0.0.7:session:sid-1:route:GET /v1/cart",
    }
    for strategy, want := range cases {
        b := &tokenBucket{cfg: config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}}
        if got := b.key(c); got != want {
            t.Errorf("%s: key = %q, want %q", strategy, got, want)
        }
    }
}

func TestRateKeyReadsCookieAndBearerBeforeOtherMiddleware(t *testing.T) {
    const secret = "test-secret"
    tok, _ := utils.NewAccessToken(secret, "+15550001111", utils.RoleCustomer, 5)
    sid := uuid.NewString()

    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
    req.Header.Set("X-Real-IP", "10.0.0.7")
    req.Header.Set("Authorization", "Bearer "+tok.Token)
    req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
    c := e.NewContext(req, httptest.NewRecorder())

    b := &tokenBucket{cfg: config.RateLimitConfig{Prefix: "rl", KeyStrategy: "session_user"}, secret: secret}
    if got, want := b.key(c), "rl:session:"+sid+":user:+15550001111"; got != want {
        t.Fatalf("key = %q, want %q", got, want)
    }

    b.secret = "other-secret"
    if got, want := b.key(c), "rl:session:"+sid+":user:guest"; got != want {
        t.Fatalf("key with wrong secret = %q, want %q", got, want)
    }

    bad := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
    bad.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})
    if got := visitorID(e.NewContext(bad, httptest.NewRecorder())); got != "anon" {
        t.Fatalf("malformed cookie visitor = %q, want anon", got)
    }
}

func TestGlobalTokenBucketKeepsVisitorsApart(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            time.Hour,
        KeyStrategy:    "ip_session_route",
        Prefix:         "test:rl",
    }
    e := echo.New()
    e.Use(NewTokenBucket(cfg, newRedis(t), nil))
    e.GET("/v1/cart", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
        Session(newRegistry(t), SessionCookieConfig{}, nil))

    get := func(sid string) int {
        req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
        req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
        return serve(e, req).Code
    }
    a, b := uuid.NewString(), uuid.NewString()
    for i := 0; i < 2; i++ {
        if code := get(a); code != http.StatusOK {
            t.Fatalf("visitor a request %d: status %d", i, code)
        }
    }
    if code := get(a); code != http.StatusTooManyRequests {
        t.Fatalf("visitor a third request: status %d, want 429", code)
    }
    if code := get(b); code != http.StatusOK {
        t.Fatalf("visitor b first request: status %d, want 200", code)
    }
}

func TestParseBucketResult(t *testing.T) {
    got, err := parseBucketResult([]any{int64(0), int64(0), int64(1500)})
    if err != nil || got.Allowed || got.RetryMs != 1500 {
        t.Fatalf("parse = %+v, %v", got, err)
    }
    got, err = parseBucketResult([]any{int64(1), "4", int64(0)})
    if err != nil || !got.Allowed || got.Remaining != 4 {
        t.Fatalf("parse = %+v, %v", got, err)
    }
    for _, bad := range []any{nil, []any{int64(1)}, []any{int64(1), 2.5, int64(0)}} {
        if _, err := parseBucketResult(bad); err == nil {
            t.Errorf("parseBucketResult(%#v) succeeded", bad)
        }
    }
}

func TestRedisCacheServesHitsWithoutCookies(t *testing.T) {
    cfg := config.CacheConfig{
        Enabled:     true,
        Methods:     map[string]bool{http.MethodGet: true},
        TTL:         time.Minute,
        KeyStrategy: "route_query",
        Prefix:      "test:cache",
    }
    calls := 0
    e := echo.New()
    e.GET("/v1/categories", func(c echo.Context) error {
        calls++
        c.SetCookie(&http.Cookie{Name: SessionCookie, Value: "visitor-a"})
        return c.JSON(http.StatusOK, echo.Map{"categories": []string{"pizza"}})
    }, NewRedisCache(cfg, newRedis(t), nil))

    miss := serve(e, httptest.NewRequest(http.MethodGet, "/v1/categories", nil))
    if miss.Header().Get("X-Cache") != "MISS" {
        t.Fatalf("first X-Cache = %q", miss.Header().Get("X-Cache"))
    }
    hit := serve(e, httptest.NewRequest(http.MethodGet, "/v1/categories", nil))
    if hit.Header().Get("X-Cache") != "HIT" {
        t.Fatalf("second X-Cache = %q", hit.Header().Get("X-Cache"))
    }
    if calls != 1 {
        t.Fatalf("handler called %d times", calls)
    }
    if hit.Body.String() != miss.Body.String() {
        t.Fatalf("cached body %q != %q", hit.Body.String(), miss.Body.String())
    }
    if hit.Header().Get("Set-Cookie") != "" {
        t.Fatal("cached response replayed a session cookie")
    }
}

func TestRedisCacheSkipsOversizedBodies(t *testing.T) {
    cfg := config.CacheConfig{
        Enabled:      true,
        Methods:      map[string]bool{http.MethodGet: true},
        TTL:          time.Minute,
        Prefix:       "test:cache",
        MaxBodyBytes: 8,
    }
    calls := 0
    e := echo.New()
    e.GET("/v1/menu/search", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "a response longer than eight bytes")
    }, NewRedisCache(cfg, newRedis(t), nil))

    for i := 0; i < 2; i++ {
        rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/menu/search?q=pizza", nil))
        if rec.Body.String() != "a response longer than eight bytes" {
            t.Fatalf("body = %q", rec.Body.String())
        }
    }
    if calls != 2 {
        t.Fatalf("handler called %d times, want 2", calls)
    }
}
