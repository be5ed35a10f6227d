package config

import (
    "time"

    "github.com/joeshaw/envdecode"
)

// RateLimitConfig configures the Redis token bucket in front of the API.
// KeyStrategy picks which request attributes form the bucket key.  The
// default, ip_session_route, gives each visitor behind a shared address a
// bucket of its own per route.
type RateLimitConfig struct {
    Enabled        bool          `env:"RATE_LIMIT_ENABLED,default=true"`
    Capacity       int           `env:"RATE_LIMIT_CAPACITY,default=120"`
    RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS,default=1"`
    RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
    TTL            time.Duration `env:"RATE_LIMIT_TTL,default=10m"`
    KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY,default=ip_session_route"`
    Prefix         string        `env:"RATE_LIMIT_PREFIX,default=storefront:rl"`

    // Burst and RefillEvery are shorthands: a positive Burst replaces
    // Capacity and a positive RefillEvery means one token per interval.
    Burst       int           `env:"RATE_LIMIT_BURST"`
    RefillEvery time.Duration `env:"RATE_LIMIT_REFILL_EVERY"`
}

// LoadRateLimitConfig decodes RateLimitConfig from the environment and
// clamps it to a usable bucket.  Malformed values fall back to defaults.
func LoadRateLimitConfig() RateLimitConfig {
    var cfg RateLimitConfig
    _ = envdecode.Decode(&cfg)
    return cfg.normalize()
}

func (c RateLimitConfig) normalize() RateLimitConfig {
    if c.Burst > 0 {
        c.Capacity = c.Burst
    }
    if c.RefillEvery > 0 {
        c.RefillTokens = 1
        c.RefillInterval = c.RefillEvery
    }
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    // A bucket must outlive the time it takes to refill.
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
    if c.KeyStrategy == "" {
        c.KeyStrategy = "ip_session_route"
    }
    if c.Prefix == "" {
        c.Prefix = "storefront:rl"
    }
    return c
}
