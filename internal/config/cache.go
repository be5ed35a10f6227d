package config

import (
    "net/http"
    "strings"
    "time"

    "github.com/joeshaw/envdecode"
)

// CacheConfig configures the shared Redis response cache mounted on the
// public menu routes.  Per-visitor data is never cached here; it lives in
// the session document.
type CacheConfig struct {
    Enabled      bool          `env:"CACHE_ENABLED,default=true"`
    MethodList   string        `env:"CACHE_METHODS,default=GET"`
    TTL          time.Duration `env:"CACHE_TTL,default=5m"`
    KeyStrategy  string        `env:"CACHE_KEY_STRATEGY,default=route_query"`
    Prefix       string        `env:"CACHE_PREFIX,default=storefront:cache"`
    MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES,default=1048576"`

    // Methods is MethodList upper-cased as a set.
    Methods map[string]bool
}

// LoadCacheConfig decodes CacheConfig from the environment.
func LoadCacheConfig() CacheConfig {
    var cfg CacheConfig
    _ = envdecode.Decode(&cfg)
    cfg.Methods = map[string]bool{}
    for _, m := range strings.Split(cfg.MethodList, ",") {
        if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
            cfg.Methods[m] = true
        }
    }
    if len(cfg.Methods) == 0 {
        cfg.Methods[http.MethodGet] = true
    }
    if cfg.TTL <= 0 {
        cfg.TTL = 5 * time.Minute
    }
    return cfg
}
