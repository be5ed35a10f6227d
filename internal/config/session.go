package config

import (
    "errors"
    "strings"
    "time"

    "github.com/joeshaw/envdecode"

    "github.com/iliyamo/restaurant-storefront/internal/session"
)

// SessionConfig controls where session documents live and how long each
// part of them stays valid.  Values come from the environment via
// envdecode struct tags; anything unset falls back to the tag default.
type SessionConfig struct {
    SchemaVersion      string        `env:"SESSION_SCHEMA_VERSION,default=1.0.0"`
    DocumentTTL        time.Duration `env:"SESSION_TTL,default=24h"`
    CartTTL            time.Duration `env:"SESSION_CART_TTL,default=24h"`
    CartOnExpire       string        `env:"SESSION_CART_ON_EXPIRE,default=touch"`
    MenuTTL            time.Duration `env:"SESSION_MENU_TTL,default=1h"`
    MenuOnExpire       string        `env:"SESSION_MENU_ON_EXPIRE,default=prune"`
    NavigationTTL      time.Duration `env:"SESSION_NAV_TTL,default=30m"`
    NavigationOnExpire string        `env:"SESSION_NAV_ON_EXPIRE,default=prune"`
    HomePath           string        `env:"SESSION_HOME_PATH,default=/"`

    // Store selects the slot backend: redis, mysql or memory.
    Store       string        `env:"SESSION_STORE,default=redis"`
    KeyPrefix   string        `env:"SESSION_KEY_PREFIX,default=storefront:"`
    SlotExpiry  time.Duration `env:"SESSION_SLOT_EXPIRY,default=168h"`
    IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT,default=30m"`

    SweepInterval  time.Duration `env:"ORDER_SWEEP_INTERVAL,default=1s"`
    PollInterval   time.Duration `env:"ORDER_POLL_INTERVAL,default=30s"`
    ScrollThrottle time.Duration `env:"NAV_SCROLL_THROTTLE,default=100ms"`
}

// LoadSessionConfig decodes SessionConfig from the environment.  A decode
// error for a malformed value is returned; an environment with none of the
// variables set is not an error.
func LoadSessionConfig() (SessionConfig, error) {
    var cfg SessionConfig
    if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
        return cfg.withDefaults(), err
    }
    return cfg.withDefaults(), nil
}

// DefaultSessionConfig returns the configuration used when nothing is set.
func DefaultSessionConfig() SessionConfig {
    return SessionConfig{}.withDefaults()
}

func (c SessionConfig) withDefaults() SessionConfig {
    def := session.DefaultPolicy()
    if c.SchemaVersion == "" {
        c.SchemaVersion = def.SchemaVersion
    }
    if c.DocumentTTL <= 0 {
        c.DocumentTTL = def.DocumentTTL
    }
    if c.CartTTL <= 0 {
        c.CartTTL = def.Cart.TTL
    }
    if c.MenuTTL <= 0 {
        c.MenuTTL = def.Menu.TTL
    }
    if c.NavigationTTL <= 0 {
        c.NavigationTTL = def.Navigation.TTL
    }
    if c.HomePath == "" {
        c.HomePath = def.HomePath
    }
    c.Store = strings.ToLower(strings.TrimSpace(c.Store))
    if c.Store == "" {
        c.Store = "redis"
    }
    if c.KeyPrefix == "" {
        c.KeyPrefix = "storefront:"
    }
    if c.IdleTimeout <= 0 {
        c.IdleTimeout = 30 * time.Minute
    }
    if c.SweepInterval <= 0 {
        c.SweepInterval = time.Second
    }
    if c.PollInterval <= 0 {
        c.PollInterval = 30 * time.Second
    }
    if c.ScrollThrottle <= 0 {
        c.ScrollThrottle = 100 * time.Millisecond
    }
    return c
}

// Policy converts the configuration into a session policy.
func (c SessionConfig) Policy() session.Policy {
    def := session.DefaultPolicy()
    return session.Policy{
        SchemaVersion: c.SchemaVersion,
        DocumentTTL:   c.DocumentTTL,
        Cart:          session.ComponentPolicy{TTL: c.CartTTL, OnExpire: session.ParseExpireAction(c.CartOnExpire, def.Cart.OnExpire)},
        Menu:          session.ComponentPolicy{TTL: c.MenuTTL, OnExpire: session.ParseExpireAction(c.MenuOnExpire, def.Menu.OnExpire)},
        Navigation:    session.ComponentPolicy{TTL: c.NavigationTTL, OnExpire: session.ParseExpireAction(c.NavigationOnExpire, def.Navigation.OnExpire)},
        HomePath:      c.HomePath,
    }
}
