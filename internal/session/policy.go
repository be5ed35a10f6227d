package session

import "time"

// ExpireAction selects what happens to a session component whose own TTL
// has elapsed inside an otherwise valid document.
type ExpireAction string

const (
	// ExpirePrune drops the component's contents back to their default.
	ExpirePrune ExpireAction = "prune"
	// ExpireTouch keeps the contents and refreshes the component timestamp.
	ExpireTouch ExpireAction = "touch"
)

// ParseExpireAction maps a config string to an ExpireAction, falling back
// to def for anything unrecognised.
func ParseExpireAction(s string, def ExpireAction) ExpireAction {
	switch ExpireAction(s) {
	case ExpirePrune, ExpireTouch:
		return ExpireAction(s)
	}
	return def
}

type ComponentPolicy struct {
	TTL      time.Duration
	OnExpire ExpireAction
}

// Policy governs document validity and per-component expiry.
type Policy struct {
	SchemaVersion string
	DocumentTTL   time.Duration
	Cart          ComponentPolicy
	Menu          ComponentPolicy
	Navigation    ComponentPolicy
	// HomePath is where navigation resets to.
	HomePath string
}

const CurrentSchemaVersion = "1.0.0"

func DefaultPolicy() Policy {
	return Policy{
		SchemaVersion: CurrentSchemaVersion,
		DocumentTTL:   24 * time.Hour,
		Cart:          ComponentPolicy{TTL: 24 * time.Hour, OnExpire: ExpireTouch},
		Menu:          ComponentPolicy{TTL: time.Hour, OnExpire: ExpirePrune},
		Navigation:    ComponentPolicy{TTL: 30 * time.Minute, OnExpire: ExpirePrune},
		HomePath:      "/",
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.SchemaVersion == "" {
		p.SchemaVersion = def.SchemaVersion
	}
	if p.DocumentTTL <= 0 {
		p.DocumentTTL = def.DocumentTTL
	}
	if p.HomePath == "" {
		p.HomePath = def.HomePath
	}
	p.Cart = p.Cart.withDefaults(def.Cart)
	p.Menu = p.Menu.withDefaults(def.Menu)
	p.Navigation = p.Navigation.withDefaults(def.Navigation)
	return p
}

func (c ComponentPolicy) withDefaults(def ComponentPolicy) ComponentPolicy {
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	c.OnExpire = ParseExpireAction(string(c.OnExpire), def.OnExpire)
	return c
}
