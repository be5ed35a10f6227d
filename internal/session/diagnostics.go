package session

import (
	"context"
	"encoding/json"
)

// Diagnostics summarises the stored document for debug tooling.
type Diagnostics struct {
	Present       bool           `json:"present"`
	Valid         bool           `json:"valid"`
	SchemaVersion string         `json:"schemaVersion,omitempty"`
	AgeMs         int64          `json:"ageMs"`
	SizeBytes     int            `json:"sizeBytes"`
	Components    ComponentStats `json:"components"`
}

type ComponentStats struct {
	Cart         CartStats         `json:"cart"`
	ActiveOrders ActiveOrdersStats `json:"activeOrders"`
	Menu         MenuStats         `json:"menu"`
	Navigation   NavigationStats   `json:"navigation"`
	HasUser      bool              `json:"hasUser"`
}

type CartStats struct {
	Lines    int   `json:"lines"`
	Quantity int   `json:"quantity"`
	AgeMs    int64 `json:"ageMs"`
}

type ActiveOrdersStats struct {
	Count int   `json:"count"`
	AgeMs int64 `json:"ageMs"`
}

type MenuStats struct {
	Present    bool  `json:"present"`
	Stale      bool  `json:"stale"`
	AgeMs      int64 `json:"ageMs"`
	Categories int   `json:"categories"`
	Items      int   `json:"items"`
	Deals      int   `json:"deals"`
}

type NavigationStats struct {
	CurrentPath   string `json:"currentPath"`
	ScrollEntries int    `json:"scrollEntries"`
}

// Diagnostics reads the stored document and reports its state.  A missing
// or unreadable document yields Present=false.
func (m *Manager) Diagnostics(ctx context.Context) Diagnostics {
	raw, ok, err := m.slot.Read(ctx)
	if err != nil || !ok {
		return Diagnostics{}
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Diagnostics{Present: true, SizeBytes: len(raw)}
	}
	doc.normalize()
	nowMs := epochMs(m.now())

	d := Diagnostics{
		Present:       true,
		Valid:         m.IsValid(&doc),
		SchemaVersion: doc.SchemaVersion,
		AgeMs:         nowMs - doc.SavedAtEpochMs,
		SizeBytes:     len(raw),
	}
	qty := 0
	for _, it := range doc.Cart.Items {
		qty += it.Quantity
	}
	d.Components.Cart = CartStats{Lines: len(doc.Cart.Items), Quantity: qty, AgeMs: nowMs - doc.Cart.LastModifiedEpochMs}
	d.Components.ActiveOrders = ActiveOrdersStats{Count: len(doc.ActiveOrders.Orders), AgeMs: nowMs - doc.ActiveOrders.LastUpdatedEpochMs}
	if mc := doc.MenuCache; mc != nil {
		items := 0
		for _, list := range mc.MenuItemsByCategory {
			items += len(list)
		}
		age := nowMs - mc.FetchedAtEpochMs
		d.Components.Menu = MenuStats{
			Present:    true,
			Stale:      age > m.policy.Menu.TTL.Milliseconds() || mc.SchemaVersion != m.policy.SchemaVersion,
			AgeMs:      age,
			Categories: len(mc.Categories),
			Items:      items,
			Deals:      len(mc.Deals),
		}
	}
	d.Components.Navigation = NavigationStats{
		CurrentPath:   doc.Navigation.CurrentPath,
		ScrollEntries: len(doc.Navigation.ScrollPositionsByPath),
	}
	d.Components.HasUser = doc.User != nil
	return d
}
