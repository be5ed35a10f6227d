package session

import (
	"context"
	"encoding/json"

	"github.com/iliyamo/restaurant-storefront/internal/storage"
)

// Legacy names the flat slots written by older clients: a bare cart item
// array, a bare active order array and a bare user object.  They are read
// once by Initialize and removed afterwards; nothing writes them.
type Legacy struct {
	Cart         storage.Slot
	ActiveOrders storage.Slot
	User         storage.Slot
}

// migrateLegacy folds legacy data into doc for every component that is
// still empty and removes the legacy slots.  It reports whether anything
// was imported.
func (m *Manager) migrateLegacy(ctx context.Context, doc *Document) bool {
	imported := false
	now := m.now()

	if raw, ok := m.readLegacy(ctx, m.legacy.Cart); ok {
		var items []CartItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			m.log.Warn("legacy cart unreadable", "error", err)
		} else if len(doc.Cart.Items) == 0 {
			kept := make([]CartItem, 0, len(items))
			for _, it := range items {
				if it.Quantity > 0 && it.ID != "" {
					kept = append(kept, it)
				}
			}
			if len(kept) > 0 {
				doc.Cart = CartState{Items: kept, LastModifiedEpochMs: epochMs(now)}
				imported = true
			}
		}
		m.dropLegacy(ctx, m.legacy.Cart)
	}

	if raw, ok := m.readLegacy(ctx, m.legacy.ActiveOrders); ok {
		var orders []ActiveOrder
		if err := json.Unmarshal([]byte(raw), &orders); err != nil {
			m.log.Warn("legacy active orders unreadable", "error", err)
		} else if len(doc.ActiveOrders.Orders) == 0 {
			live := filterLive(orders, now)
			if len(live) > 0 {
				doc.ActiveOrders = ActiveOrdersState{Orders: live, LastUpdatedEpochMs: epochMs(now)}
				imported = true
			}
		}
		m.dropLegacy(ctx, m.legacy.ActiveOrders)
	}

	if raw, ok := m.readLegacy(ctx, m.legacy.User); ok {
		var u UserProfile
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			m.log.Warn("legacy user unreadable", "error", err)
		} else if doc.User == nil && u.ID != "" {
			doc.User = &u
			imported = true
		}
		m.dropLegacy(ctx, m.legacy.User)
	}

	if imported {
		m.log.Info("migrated legacy session data")
	}
	return imported
}

func (m *Manager) readLegacy(ctx context.Context, slot storage.Slot) (string, bool) {
	if slot == nil {
		return "", false
	}
	raw, ok, err := slot.Read(ctx)
	if err != nil {
		m.log.Warn("legacy read failed", "legacy_slot", slot.Name(), "error", err)
		return "", false
	}
	return raw, ok
}

func (m *Manager) dropLegacy(ctx context.Context, slot storage.Slot) {
	if err := slot.Remove(ctx); err != nil {
		m.log.Warn("legacy remove failed", "legacy_slot", slot.Name(), "error", err)
	}
}
