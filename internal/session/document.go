package session

import (
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/model"
)

// Document is the single persisted session object.  Top-level timestamps
// are epoch milliseconds so the layout matches what storefront clients
// already persist; per-order timestamps are RFC 3339 and come back as
// time.Time when the document is loaded.
type Document struct {
	SchemaVersion  string            `json:"schemaVersion"`
	SavedAtEpochMs int64             `json:"savedAtEpochMs"`
	TimeToLiveMs   int64             `json:"timeToLiveMs"`
	User           *UserProfile      `json:"user"`
	Cart           CartState         `json:"cart"`
	ActiveOrders   ActiveOrdersState `json:"activeOrders"`
	MenuCache      *MenuCache        `json:"menuCache"`
	Navigation     NavigationState   `json:"navigation"`
	Preferences    Preferences       `json:"preferences"`
}

// UserProfile is the subset of the authenticated user kept in the session.
type UserProfile struct {
	ID              string `json:"id"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	Name            string `json:"name,omitempty"`
	SelectedBranch  string `json:"selectedBranch,omitempty"`
	DeliveryAddress string `json:"deliveryAddress,omitempty"`
}

// CartItem is one cart line.  Two items with the same ID but different
// Options are different lines; see Fingerprint.
type CartItem struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	UnitPrice float64        `json:"price"`
	Quantity  int            `json:"quantity"`
	ImageURL  string         `json:"image,omitempty"`
	Category  string         `json:"category,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type CartState struct {
	Items               []CartItem `json:"items"`
	LastModifiedEpochMs int64      `json:"lastModifiedEpochMs"`
}

// OrderStatus is the tracker's status vocabulary.  It is narrower than the
// remote one: delivered and cancelled orders are never tracked.
type OrderStatus string

const (
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusArrivingSoon   OrderStatus = "arriving_soon"
)

type ActiveOrderItem struct {
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	Customizations []string `json:"customizations,omitempty"`
}

type ActiveOrder struct {
	ID                  string            `json:"id"`
	OrderNumber         string            `json:"orderNumber"`
	Status              OrderStatus       `json:"status"`
	Items               []ActiveOrderItem `json:"items"`
	EstimatedDeliveryAt time.Time         `json:"estimatedDeliveryTime"`
	TotalAmount         float64           `json:"totalAmount"`
	CustomerName        string            `json:"customerName"`
	DeliveryAddress     string            `json:"deliveryAddress"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// Expired reports whether the order's delivery estimate is in the past.
func (o ActiveOrder) Expired(now time.Time) bool {
	return o.EstimatedDeliveryAt.Before(now)
}

type ActiveOrdersState struct {
	Orders             []ActiveOrder `json:"orders"`
	LastUpdatedEpochMs int64         `json:"lastUpdatedEpochMs"`
}

// MenuCache holds the last menu fetched from the remote API.
type MenuCache struct {
	Categories          []model.Category            `json:"categories"`
	MenuItemsByCategory map[string][]model.MenuItem `json:"menuItems"`
	Deals               []model.Deal                `json:"deals"`
	FetchedAtEpochMs    int64                       `json:"fetchedAtEpochMs"`
	SchemaVersion       string                      `json:"version"`
}

type NavigationState struct {
	CurrentPath           string            `json:"currentPath"`
	ScrollPositionsByPath map[string]int    `json:"scrollPositions"`
	PreviousPath          string            `json:"previousPath"`
	QueryParams           map[string]string `json:"queryParams"`
}

type Preferences struct {
	Theme                string         `json:"theme,omitempty"`
	Language             string         `json:"language,omitempty"`
	NotificationsEnabled *bool          `json:"notificationsEnabled,omitempty"`
	LastPizzaSelection   map[string]any `json:"lastPizzaSelection,omitempty"`
}

// PreferencesPatch updates only the fields that are non-nil.
type PreferencesPatch struct {
	Theme                *string
	Language             *string
	NotificationsEnabled *bool
	LastPizzaSelection   map[string]any
}

func (p *Preferences) apply(patch PreferencesPatch) {
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.Language != nil {
		p.Language = *patch.Language
	}
	if patch.NotificationsEnabled != nil {
		v := *patch.NotificationsEnabled
		p.NotificationsEnabled = &v
	}
	if patch.LastPizzaSelection != nil {
		p.LastPizzaSelection = patch.LastPizzaSelection
	}
}

// DefaultNavigation is the navigation state of a fresh session.
func DefaultNavigation(home string) NavigationState {
	return NavigationState{
		CurrentPath:           home,
		ScrollPositionsByPath: map[string]int{},
		PreviousPath:          "",
		QueryParams:           map[string]string{},
	}
}

func epochMs(t time.Time) int64 { return t.UnixMilli() }

// normalize replaces nil collections with empty ones so that callers and
// JSON output never see null where a list or map is expected.
func (d *Document) normalize() {
	if d.Cart.Items == nil {
		d.Cart.Items = []CartItem{}
	}
	if d.ActiveOrders.Orders == nil {
		d.ActiveOrders.Orders = []ActiveOrder{}
	}
	if d.Navigation.ScrollPositionsByPath == nil {
		d.Navigation.ScrollPositionsByPath = map[string]int{}
	}
	if d.Navigation.QueryParams == nil {
		d.Navigation.QueryParams = map[string]string{}
	}
}
