package model

import "time"

// Remote order status vocabulary as stored in the orders table.
const (
	OrderPending        = "pending"
	OrderConfirmed      = "confirmed"
	OrderPreparing      = "preparing"
	OrderReady          = "ready"
	OrderOutForDelivery = "out_for_delivery"
	OrderDelivered      = "delivered"
	OrderCancelled      = "cancelled"
)

// IsTerminalOrderStatus reports whether an order in this status no longer
// needs tracking.
func IsTerminalOrderStatus(s string) bool {
	return s == OrderDelivered || s == OrderCancelled
}

// ValidOrderStatus reports whether s belongs to the remote vocabulary.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady,
		OrderOutForDelivery, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	MenuItemID     string   `json:"menuItemId,omitempty"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	UnitPrice      float64  `json:"unitPrice"`
	Customizations []string `json:"customizations,omitempty"`
}

// Order mirrors the 'orders' table.  Items are stored as a JSON column.
// EstimatedDeliveryAt is nullable; trackers fall back to a fixed window
// after CreatedAt when it is missing.
type Order struct {
	ID                  string      `json:"id"`
	OrderNumber         string      `json:"orderNumber"`
	CustomerName        string      `json:"customerName"`
	CustomerEmail       string      `json:"customerEmail"`
	CustomerPhone       string      `json:"customerPhone"`
	DeliveryAddress     string      `json:"deliveryAddress"`
	Items               []OrderItem `json:"items"`
	Subtotal            float64     `json:"subtotal"`
	DeliveryFee         float64     `json:"deliveryFee"`
	TotalAmount         float64     `json:"totalAmount"`
	Status              string      `json:"status"`
	PaymentMethod       string      `json:"paymentMethod"`
	Notes               string      `json:"notes,omitempty"`
	EstimatedDeliveryAt *time.Time  `json:"estimatedDeliveryAt,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// CreateOrderRequest carries everything needed to place an order.
type CreateOrderRequest struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	DeliveryAddress string
	Items           []OrderItem
	DeliveryFee     float64
	PaymentMethod   string
	Notes           string
	EstimatedWindow time.Duration
}

// OrderStatusChange is one row of order_status_history.
type OrderStatusChange struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
