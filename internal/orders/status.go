package orders

import (
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/model"
	"github.com/iliyamo/restaurant-storefront/internal/session"
)

// DefaultDeliveryWindow is used when a remote order has no delivery
// estimate.
const DefaultDeliveryWindow = 45 * time.Minute

var flow = []session.OrderStatus{
	session.StatusConfirmed,
	session.StatusPreparing,
	session.StatusReady,
	session.StatusOutForDelivery,
	session.StatusArrivingSoon,
}

// Next returns the status that follows s in the delivery flow.  The last
// status, and anything outside the flow, has no successor.
func Next(s session.OrderStatus) (session.OrderStatus, bool) {
	for i, st := range flow[:len(flow)-1] {
		if st == s {
			return flow[i+1], true
		}
	}
	return "", false
}

// Valid reports whether s is a tracker status.
func Valid(s session.OrderStatus) bool {
	for _, st := range flow {
		if st == s {
			return true
		}
	}
	return false
}

// FromRemote maps the remote order vocabulary onto tracker statuses.
func FromRemote(status string) session.OrderStatus {
	switch status {
	case model.OrderPending, model.OrderConfirmed:
		return session.StatusConfirmed
	case model.OrderPreparing:
		return session.StatusPreparing
	case model.OrderReady:
		return session.StatusReady
	case model.OrderOutForDelivery:
		return session.StatusOutForDelivery
	default:
		return session.StatusArrivingSoon
	}
}

// FromRemoteOrder converts a remote order record into a tracked order.
func FromRemoteOrder(o model.Order) session.ActiveOrder {
	eta := o.CreatedAt.Add(DefaultDeliveryWindow)
	if o.EstimatedDeliveryAt != nil {
		eta = *o.EstimatedDeliveryAt
	}
	items := make([]session.ActiveOrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, session.ActiveOrderItem{Name: it.Name, Quantity: it.Quantity, Customizations: it.Customizations})
	}
	return session.ActiveOrder{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		Status:              FromRemote(o.Status),
		Items:               items,
		EstimatedDeliveryAt: eta,
		TotalAmount:         o.TotalAmount,
		CustomerName:        o.CustomerName,
		DeliveryAddress:     o.DeliveryAddress,
		CreatedAt:           o.CreatedAt,
	}
}
