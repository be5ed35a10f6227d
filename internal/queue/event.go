// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// OrderEventsQueue is the durable queue carrying every order event.
const OrderEventsQueue = "order.events"

// Order event types.
const (
    OrderCreated       = "order.created"
    OrderStatusChanged = "order.status_changed"
)

// OrderEvent is published when an order is placed or its status changes.
// It carries enough for downstream consumers to log or notify without
// querying the orders table.
type OrderEvent struct {
    Type        string `json:"type"`
    OrderID     string `json:"order_id"`
    OrderNumber string `json:"order_number"`
    Status      string `json:"status"`
    Actor       string `json:"actor,omitempty"`
    Notes       string `json:"notes,omitempty"`
    OccurredAt  string `json:"occurred_at"`
}

// NewOrderEvent fills OccurredAt with the current UTC time in RFC 3339.
func NewOrderEvent(typ, orderID, orderNumber, status, actor, notes string) OrderEvent {
    return OrderEvent{
        Type:        typ,
        OrderID:     orderID,
        OrderNumber: orderNumber,
        Status:      status,
        Actor:       actor,
        Notes:       notes,
        OccurredAt:  time.Now().UTC().Format(time.RFC3339),
    }
}
