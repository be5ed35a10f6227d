// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures without
// interrupting the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
    q "github.com/iliyamo/restaurant-storefront/internal/queue"
)

// Publisher sends order events to the order.events queue. Each publish
// opens its own connection, so a broker outage never leaves a broken
// connection behind.
type Publisher struct {
    url string
    log *logger.Logger
}

func NewPublisher(url string, log *logger.Logger) *Publisher {
    return &Publisher{url: url, log: logger.OrNop(log).With("component", "order-publisher")}
}

// PublishOrderEvent publishes event to the "order.events" queue. The
// function never panics; any error is logged and returned so the caller
// can choose to ignore it. Messages are marked as persistent.
func (p *Publisher) PublishOrderEvent(ctx context.Context, event q.OrderEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Warn("rabbitmq dial failed", "error", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("rabbitmq channel open failed", "error", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.OrderEventsQueue, // name
        true,               // durable
        false,              // autoDelete
        false,              // exclusive
        false,              // noWait
        nil,                // args
    ); err != nil {
        p.log.Warn("rabbitmq queue declare failed", "error", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        p.log.Warn("marshal order event failed", "error", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Type:         event.Type,
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",                 // default exchange
        q.OrderEventsQueue, // routing key = queue name
        false,              // mandatory
        false,              // immediate
        pub,
    ); err != nil {
        p.log.Warn("rabbitmq publish failed", "error", err, "event", event.Type)
        return err
    }
    p.log.Debug("order event published", "event", event.Type, "order_id", event.OrderID)
    return nil
}
