// Package queue contains the background consumer that listens to the
// order.events queue and writes one line per event to logs/orders.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
)

// StartOrderEventConsumer connects to RabbitMQ, declares the order.events
// queue (durable), and consumes until ctx is cancelled. Each message is
// appended to orders.log under logDir. Broker failures trigger a
// reconnect with backoff; malformed messages are rejected without requeue
// so the consumer keeps going.
func StartOrderEventConsumer(ctx context.Context, url, logDir string, log *logger.Logger) error {
    log = logger.OrNop(log).With("component", "order-consumer")
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, logDir, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        log.Warn("consume loop ended, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, log *logger.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("set QoS failed", "error", err)
    }

    if _, err := ch.QueueDeclare(OrderEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(OrderEventsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(logDir, d.Body); err != nil {
                log.Warn("handle message failed", "error", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one order event and appends it to orders.log.
func HandleMessage(logDir string, body []byte) error {
    var ev OrderEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.OrderID == "" {
        return errors.New("event missing type or order_id")
    }
    if err := os.MkdirAll(logDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(logDir, "orders.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single newline-terminated log line.
func FormatLine(ev OrderEvent) string {
    line := fmt.Sprintf("[%s] %s | order_id=%s | order_number=%s | status=%s",
        ev.OccurredAt, ev.Type, ev.OrderID, ev.OrderNumber, ev.Status)
    if ev.Actor != "" {
        line += fmt.Sprintf(" | actor=%s", ev.Actor)
    }
    if ev.Notes != "" {
        line += fmt.Sprintf(" | notes=%q", ev.Notes)
    }
    return line + "\n"
}
