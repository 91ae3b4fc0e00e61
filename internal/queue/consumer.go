package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue ledger acknowledgments are published to.
const DefaultQueue = "ledger.events"

// Consumer journals ledger acknowledgments from Queue into Dir/ledger.log,
// one line per message.
type Consumer struct {
    URL   string
    Queue string
    Dir   string
    Log   *log.Logger
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes it
// until ctx is cancelled.  Broker failures are logged and retried with a
// capped backoff; a message that cannot be journaled is rejected without
// requeue so the consumer keeps going.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warnf("ledger-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warnf("ledger-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warnf("ledger-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
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
            if err := c.handleMessage(d.Body); err != nil {
                c.Log.Errorf("ledger-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handleMessage(body []byte) error {
    var ev LedgerEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(c.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.Dir, "ledger.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single journal line terminated by a newline.
func FormatLine(ev LedgerEvent) string {
    switch ev.Kind {
    case KindCreated:
        return fmt.Sprintf("[%s] Event created | event_id=%d | creator=%s | total_tickets=%d | date=%d\n",
            ev.At, ev.EventID, ev.Creator, ev.TotalTickets, ev.Date)
    case KindPurchased:
        return fmt.Sprintf("[%s] Tickets purchased | event_id=%d | buyer=%s | amount=%d\n",
            ev.At, ev.EventID, ev.Caller, ev.Amount)
    case KindSettled:
        return fmt.Sprintf("[%s] Event settled | event_id=%d | caller=%s\n",
            ev.At, ev.EventID, ev.Caller)
    }
    return fmt.Sprintf("[%s] Unknown ledger event %q | event_id=%d | caller=%s\n",
        ev.At, ev.Kind, ev.EventID, ev.Caller)
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
