// Package service publishes ledger acknowledgments to RabbitMQ.  Errors are
// logged and never interrupt the operation that produced the
// acknowledgment.
package service

import (
    "context"
    "encoding/json"
    "net"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
    q "github.com/iliyamo/event-ticket-ledger/internal/queue"
)

// Publisher sends every ledger acknowledgment as a persistent JSON message
// to Queue.  It satisfies ledger.Notifier.
type Publisher struct {
    URL     string
    Queue   string
    Log     *log.Logger
    Timeout time.Duration
}

// Notify publishes ack on behalf of caller.  Unknown acknowledgment types
// are ignored.
func (p *Publisher) Notify(ctx context.Context, caller model.ActorID, ack any) {
    ev, ok := q.FromAck(caller, ack, time.Now())
    if !ok {
        return
    }
    if p.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, p.Timeout)
        defer cancel()
    }
    if err := p.Publish(ctx, ev); err != nil {
        p.Log.Warnf("rabbitmq: %s event %d not published: %v", ev.Kind, ev.EventID, err)
    }
}

// Publish sends one event.  The queue is declared on every call
// (idempotent) so publishing works before any consumer has started.
func (p *Publisher) Publish(ctx context.Context, event q.LedgerEvent) error {
    body, err := json.Marshal(event)
    if err != nil {
        return err
    }

    conn, err := amqp.DialConfig(p.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      dialContext(ctx),
    })
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        p.Queue, // name
        true,    // durable
        false,   // autoDelete
        false,   // exclusive
        false,   // noWait
        nil,     // args
    ); err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    return ch.PublishWithContext(ctx,
        "",      // default exchange
        p.Queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    )
}

// dialContext opens the broker socket under ctx.  The ctx deadline also
// bounds the AMQP handshake; the client clears it once the connection is
// open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
    return func(network, addr string) (net.Conn, error) {
        var d net.Dialer
        conn, err := d.DialContext(ctx, network, addr)
        if err != nil {
            return nil, err
        }
        if dl, ok := ctx.Deadline(); ok {
            if err := conn.SetDeadline(dl); err != nil {
                _ = conn.Close()
                return nil, err
            }
        }
        return conn, nil
    }
}
