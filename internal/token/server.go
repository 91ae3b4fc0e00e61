package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Server serves token requests from the broker with a Handler.  Each
// delivery is decoded, handled and answered on its ReplyTo queue with the
// same correlation id.  Run keeps reconnecting until ctx is cancelled.
type Server struct {
	URL     string
	Queue   string
	Handler Handler
	Log     *log.Logger
}

// Run connects to the broker and serves requests, reconnecting with
// exponential backoff (capped at 30s) whenever the connection is lost.
func (s *Server) Run(ctx context.Context) error {
	if s.Queue == "" {
		s.Queue = DefaultQueue
	}
	if s.Log == nil {
		s.Log = log.New("token-actor")
	}
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(s.URL)
		if err != nil {
			s.Log.Warnf("token-actor: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = s.serve(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Log.Warnf("token-actor: serve loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (s *Server) serve(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// One request at a time keeps the token ledger's effects in arrival order.
	if err := ch.Qos(1, 0, false); err != nil {
		s.Log.Warnf("token-actor: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(s.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(s.Queue, "", false, false, false, false, nil)
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
			s.handle(ctx, ch, d)
		}
	}
}

func (s *Server) handle(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	var rep Reply
	req, err := DecodeRequest(d.Body)
	if err != nil {
		s.Log.Errorf("token-actor: bad request %s: %v", d.CorrelationId, err)
		rep = Reply{Kind: Kind(d.Type), Error: err.Error()}
	} else {
		rep = s.Handler.Handle(ctx, req)
		if rep.Error != "" {
			s.Log.Infof("token-actor: %s from %s rejected: %s", req.Kind, req.Source, rep.Error)
		}
	}
	if d.ReplyTo == "" {
		// Nobody waits for an answer; drop it after applying.
		_ = d.Ack(false)
		return
	}
	body, err := Encode(rep)
	if err != nil {
		s.Log.Errorf("token-actor: encode reply %s: %v", d.CorrelationId, err)
		_ = d.Nack(false, false)
		return
	}
	err = ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   ContentType,
		CorrelationId: d.CorrelationId,
		Timestamp:     time.Now().UTC(),
		Type:          string(rep.Kind),
		Body:          body,
	})
	if err != nil {
		s.Log.Errorf("token-actor: reply %s: %v", d.CorrelationId, err)
	}
	_ = d.Ack(false)
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
