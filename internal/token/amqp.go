package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the request queue the token actor consumes.
const DefaultQueue = "token.requests"

// ErrClosed is returned for calls that were pending when the broker
// connection went away, and for calls made after Close.
var ErrClosed = errors.New("token transport closed")

// ErrUndeliverable is returned when the broker could not route a request to
// the token actor's queue.
var ErrUndeliverable = errors.New("token request undeliverable")

type rpcResult struct {
	reply Reply
	err   error
}

// AMQPClient is a Caller that exchanges envelopes with the token actor over
// RabbitMQ.  Requests are published to a durable queue with a unique
// correlation id; replies come back on an exclusive, broker-named queue and
// are matched to the waiting call by that id.
type AMQPClient struct {
	publish func(ctx context.Context, msg amqp.Publishing) error
	close   func() error
	queue   string
	replyTo string
	log     *log.Logger

	mu      sync.Mutex
	pending map[string]chan rpcResult
	closed  bool
	done    chan struct{}
}

// DialAMQP connects to the broker at url and prepares the reply queue.
func DialAMQP(url, queue string, logger *log.Logger) (*AMQPClient, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	// Exclusive, auto-deleted reply queue named by the broker.
	rq, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("reply queue declare: %w", err)
	}
	replies, err := ch.Consume(rq.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("reply consume: %w", err)
	}
	publish := func(ctx context.Context, msg amqp.Publishing) error {
		return ch.PublishWithContext(ctx,
			"",    // default exchange
			queue, // routing key = queue name
			true,  // mandatory, so unroutable requests come back
			false, // immediate
			msg)
	}
	closeAll := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	c := newAMQPClient(queue, rq.Name, publish, closeAll, logger)
	returns := ch.NotifyReturn(make(chan amqp.Return, 16))
	go c.dispatch(replies, returns)
	return c, nil
}

func newAMQPClient(queue, replyTo string, publish func(context.Context, amqp.Publishing) error, closeFn func() error, logger *log.Logger) *AMQPClient {
	if logger == nil {
		logger = log.New("token")
	}
	return &AMQPClient{
		publish: publish,
		close:   closeFn,
		queue:   queue,
		replyTo: replyTo,
		log:     logger,
		pending: map[string]chan rpcResult{},
		done:    make(chan struct{}),
	}
}

// dispatch routes replies and returned (unroutable) requests to their
// waiting calls until the channel closes.
func (c *AMQPClient) dispatch(replies <-chan amqp.Delivery, returns <-chan amqp.Return) {
	defer c.failAll()
	for {
		select {
		case d, ok := <-replies:
			if !ok {
				return
			}
			rep, err := DecodeReply(d.Body)
			c.resolve(d.CorrelationId, rpcResult{reply: rep, err: err})
		case r, ok := <-returns:
			if !ok {
				return
			}
			c.resolve(r.CorrelationId, rpcResult{err: fmt.Errorf("%w: %s", ErrUndeliverable, r.ReplyText)})
		}
	}
}

func (c *AMQPClient) resolve(id string, res rpcResult) {
	c.mu.Lock()
	waiter, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		c.log.Warnf("token: dropping reply with unknown correlation id %q", id)
		return
	}
	waiter <- res
}

func (c *AMQPClient) failAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, waiter := range c.pending {
		waiter <- rpcResult{err: ErrClosed}
		delete(c.pending, id)
	}
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Call publishes the request and waits for the correlated reply.  There is
// no timeout of its own; the caller's context bounds the wait.
func (c *AMQPClient) Call(ctx context.Context, req Request) (Reply, error) {
	body, err := Encode(req)
	if err != nil {
		return Reply{}, err
	}
	id := uuid.NewString()
	waiter := make(chan rpcResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Reply{}, ErrClosed
	}
	c.pending[id] = waiter
	c.mu.Unlock()

	err = c.publish(ctx, amqp.Publishing{
		ContentType:   ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: id,
		ReplyTo:       c.replyTo,
		Timestamp:     time.Now().UTC(),
		Type:          string(req.Kind),
		Body:          body,
	})
	if err != nil {
		c.forget(id)
		return Reply{}, fmt.Errorf("publish: %w", err)
	}

	select {
	case res := <-waiter:
		return res.reply, res.err
	case <-ctx.Done():
		c.forget(id)
		return Reply{}, ctx.Err()
	case <-c.done:
		// failAll may have raced with the select; prefer a delivered result.
		select {
		case res := <-waiter:
			return res.reply, res.err
		default:
			return Reply{}, ErrClosed
		}
	}
}

func (c *AMQPClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close tears down the channel and the connection.  Pending calls fail with
// ErrClosed.
func (c *AMQPClient) Close() error {
	err := c.close()
	c.failAll()
	return err
}
