package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
)

// brokerStub stands in for the channel: it records published requests and
// feeds replies and returns into the client's dispatch loop.
type brokerStub struct {
	published chan amqp.Publishing
	replies   chan amqp.Delivery
	returns   chan amqp.Return
	closed    chan struct{}
}

func newStubClient(t *testing.T) (*AMQPClient, *brokerStub) {
	t.Helper()
	b := &brokerStub{
		published: make(chan amqp.Publishing, 8),
		replies:   make(chan amqp.Delivery),
		returns:   make(chan amqp.Return),
		closed:    make(chan struct{}),
	}
	publish := func(_ context.Context, msg amqp.Publishing) error {
		b.published <- msg
		return nil
	}
	closeFn := func() error {
		select {
		case <-b.closed:
		default:
			close(b.closed)
		}
		return nil
	}
	quiet := log.New("test")
	quiet.SetLevel(log.OFF)
	c := newAMQPClient(DefaultQueue, "amq.gen-reply", publish, closeFn, quiet)
	go c.dispatch(b.replies, b.returns)
	return c, b
}

func (b *brokerStub) next(t *testing.T) (amqp.Publishing, Request) {
	t.Helper()
	select {
	case msg := <-b.published:
		req, err := DecodeRequest(msg.Body)
		if err != nil {
			t.Fatalf("decode published request: %v", err)
		}
		return msg, req
	case <-time.After(2 * time.Second):
		t.Fatalf("no request published")
	}
	return amqp.Publishing{}, Request{}
}

func (b *brokerStub) reply(t *testing.T, id string, rep Reply) {
	t.Helper()
	body, err := Encode(rep)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	b.replies <- amqp.Delivery{CorrelationId: id, Body: body}
}

type callResult struct {
	rep Reply
	err error
}

func goCall(c *AMQPClient, req Request) <-chan callResult {
	out := make(chan callResult, 1)
	go func() {
		rep, err := c.Call(context.Background(), req)
		out <- callResult{rep: rep, err: err}
	}()
	return out
}

func balanceQuery(account model.ActorID) Request {
	return Request{
		Kind:           KindBalanceOfBatch,
		Source:         ledgerID,
		BalanceOfBatch: &BalanceOfBatch{Accounts: []model.ActorID{account}, ClassIDs: []uint64{0}},
	}
}

func TestAMQPClientMatchesRepliesOutOfOrder(t *testing.T) {
	c, b := newStubClient(t)
	defer c.Close()

	first := goCall(c, balanceQuery(buyerID))
	msgA, reqA := b.next(t)
	second := goCall(c, balanceQuery(ledgerID))
	msgB, reqB := b.next(t)

	if msgA.CorrelationId == msgB.CorrelationId || msgA.ReplyTo != "amq.gen-reply" || msgA.ContentType != ContentType {
		t.Fatalf("unexpected publishing headers %+v / %+v", msgA, msgB)
	}

	// Answer the second request first; each call must get its own reply.
	b.reply(t, msgB.CorrelationId, Reply{Kind: KindBalanceOfBatch, Balances: []model.Balance{{Account: reqB.BalanceOfBatch.Accounts[0], Amount: 2}}})
	b.reply(t, msgA.CorrelationId, Reply{Kind: KindBalanceOfBatch, Balances: []model.Balance{{Account: reqA.BalanceOfBatch.Accounts[0], Amount: 1}}})

	for _, tc := range []struct {
		res  <-chan callResult
		want model.ActorID
		amt  uint64
	}{{first, buyerID, 1}, {second, ledgerID, 2}} {
		r := <-tc.res
		if r.err != nil {
			t.Fatalf("call: %v", r.err)
		}
		if len(r.rep.Balances) != 1 || r.rep.Balances[0].Account != tc.want || r.rep.Balances[0].Amount != tc.amt {
			t.Fatalf("reply routed to the wrong call: %+v", r.rep)
		}
	}
}

func TestAMQPClientDropsUnknownCorrelationIDs(t *testing.T) {
	c, b := newStubClient(t)
	defer c.Close()

	res := goCall(c, balanceQuery(buyerID))
	msg, _ := b.next(t)

	b.reply(t, "not-a-pending-call", Reply{Kind: KindBalanceOfBatch, Error: "stray"})
	select {
	case r := <-res:
		t.Fatalf("stray reply resolved a call: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	b.reply(t, msg.CorrelationId, Reply{Kind: KindBalanceOfBatch, Balances: []model.Balance{{Account: buyerID}}})
	if r := <-res; r.err != nil || len(r.rep.Balances) != 1 {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestAMQPClientReturnedRequestIsUndeliverable(t *testing.T) {
	c, b := newStubClient(t)
	defer c.Close()

	res := goCall(c, balanceQuery(buyerID))
	msg, _ := b.next(t)
	b.returns <- amqp.Return{CorrelationId: msg.CorrelationId, ReplyText: "NO_ROUTE"}

	if r := <-res; !errors.Is(r.err, ErrUndeliverable) {
		t.Fatalf("expected ErrUndeliverable, got %v", r.err)
	}
}

func TestAMQPClientFailsWaitingCallsWhenRepliesStop(t *testing.T) {
	c, b := newStubClient(t)

	first := goCall(c, balanceQuery(buyerID))
	b.next(t)
	second := goCall(c, balanceQuery(ledgerID))
	b.next(t)

	// The broker channel going away ends dispatch.
	close(b.replies)
	for _, res := range []<-chan callResult{first, second} {
		if r := <-res; !errors.Is(r.err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", r.err)
		}
	}
	if _, err := c.Call(context.Background(), balanceQuery(buyerID)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected calls after close to fail, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAMQPClientCallHonoursContext(t *testing.T) {
	c, b := newStubClient(t)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, balanceQuery(buyerID))
		res <- err
	}()
	msg, _ := b.next(t)
	cancel()
	if err := <-res; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// A late reply for the abandoned call is dropped without blocking dispatch.
	b.reply(t, msg.CorrelationId, Reply{Kind: KindBalanceOfBatch})
	next := goCall(c, balanceQuery(buyerID))
	m2, _ := b.next(t)
	b.reply(t, m2.CorrelationId, Reply{Kind: KindBalanceOfBatch, Balances: []model.Balance{{Account: buyerID}}})
	if r := <-next; r.err != nil {
		t.Fatalf("call after cancellation: %v", r.err)
	}
}

func TestAMQPClientSurfacesTokenActorFailures(t *testing.T) {
	c, b := newStubClient(t)
	defer c.Close()

	res := make(chan error, 1)
	go func() {
		res <- NewClient(ledgerID, c).Mint(context.Background(), Mint{ClassID: 0, Amount: 1})
	}()
	msg, req := b.next(t)
	if req.Kind != KindMint || req.Source != ledgerID {
		t.Fatalf("unexpected request %+v", req)
	}
	b.reply(t, msg.CorrelationId, Reply{Kind: KindMint, Error: "class already exists"})
	if err := <-res; !errors.Is(err, ErrTokenActor) {
		t.Fatalf("expected ErrTokenActor, got %v", err)
	}
}
