package token

import (
	"context"
	"fmt"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
)

// Client is the ledger's view of the token actor.  Every call issues one
// request and blocks until its correlated reply (or a failure) arrives.
type Client interface {
	Mint(ctx context.Context, m Mint) error
	BalanceOfBatch(ctx context.Context, q BalanceOfBatch) ([]model.Balance, error)
	Burn(ctx context.Context, b Burn) error
	MintBatch(ctx context.Context, m MintBatch) error
	// Source is the address stamped on every request; minted tokens are
	// credited to it.
	Source() model.ActorID
}

// Handler answers token requests.  Multitoken implements it; Server feeds it
// from the broker.
type Handler interface {
	Handle(ctx context.Context, req Request) Reply
}

// Caller performs one request/reply exchange.  LocalClient and AMQPClient
// implement it; requestClient turns any Caller into a Client.
type Caller interface {
	Call(ctx context.Context, req Request) (Reply, error)
}

// requestClient builds envelopes stamped with the sender's address and
// translates replies into Client results.
type requestClient struct {
	source model.ActorID
	caller Caller
}

func (c requestClient) do(ctx context.Context, req Request) (Reply, error) {
	req.Source = c.source
	rep, err := c.caller.Call(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", req.Kind, err)
	}
	if err := rep.Err(); err != nil {
		return Reply{}, err
	}
	return rep, nil
}

func (c requestClient) Source() model.ActorID { return c.source }

func (c requestClient) Mint(ctx context.Context, m Mint) error {
	_, err := c.do(ctx, Request{Kind: KindMint, Mint: &m})
	return err
}

func (c requestClient) BalanceOfBatch(ctx context.Context, q BalanceOfBatch) ([]model.Balance, error) {
	rep, err := c.do(ctx, Request{Kind: KindBalanceOfBatch, BalanceOfBatch: &q})
	if err != nil {
		return nil, err
	}
	if len(rep.Balances) != len(q.Accounts) {
		return nil, fmt.Errorf("%w: %d balances for %d accounts", ErrMalformed, len(rep.Balances), len(q.Accounts))
	}
	return rep.Balances, nil
}

func (c requestClient) Burn(ctx context.Context, b Burn) error {
	_, err := c.do(ctx, Request{Kind: KindBurn, Burn: &b})
	return err
}

func (c requestClient) MintBatch(ctx context.Context, m MintBatch) error {
	_, err := c.do(ctx, Request{Kind: KindMintBatch, MintBatch: &m})
	return err
}

// NewClient returns a Client that sends requests through caller on behalf of
// source.
func NewClient(source model.ActorID, caller Caller) Client {
	return requestClient{source: source, caller: caller}
}

// LocalCaller delivers requests to an in-process Handler.  It still goes
// through the wire codec so local runs exercise the same envelopes as the
// broker transport.
type LocalCaller struct {
	Handler Handler
}

// Call encodes the request, hands it to the handler and decodes the reply.
func (l LocalCaller) Call(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	body, err := Encode(req)
	if err != nil {
		return Reply{}, err
	}
	decoded, err := DecodeRequest(body)
	if err != nil {
		return Reply{}, err
	}
	out, err := Encode(l.Handler.Handle(ctx, decoded))
	if err != nil {
		return Reply{}, err
	}
	return DecodeReply(out)
}
