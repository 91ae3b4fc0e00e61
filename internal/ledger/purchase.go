package ledger

import (
	"context"
	"fmt"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
	"github.com/iliyamo/event-ticket-ledger/internal/token"
)

// Purchase buys amount tickets for caller, one metadata entry per ticket.
//
// The fungible positions are minted on the token actor first and the
// local bookkeeping (position ids, buyers, remaining tickets) is committed
// only once the mint is confirmed, so a rejected mint leaves the event
// untouched.  The actor's turn is held across the wait, which keeps the
// validated ticket count valid until the commit.
//
// ctx bounds only the wait for the turn.  Once the turn is held the mint
// is awaited to completion, whatever the caller's deadline.
func (a *Actor) Purchase(ctx context.Context, caller model.ActorID, amount uint64, metadata []*model.TicketMetadata) (model.Purchased, error) {
	if err := a.acquire(ctx); err != nil {
		return model.Purchased{}, err
	}
	ack, err := a.purchase(context.WithoutCancel(ctx), caller, amount, metadata)
	a.release()
	if err != nil {
		return model.Purchased{}, err
	}
	a.publish(ctx, caller, ack)
	return ack, nil
}

func (a *Actor) purchase(ctx context.Context, caller model.ActorID, amount uint64, metadata []*model.TicketMetadata) (model.Purchased, error) {
	a.mu.RLock()
	classID := a.event.TicketClassID
	err := a.checkPurchase(caller, amount, metadata)
	a.mu.RUnlock()
	if err != nil {
		return model.Purchased{}, err
	}

	if err := a.tokens.Mint(ctx, token.Mint{ClassID: classID, Amount: amount}); err != nil {
		a.log.Errorf("ledger: mint %d tickets for %s: %v", amount, caller, err)
		return model.Purchased{}, fmt.Errorf("mint tickets: %w", err)
	}

	a.mu.Lock()
	e := a.event
	positions, ok := e.Positions[caller]
	if !ok {
		positions = map[uint64]*model.TicketMetadata{}
		e.Positions[caller] = positions
		e.Buyers = append(e.Buyers, caller)
	}
	for _, md := range metadata {
		e.NextPositionID++
		positions[e.NextPositionID] = md.Clone()
	}
	e.TicketsRemaining -= amount
	ack := model.Purchased{EventID: e.EventID, Amount: amount}
	remaining := e.TicketsRemaining
	snap := e.Clone()
	a.mu.Unlock()

	a.log.Infof("ledger: %s bought %d tickets, %d remaining", caller, amount, remaining)
	a.persist(ctx, snap)
	return ack, nil
}

// checkPurchase validates a purchase against the current state.  Callers
// hold a.mu.
func (a *Actor) checkPurchase(caller model.ActorID, amount uint64, metadata []*model.TicketMetadata) error {
	e := a.event
	switch {
	case e.Phase != model.PhaseSelling:
		return ErrNotSelling
	case e.Settlement != nil:
		return ErrSettlementInProgress
	case caller.IsZero():
		return ErrZeroCaller
	case amount < 1:
		return ErrInvalidAmount
	case e.TicketsRemaining < amount:
		return ErrNotEnoughTickets
	case uint64(len(metadata)) != amount:
		return ErrMetadataMismatch
	}
	return nil
}
