package ledger

import (
	"context"
	"fmt"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
	"github.com/iliyamo/event-ticket-ledger/internal/token"
)

// Settle closes the event and turns every sold ticket into a non-fungible
// token.  Only the creator may settle.  The steps run strictly in order,
// each waiting for the token actor's reply before the next is sent:
//
//  1. query the ticket class balance of every buyer in one batch;
//  2. burn each returned balance, one request per entry;
//  3. mint each buyer's positions as a batch with an amount of 1 per id;
//  4. mark the event settled.
//
// Progress is recorded after every confirmed step.  When a step fails the
// operation stops there, the phase stays Selling and the error is returned;
// calling Settle again resumes at the failed step rather than starting
// over.  Purchases are refused while a settlement is unfinished.  As with
// Purchase, ctx bounds only the wait for the turn; the token actor's
// replies are always awaited.
func (a *Actor) Settle(ctx context.Context, caller model.ActorID) (model.Settled, error) {
	if err := a.acquire(ctx); err != nil {
		return model.Settled{}, err
	}
	ack, err := a.settle(context.WithoutCancel(ctx), caller)
	a.release()
	if err != nil {
		return model.Settled{}, err
	}
	a.publish(ctx, caller, ack)
	return ack, nil
}

func (a *Actor) settle(ctx context.Context, caller model.ActorID) (model.Settled, error) {
	a.mu.Lock()
	e := a.event
	if caller != e.Creator || caller.IsZero() {
		a.mu.Unlock()
		return model.Settled{}, ErrNotCreator
	}
	if e.Phase != model.PhaseSelling {
		a.mu.Unlock()
		return model.Settled{}, ErrNotSelling
	}
	resumed := e.Settlement != nil
	if !resumed {
		e.Settlement = &model.Settlement{Buyers: append([]model.ActorID{}, e.Buyers...)}
	}
	classID := e.TicketClassID
	eventID := e.EventID
	snap := e.Clone()
	a.mu.Unlock()

	if resumed {
		a.log.Infof("ledger: resuming settlement of event %d", eventID)
	} else {
		a.log.Infof("ledger: settling event %d for %d buyers", eventID, len(snap.Settlement.Buyers))
		a.persist(ctx, snap)
	}

	if err := a.fetchBalances(ctx, classID); err != nil {
		return model.Settled{}, a.settleFailed(eventID, err)
	}
	if err := a.burnBalances(ctx); err != nil {
		return model.Settled{}, a.settleFailed(eventID, err)
	}
	if err := a.mintPositions(ctx); err != nil {
		return model.Settled{}, a.settleFailed(eventID, err)
	}

	a.mu.Lock()
	a.event.Phase = model.PhaseSettled
	a.event.Settlement = nil
	snap = a.event.Clone()
	a.mu.Unlock()

	ack := model.Settled{EventID: eventID}
	a.log.Infof("ledger: event %d settled", eventID)
	a.persist(ctx, snap)
	return ack, nil
}

func (a *Actor) settleFailed(eventID uint64, err error) error {
	a.log.Errorf("ledger: settlement of event %d stopped: %v", eventID, err)
	return fmt.Errorf("settle: %w", err)
}

// fetchBalances runs step 1 unless an earlier attempt already recorded the
// balances.
func (a *Actor) fetchBalances(ctx context.Context, classID uint64) error {
	a.mu.RLock()
	s := a.event.Settlement
	done := s.BalancesFetched
	accounts := append([]model.ActorID{}, s.Buyers...)
	a.mu.RUnlock()
	if done {
		return nil
	}

	ids := make([]uint64, len(accounts))
	for i := range ids {
		ids[i] = classID
	}
	balances, err := a.tokens.BalanceOfBatch(ctx, token.BalanceOfBatch{Accounts: accounts, ClassIDs: ids})
	if err != nil {
		return fmt.Errorf("balance query: %w", err)
	}

	a.step(func(s *model.Settlement) {
		s.Balances = balances
		s.BalancesFetched = true
	})
	return nil
}

// burnBalances runs step 2 from the first balance not yet burned.
func (a *Actor) burnBalances(ctx context.Context) error {
	for {
		a.mu.RLock()
		s := a.event.Settlement
		i := s.Burned
		total := len(s.Balances)
		var b model.Balance
		if i < total {
			b = s.Balances[i]
		}
		a.mu.RUnlock()
		if i >= total {
			return nil
		}

		if err := a.tokens.Burn(ctx, token.Burn{ClassID: b.ClassID, Amount: b.Amount}); err != nil {
			return fmt.Errorf("burn balance %d/%d of %s: %w", i+1, total, b.Account, err)
		}
		a.step(func(s *model.Settlement) { s.Burned++ })
	}
}

// mintPositions runs step 3 from the first buyer not yet handled.  Buyers
// without recorded positions are skipped.  A batch left pending by an
// earlier attempt may already have been applied by the token actor, so it
// is only sent again when the positions are not there yet.
func (a *Actor) mintPositions(ctx context.Context) error {
	for {
		a.mu.RLock()
		s := a.event.Settlement
		i := s.Minted
		pending := s.MintPending
		total := len(s.Buyers)
		var req token.MintBatch
		var buyer model.ActorID
		if i < total {
			buyer = s.Buyers[i]
			req = a.batchFor(buyer)
		}
		a.mu.RUnlock()
		if i >= total {
			return nil
		}

		if len(req.IDs) > 0 {
			minted := false
			if pending {
				var err error
				if minted, err = a.positionsMinted(ctx, req.IDs); err != nil {
					return fmt.Errorf("check positions of %s (%d/%d): %w", buyer, i+1, total, err)
				}
			}
			if minted {
				a.log.Infof("ledger: positions of %s already minted, skipping", buyer)
			} else {
				if !pending {
					a.step(func(s *model.Settlement) { s.MintPending = true })
				}
				if err := a.tokens.MintBatch(ctx, req); err != nil {
					return fmt.Errorf("mint positions of %s (%d/%d): %w", buyer, i+1, total, err)
				}
			}
		}
		a.step(func(s *model.Settlement) {
			s.Minted++
			s.MintPending = false
		})
	}
}

// positionsMinted reports whether every id already holds its single unit
// on the ledger's own account.
func (a *Actor) positionsMinted(ctx context.Context, ids []uint64) (bool, error) {
	accounts := make([]model.ActorID, len(ids))
	for i := range accounts {
		accounts[i] = a.tokens.Source()
	}
	balances, err := a.tokens.BalanceOfBatch(ctx, token.BalanceOfBatch{Accounts: accounts, ClassIDs: ids})
	if err != nil {
		return false, err
	}
	for _, b := range balances {
		if b.Amount == 0 {
			return false, nil
		}
	}
	return true, nil
}

// batchFor builds the parallel id/amount/metadata lists for one buyer.
// Callers hold a.mu.
func (a *Actor) batchFor(buyer model.ActorID) token.MintBatch {
	ids := a.event.PositionIDs(buyer)
	req := token.MintBatch{
		IDs:      ids,
		Amounts:  make([]uint64, len(ids)),
		Metadata: make([]*model.TicketMetadata, len(ids)),
	}
	for i, id := range ids {
		req.Amounts[i] = 1
		req.Metadata[i] = a.event.Positions[buyer][id].Clone()
	}
	return req
}

// step applies a progress update and persists it.
func (a *Actor) step(update func(*model.Settlement)) {
	a.mu.Lock()
	update(a.event.Settlement)
	snap := a.event.Clone()
	a.mu.Unlock()
	a.persist(context.Background(), snap)
}
