package ledger

import "github.com/iliyamo/event-ticket-ledger/internal/model"

// Summary returns the public view of the event.
func (a *Actor) Summary() model.Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e := a.event
	return model.Summary{
		Name:             e.Name,
		Description:      e.Description,
		Date:             e.Date,
		TotalTickets:     e.TotalTickets,
		TicketsRemaining: e.TicketsRemaining,
	}
}

// Buyers lists every identity that bought at least one ticket.
func (a *Actor) Buyers() []model.ActorID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]model.ActorID{}, a.event.Buyers...)
}

// BuyerTickets returns the metadata recorded for buyer's tickets in purchase
// order.  Unknown identities get an empty list.
func (a *Actor) BuyerTickets(buyer model.ActorID) []*model.TicketMetadata {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.event.PositionIDs(buyer)
	out := make([]*model.TicketMetadata, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.event.Positions[buyer][id].Clone())
	}
	return out
}

// Phase returns the current lifecycle phase.
func (a *Actor) Phase() model.Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.event.Phase
}

// State returns a copy of the full event record.
func (a *Actor) State() *model.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.event.Clone()
}
