// Package queue defines the ledger acknowledgment messages exchanged over the
// message broker and the consumer that journals them.
package queue

import (
    "time"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

// Kinds of LedgerEvent.
const (
    KindCreated   = "created"
    KindPurchased = "purchased"
    KindSettled   = "settled"
)

// LedgerEvent is published once for every acknowledgment the ledger actor
// sends.  It carries enough to journal the operation without querying the
// actor.  Fields that do not apply to a kind are left zero.
type LedgerEvent struct {
    Kind         string        `json:"kind"`
    Caller       model.ActorID `json:"caller"`
    EventID      uint64        `json:"event_id"`
    Creator      model.ActorID `json:"creator,omitempty"`
    TotalTickets uint64        `json:"total_tickets,omitempty"`
    Date         uint64        `json:"date,omitempty"`
    Amount       uint64        `json:"amount,omitempty"`
    At           string        `json:"at"`
}

// FromAck maps an acknowledgment to its message.  ok is false for values
// that are not ledger acknowledgments.
func FromAck(caller model.ActorID, ack any, at time.Time) (ev LedgerEvent, ok bool) {
    ev = LedgerEvent{Caller: caller, At: at.UTC().Format(time.RFC3339)}
    switch a := ack.(type) {
    case model.Created:
        ev.Kind = KindCreated
        ev.EventID = a.EventID
        ev.Creator = a.Creator
        ev.TotalTickets = a.TotalTickets
        ev.Date = a.Date
    case model.Purchased:
        ev.Kind = KindPurchased
        ev.EventID = a.EventID
        ev.Amount = a.Amount
    case model.Settled:
        ev.Kind = KindSettled
        ev.EventID = a.EventID
    default:
        return LedgerEvent{}, false
    }
    return ev, true
}
