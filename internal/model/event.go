package model

import "sort"

// Phase is the lifecycle phase of the ticketed event.  Transitions are
// strictly forward: Uninitialized -> Selling -> Settled.
type Phase string

const (
    PhaseUninitialized Phase = "UNINITIALIZED"
    PhaseSelling       Phase = "SELLING"
    PhaseSettled       Phase = "SETTLED"
)

// TicketMetadata is the optional descriptive payload a buyer attaches to a
// purchased ticket.  It is forwarded verbatim to the token actor when the
// ticket becomes a non-fungible token at settlement.
type TicketMetadata struct {
    Title       string `json:"title,omitempty" cbor:"title,omitempty"`
    Description string `json:"description,omitempty" cbor:"description,omitempty"`
    Media       string `json:"media,omitempty" cbor:"media,omitempty"`
    Reference   string `json:"reference,omitempty" cbor:"reference,omitempty"`
}

// Balance is one entry of a batched balance query: the amount of ClassID
// held by Account on the token actor.
type Balance struct {
    ClassID uint64  `json:"class_id" cbor:"class_id"`
    Account ActorID `json:"account" cbor:"account"`
    Amount  uint64  `json:"amount" cbor:"amount"`
}

// Settlement records the progress of a settlement that has started but not
// finished.  Buyers is the snapshot taken by the first attempt; Balances is
// filled once the balance query returned.  Burned and Minted count the
// completed burn requests (over Balances) and the buyers handled by the
// batch mint step (over Buyers).  MintPending is set while the batch mint
// for Buyers[Minted] is in flight; a resume checks the token actor before
// sending it again.
type Settlement struct {
    Buyers          []ActorID `json:"buyers"`
    BalancesFetched bool      `json:"balances_fetched"`
    Balances        []Balance `json:"balances"`
    Burned          int       `json:"burned"`
    Minted          int       `json:"minted"`
    MintPending     bool      `json:"mint_pending,omitempty"`
}

// Event is the single ticketed event owned by one ledger actor.
//
// Fields:
//  Owner            – identity that initialised the actor; never changes.
//  TokenActor       – address of the collaborating token actor.
//  Creator          – identity allowed to settle the event.
//  Name, Description – free-form text set at creation.
//  TicketClassID    – token class used for the fungible ticket positions.
//  TotalTickets     – number of tickets offered.
//  TicketsRemaining – tickets still for sale; 0 <= remaining <= total.
//  Date             – opaque event timestamp, never validated.
//  EventID          – identifier assigned at creation.
//  NextPositionID   – running counter for position ids; never reused.
//  Phase            – lifecycle phase.
//  Buyers           – identities with at least one ticket, first purchase first.
//  Positions        – per buyer, position id -> optional metadata.
//  Settlement       – progress of an unfinished settlement, nil otherwise.
type Event struct {
    Owner            ActorID                                `json:"owner"`
    TokenActor       ActorID                                `json:"token_actor"`
    Creator          ActorID                                `json:"creator"`
    Name             string                                 `json:"name"`
    Description      string                                 `json:"description"`
    TicketClassID    uint64                                 `json:"ticket_class_id"`
    TotalTickets     uint64                                 `json:"total_tickets"`
    TicketsRemaining uint64                                 `json:"tickets_remaining"`
    Date             uint64                                 `json:"date"`
    EventID          uint64                                 `json:"event_id"`
    NextPositionID   uint64                                 `json:"next_position_id"`
    Phase            Phase                                  `json:"phase"`
    Buyers           []ActorID                              `json:"buyers"`
    Positions        map[ActorID]map[uint64]*TicketMetadata `json:"positions"`
    Settlement       *Settlement                            `json:"settlement,omitempty"`
}

// NewEvent returns the empty, uninitialised event of a freshly deployed
// actor.
func NewEvent(owner, tokenActor ActorID) *Event {
    return &Event{
        Owner:      owner,
        TokenActor: tokenActor,
        Phase:      PhaseUninitialized,
        Buyers:     []ActorID{},
        Positions:  map[ActorID]map[uint64]*TicketMetadata{},
    }
}

// HasBuyer reports whether the identity purchased at least one ticket.
func (e *Event) HasBuyer(id ActorID) bool {
    _, ok := e.Positions[id]
    return ok
}

// PositionIDs returns the buyer's position ids in ascending order, which is
// the order they were purchased in.
func (e *Event) PositionIDs(buyer ActorID) []uint64 {
    positions := e.Positions[buyer]
    ids := make([]uint64, 0, len(positions))
    for id := range positions {
        ids = append(ids, id)
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    return ids
}

// Clone returns a deep copy of the event.  Metadata values are copied too so
// that callers can never reach into the actor's state.
func (e *Event) Clone() *Event {
    out := *e
    out.Buyers = append([]ActorID{}, e.Buyers...)
    out.Positions = make(map[ActorID]map[uint64]*TicketMetadata, len(e.Positions))
    for buyer, positions := range e.Positions {
        cp := make(map[uint64]*TicketMetadata, len(positions))
        for id, md := range positions {
            cp[id] = md.Clone()
        }
        out.Positions[buyer] = cp
    }
    if e.Settlement != nil {
        s := *e.Settlement
        s.Buyers = append([]ActorID{}, e.Settlement.Buyers...)
        s.Balances = append([]Balance{}, e.Settlement.Balances...)
        out.Settlement = &s
    }
    return &out
}

// Clone copies the metadata; a nil receiver yields nil.
func (m *TicketMetadata) Clone() *TicketMetadata {
    if m == nil {
        return nil
    }
    cp := *m
    return &cp
}
