package model

// Summary is the public view of the current event.
type Summary struct {
    Name             string `json:"name"`
    Description      string `json:"description"`
    Date             uint64 `json:"date"`
    TotalTickets     uint64 `json:"total_tickets"`
    TicketsRemaining uint64 `json:"tickets_remaining"`
}

// Created acknowledges a successful Create.
type Created struct {
    Creator      ActorID `json:"creator"`
    EventID      uint64  `json:"event_id"`
    TotalTickets uint64  `json:"total_tickets"`
    Date         uint64  `json:"date"`
}

// Purchased acknowledges a successful Purchase.
type Purchased struct {
    EventID uint64 `json:"event_id"`
    Amount  uint64 `json:"amount"`
}

// Settled acknowledges a completed settlement.
type Settled struct {
    EventID uint64 `json:"event_id"`
}
