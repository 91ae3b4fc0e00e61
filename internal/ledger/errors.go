package ledger

import "errors"

// Precondition failures.  They are returned before any state is touched.
var (
	ErrEventExists          = errors.New("event already created")
	ErrNotSelling           = errors.New("event is not selling tickets")
	ErrZeroCaller           = errors.New("message from zero address")
	ErrInvalidAmount        = errors.New("can not buy less than 1 ticket")
	ErrNotEnoughTickets     = errors.New("not enough tickets")
	ErrMetadataMismatch     = errors.New("metadata not provided for all the tickets")
	ErrNotCreator           = errors.New("only creator can settle the event")
	ErrSettlementInProgress = errors.New("settlement in progress")
)
