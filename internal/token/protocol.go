// Package token implements the message contract between the event ledger and
// the external token actor that keeps fungible and non-fungible balances.
// The ledger only ever talks to the token actor through a Client; requests
// are correlated one-to-one with their replies and are never pipelined.
package token

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
)

// Kind names the request carried by an envelope.
type Kind string

const (
	KindMint           Kind = "mint"
	KindBalanceOfBatch Kind = "balance_of_batch"
	KindBurn           Kind = "burn"
	KindMintBatch      Kind = "mint_batch"
)

// Mint asks the token actor to mint Amount fungible units of ClassID to the
// requesting actor.
type Mint struct {
	ClassID  uint64                `cbor:"class_id"`
	Amount   uint64                `cbor:"amount"`
	Metadata *model.TicketMetadata `cbor:"metadata,omitempty"`
}

// BalanceOfBatch queries Accounts[i]'s balance of ClassIDs[i].  Both slices
// have the same length.
type BalanceOfBatch struct {
	Accounts []model.ActorID `cbor:"accounts"`
	ClassIDs []uint64        `cbor:"class_ids"`
}

// Burn removes Amount units of ClassID from the requesting actor.
type Burn struct {
	ClassID uint64 `cbor:"class_id"`
	Amount  uint64 `cbor:"amount"`
}

// MintBatch mints IDs[i] with Amounts[i] and Metadata[i].  An amount of 1
// makes the id non-fungible.
type MintBatch struct {
	IDs      []uint64                `cbor:"ids"`
	Amounts  []uint64                `cbor:"amounts"`
	Metadata []*model.TicketMetadata `cbor:"metadata"`
}

// Request is the envelope sent to the token actor.  Source is the address
// of the requesting actor, stamped by the sender.  Exactly one payload field
// is set and it matches Kind.
type Request struct {
	Kind           Kind            `cbor:"kind"`
	Source         model.ActorID   `cbor:"source"`
	Mint           *Mint           `cbor:"mint,omitempty"`
	BalanceOfBatch *BalanceOfBatch `cbor:"balance_of_batch,omitempty"`
	Burn           *Burn           `cbor:"burn,omitempty"`
	MintBatch      *MintBatch      `cbor:"mint_batch,omitempty"`
}

// Reply is the token actor's answer.  A non-empty Error means the request
// failed; Balances is only set for balance queries.
type Reply struct {
	Kind     Kind            `cbor:"kind"`
	Balances []model.Balance `cbor:"balances,omitempty"`
	Error    string          `cbor:"error,omitempty"`
}

// ErrTokenActor marks a request the token actor answered with a failure.
var ErrTokenActor = errors.New("token actor failure")

// ErrMalformed is returned for envelopes whose payload does not match Kind.
var ErrMalformed = errors.New("malformed token message")

// Err converts a failed reply into an error wrapping ErrTokenActor.
func (r Reply) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrTokenActor, r.Kind, r.Error)
}

// Validate checks that the payload matches the declared kind and that the
// parallel slices line up.
func (r Request) Validate() error {
	switch r.Kind {
	case KindMint:
		if r.Mint == nil {
			return ErrMalformed
		}
	case KindBalanceOfBatch:
		if r.BalanceOfBatch == nil || len(r.BalanceOfBatch.Accounts) != len(r.BalanceOfBatch.ClassIDs) {
			return ErrMalformed
		}
	case KindBurn:
		if r.Burn == nil {
			return ErrMalformed
		}
	case KindMintBatch:
		b := r.MintBatch
		if b == nil || len(b.IDs) != len(b.Amounts) || len(b.IDs) != len(b.Metadata) {
			return ErrMalformed
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, r.Kind)
	}
	return nil
}

// ContentType is the MIME type of encoded envelopes.
const ContentType = "application/cbor"

// Encode serialises an envelope.
func Encode(v any) ([]byte, error) { return cbor.Marshal(v) }

// DecodeRequest parses and validates a request envelope.
func DecodeRequest(b []byte) (Request, error) {
	var req Request
	if err := cbor.Unmarshal(b, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// DecodeReply parses a reply envelope.
func DecodeReply(b []byte) (Reply, error) {
	var rep Reply
	if err := cbor.Unmarshal(b, &rep); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return rep, nil
}
