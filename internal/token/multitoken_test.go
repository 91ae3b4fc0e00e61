package token

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
)

var (
	ledgerID = model.ActorIDFromSeed("ledger")
	buyerID  = model.ActorIDFromSeed("buyer")
)

func localClient(mt *Multitoken) Client {
	return NewClient(ledgerID, LocalCaller{Handler: mt})
}

func TestMultitokenMintAndBurn(t *testing.T) {
	t.Parallel()
	mt := NewMultitoken()
	c := localClient(mt)
	ctx := context.Background()

	if err := c.Mint(ctx, Mint{ClassID: 7, Amount: 5}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := mt.BalanceOf(ledgerID, 7); got != 5 {
		t.Fatalf("expected balance 5, got %d", got)
	}
	if err := c.Burn(ctx, Burn{ClassID: 7, Amount: 2}); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := mt.BalanceOf(ledgerID, 7); got != 3 {
		t.Fatalf("expected balance 3, got %d", got)
	}
	err := c.Burn(ctx, Burn{ClassID: 7, Amount: 4})
	if !errors.Is(err, ErrTokenActor) {
		t.Fatalf("expected ErrTokenActor for overdraft, got %v", err)
	}
	if got := mt.BalanceOf(ledgerID, 7); got != 3 {
		t.Fatalf("expected failed burn to keep balance 3, got %d", got)
	}
	if err := c.Mint(ctx, Mint{ClassID: 7}); !errors.Is(err, ErrTokenActor) {
		t.Fatalf("expected zero mint to fail, got %v", err)
	}
}

func TestMultitokenBalanceOfBatchKeepsRequestOrder(t *testing.T) {
	t.Parallel()
	mt := NewMultitoken()
	ctx := context.Background()
	if err := localClient(mt).Mint(ctx, Mint{ClassID: 1, Amount: 4}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := NewClient(buyerID, LocalCaller{Handler: mt}).Mint(ctx, Mint{ClassID: 1, Amount: 9}); err != nil {
		t.Fatalf("mint: %v", err)
	}

	got, err := localClient(mt).BalanceOfBatch(ctx, BalanceOfBatch{
		Accounts: []model.ActorID{buyerID, ledgerID, model.ZeroActorID},
		ClassIDs: []uint64{1, 1, 1},
	})
	if err != nil {
		t.Fatalf("balance of batch: %v", err)
	}
	want := []model.Balance{
		{ClassID: 1, Account: buyerID, Amount: 9},
		{ClassID: 1, Account: ledgerID, Amount: 4},
		{ClassID: 1, Account: model.ZeroActorID, Amount: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d balances, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("balance %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestMultitokenMintBatch(t *testing.T) {
	t.Parallel()
	mt := NewMultitoken()
	c := localClient(mt)
	ctx := context.Background()
	md := &model.TicketMetadata{Title: "Boleto #1", Media: "URL"}

	err := c.MintBatch(ctx, MintBatch{
		IDs:      []uint64{1, 2},
		Amounts:  []uint64{1, 1},
		Metadata: []*model.TicketMetadata{md, nil},
	})
	if err != nil {
		t.Fatalf("mint batch: %v", err)
	}
	if !mt.IsNFT(1) || !mt.IsNFT(2) {
		t.Fatalf("expected ids 1 and 2 to be non-fungible")
	}
	if got := mt.Metadata(1); got == nil || *got != *md {
		t.Fatalf("expected metadata %+v, got %+v", md, got)
	}
	if got := mt.Metadata(2); got != nil {
		t.Fatalf("expected no metadata for id 2, got %+v", got)
	}

	t.Run("rejects re-minting a non-fungible id", func(t *testing.T) {
		err := c.MintBatch(ctx, MintBatch{IDs: []uint64{3, 1}, Amounts: []uint64{1, 1}, Metadata: []*model.TicketMetadata{nil, nil}})
		if !errors.Is(err, ErrTokenActor) {
			t.Fatalf("expected ErrTokenActor, got %v", err)
		}
		if mt.IsNFT(3) {
			t.Fatalf("expected failed batch to mint nothing")
		}
	})

	t.Run("rejects mismatched lists", func(t *testing.T) {
		err := c.MintBatch(ctx, MintBatch{IDs: []uint64{9}, Amounts: []uint64{1, 1}, Metadata: []*model.TicketMetadata{nil}})
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
}

func TestDecodeRequestRejectsMismatchedPayload(t *testing.T) {
	t.Parallel()
	body, err := Encode(Request{Kind: KindBurn, Source: ledgerID, Mint: &Mint{ClassID: 1, Amount: 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRequest(body); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := DecodeRequest([]byte{0xff, 0x00}); err == nil {
		t.Fatalf("expected garbage to fail decoding")
	}
}

func TestLocalCallerHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := localClient(NewMultitoken()).Mint(ctx, Mint{ClassID: 1, Amount: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
