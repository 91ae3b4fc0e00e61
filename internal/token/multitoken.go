package token

import (
	"context"
	"sync"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
)

// Multitoken is a reference token actor kept in memory.  It holds fungible
// balances per class and non-fungible tokens (ids minted with an amount of
// one) together with their metadata.  Minted units are credited to the
// requesting actor and burns debit it.
type Multitoken struct {
	mu       sync.Mutex
	balances map[uint64]map[model.ActorID]uint64
	supply   map[uint64]uint64
	nft      map[uint64]bool
	metadata map[uint64]*model.TicketMetadata
}

// NewMultitoken returns an empty token ledger.
func NewMultitoken() *Multitoken {
	return &Multitoken{
		balances: map[uint64]map[model.ActorID]uint64{},
		supply:   map[uint64]uint64{},
		nft:      map[uint64]bool{},
		metadata: map[uint64]*model.TicketMetadata{},
	}
}

// Handle applies one request atomically.
func (m *Multitoken) Handle(_ context.Context, req Request) Reply {
	if err := req.Validate(); err != nil {
		return Reply{Kind: req.Kind, Error: err.Error()}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Kind {
	case KindMint:
		return m.mint(req.Source, req.Mint)
	case KindBalanceOfBatch:
		return m.balanceOfBatch(req.BalanceOfBatch)
	case KindBurn:
		return m.burn(req.Source, req.Burn)
	default:
		return m.mintBatch(req.Source, req.MintBatch)
	}
}

func (m *Multitoken) mint(to model.ActorID, r *Mint) Reply {
	if to.IsZero() {
		return Reply{Kind: KindMint, Error: "mint to zero address"}
	}
	if r.Amount == 0 {
		return Reply{Kind: KindMint, Error: "amount must be positive"}
	}
	if m.nft[r.ClassID] {
		return Reply{Kind: KindMint, Error: "id is a non-fungible token"}
	}
	if r.Metadata != nil && r.Amount > 1 {
		return Reply{Kind: KindMint, Error: "metadata is only allowed for non-fungible tokens"}
	}
	m.credit(r.ClassID, to, r.Amount)
	if r.Metadata != nil {
		m.nft[r.ClassID] = true
		m.metadata[r.ClassID] = r.Metadata.Clone()
	}
	return Reply{Kind: KindMint}
}

func (m *Multitoken) balanceOfBatch(r *BalanceOfBatch) Reply {
	out := make([]model.Balance, 0, len(r.Accounts))
	for i, account := range r.Accounts {
		id := r.ClassIDs[i]
		out = append(out, model.Balance{ClassID: id, Account: account, Amount: m.balances[id][account]})
	}
	return Reply{Kind: KindBalanceOfBatch, Balances: out}
}

func (m *Multitoken) burn(from model.ActorID, r *Burn) Reply {
	if have := m.balances[r.ClassID][from]; have < r.Amount {
		return Reply{Kind: KindBurn, Error: "insufficient balance"}
	}
	if r.Amount == 0 {
		return Reply{Kind: KindBurn}
	}
	m.balances[r.ClassID][from] -= r.Amount
	m.supply[r.ClassID] -= r.Amount
	return Reply{Kind: KindBurn}
}

func (m *Multitoken) mintBatch(to model.ActorID, r *MintBatch) Reply {
	if to.IsZero() {
		return Reply{Kind: KindMintBatch, Error: "mint to zero address"}
	}
	seen := make(map[uint64]bool, len(r.IDs))
	for i, id := range r.IDs {
		amount := r.Amounts[i]
		switch {
		case amount == 0:
			return Reply{Kind: KindMintBatch, Error: "amount must be positive"}
		case seen[id]:
			return Reply{Kind: KindMintBatch, Error: "duplicate id in batch"}
		case amount == 1 && m.supply[id] > 0:
			return Reply{Kind: KindMintBatch, Error: "non-fungible token already exists"}
		case amount > 1 && (m.nft[id] || r.Metadata[i] != nil):
			return Reply{Kind: KindMintBatch, Error: "metadata is only allowed for non-fungible tokens"}
		}
		seen[id] = true
	}
	for i, id := range r.IDs {
		m.credit(id, to, r.Amounts[i])
		if r.Amounts[i] == 1 {
			m.nft[id] = true
			m.metadata[id] = r.Metadata[i].Clone()
		}
	}
	return Reply{Kind: KindMintBatch}
}

func (m *Multitoken) credit(id uint64, to model.ActorID, amount uint64) {
	if m.balances[id] == nil {
		m.balances[id] = map[model.ActorID]uint64{}
	}
	m.balances[id][to] += amount
	m.supply[id] += amount
}

// BalanceOf returns account's balance of id.
func (m *Multitoken) BalanceOf(account model.ActorID, id uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id][account]
}

// IsNFT reports whether id was minted as a non-fungible token.
func (m *Multitoken) IsNFT(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nft[id]
}

// Metadata returns a copy of the metadata stored for a non-fungible id.
func (m *Multitoken) Metadata(id uint64) *model.TicketMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadata[id].Clone()
}
