// Package ledger is the event actor: it owns one ticketed event and drives
// its lifecycle (create, purchase, settle) against the external token actor.
//
// The actor handles one top-level operation at a time.  An operation keeps
// its turn for its whole duration, including every wait on the token actor,
// so no two operations ever interleave their mutations.  Read-only views do
// not take the turn; they read a consistent snapshot under a lock and can be
// served while an operation is suspended.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
	"github.com/iliyamo/event-ticket-ledger/internal/token"
)

// Store persists snapshots of the event so the actor survives restarts.
// Load reports found=false when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (ev *model.Event, found bool, err error)
	Save(ctx context.Context, ev *model.Event) error
}

// Notifier is told about every acknowledgment the actor sends.  Delivery is
// best-effort and never affects the outcome of the operation.
type Notifier interface {
	Notify(ctx context.Context, caller model.ActorID, ack any)
}

// Actor is the event actor.  Construct it with New or Open.
type Actor struct {
	turn chan struct{}

	mu    sync.RWMutex
	event *model.Event

	tokens token.Client
	store  Store
	notify Notifier
	log    *log.Logger
}

// Option configures an Actor.
type Option func(*Actor)

// WithStore persists a snapshot after every committed change.
func WithStore(s Store) Option { return func(a *Actor) { a.store = s } }

// WithNotifier forwards acknowledgments to n.
func WithNotifier(n Notifier) Option { return func(a *Actor) { a.notify = n } }

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option { return func(a *Actor) { a.log = l } }

// New initialises an actor with an empty, uninitialised event owned by owner
// and bound to the token actor at tokenActor.
func New(owner, tokenActor model.ActorID, tokens token.Client, opts ...Option) *Actor {
	return newActor(model.NewEvent(owner, tokenActor), tokens, opts...)
}

// Open restores the actor from store, or initialises and saves a fresh one
// when the store is empty.
func Open(ctx context.Context, store Store, owner, tokenActor model.ActorID, tokens token.Client, opts ...Option) (*Actor, error) {
	ev, found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load event state: %w", err)
	}
	opts = append(opts, WithStore(store))
	if found {
		a := newActor(ev, tokens, opts...)
		a.log.Infof("ledger: restored event %d in phase %s", ev.EventID, ev.Phase)
		return a, nil
	}
	a := New(owner, tokenActor, tokens, opts...)
	if err := store.Save(ctx, a.State()); err != nil {
		return nil, fmt.Errorf("save initial state: %w", err)
	}
	a.log.Infof("ledger: initialised by %s with token actor %s", owner, tokenActor)
	return a, nil
}

func newActor(ev *model.Event, tokens token.Client, opts ...Option) *Actor {
	a := &Actor{
		turn:   make(chan struct{}, 1),
		event:  ev,
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = log.New("ledger")
	}
	return a
}

// acquire waits for the actor's turn.  The wait, not the operation, is
// bounded by ctx.
func (a *Actor) acquire(ctx context.Context) error {
	select {
	case a.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) release() { <-a.turn }

// CreateInput carries the fields of a new event.
type CreateInput struct {
	Creator      model.ActorID
	Name         string
	Description  string
	TotalTickets uint64
	Date         uint64
}

// Create registers the event and opens ticket sales.  Only one event ever
// exists per actor, so Create fails once the event left the uninitialised
// phase.
func (a *Actor) Create(ctx context.Context, in CreateInput) (model.Created, error) {
	if err := a.acquire(ctx); err != nil {
		return model.Created{}, err
	}
	ack, err := a.create(ctx, in)
	a.release()
	if err != nil {
		return model.Created{}, err
	}
	a.publish(ctx, in.Creator, ack)
	return ack, nil
}

func (a *Actor) create(ctx context.Context, in CreateInput) (model.Created, error) {
	a.mu.Lock()
	e := a.event
	if e.Phase != model.PhaseUninitialized {
		a.mu.Unlock()
		return model.Created{}, ErrEventExists
	}
	e.Creator = in.Creator
	e.EventID = e.NextPositionID
	e.TicketClassID = e.EventID
	e.Name = in.Name
	e.Description = in.Description
	e.TotalTickets = in.TotalTickets
	e.TicketsRemaining = in.TotalTickets
	e.Date = in.Date
	e.Phase = model.PhaseSelling
	ack := model.Created{
		Creator:      e.Creator,
		EventID:      e.EventID,
		TotalTickets: e.TotalTickets,
		Date:         e.Date,
	}
	snap := e.Clone()
	a.mu.Unlock()

	a.log.Infof("ledger: event %d %q created by %s with %d tickets", ack.EventID, in.Name, in.Creator, in.TotalTickets)
	a.persist(ctx, snap)
	return ack, nil
}

// persist saves a snapshot.  The in-memory event stays authoritative, so a
// failed save is logged and the next committed change retries it.
func (a *Actor) persist(ctx context.Context, snap *model.Event) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		a.log.Errorf("ledger: save state: %v", err)
	}
}

// publish hands ack to the notifier.  It runs after the turn is released
// so a slow broker never delays the next operation.
func (a *Actor) publish(ctx context.Context, caller model.ActorID, ack any) {
	if a.notify != nil {
		a.notify.Notify(context.WithoutCancel(ctx), caller, ack)
	}
}
