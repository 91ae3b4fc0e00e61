package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/iliyamo/event-ticket-ledger/internal/model"
)

// EventStateRepo persists the ledger actor's event as a single JSON
// document in the ledger_state table.  Each actor instance owns one row
// keyed by its own address, so several ledgers can share a database.  The
// phase and a few headline fields are denormalised into columns for
// operators; the document stays the source of truth.
type EventStateRepo struct {
    db    *sql.DB
    actor model.ActorID
}

// NewEventStateRepo returns a repository for the actor's row.
func NewEventStateRepo(db *sql.DB, actor model.ActorID) *EventStateRepo {
    return &EventStateRepo{db: db, actor: actor}
}

const ledgerStateDDL = `CREATE TABLE IF NOT EXISTS ledger_state (
    actor_id          CHAR(64)        NOT NULL PRIMARY KEY,
    event_id          BIGINT UNSIGNED NOT NULL DEFAULT 0,
    phase             VARCHAR(16)     NOT NULL,
    tickets_remaining BIGINT UNSIGNED NOT NULL DEFAULT 0,
    state             JSON            NOT NULL,
    updated_at        DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates the ledger_state table when it is missing.
func (r *EventStateRepo) Migrate(ctx context.Context) error {
    if _, err := r.db.ExecContext(ctx, ledgerStateDDL); err != nil {
        return fmt.Errorf("create ledger_state: %w", err)
    }
    return nil
}

// Load reads the actor's event.  found is false when no row exists yet.
func (r *EventStateRepo) Load(ctx context.Context) (*model.Event, bool, error) {
    var raw []byte
    err := r.db.QueryRowContext(ctx,
        `SELECT state FROM ledger_state WHERE actor_id = ? LIMIT 1`,
        r.actor.String(),
    ).Scan(&raw)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, false, nil
    }
    if err != nil {
        return nil, false, err
    }
    ev, err := decodeEvent(raw)
    if err != nil {
        return nil, false, err
    }
    return ev, true, nil
}

// Save upserts the actor's event.
func (r *EventStateRepo) Save(ctx context.Context, ev *model.Event) error {
    raw, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("encode event state: %w", err)
    }
    _, err = r.db.ExecContext(ctx,
        `INSERT INTO ledger_state (actor_id, event_id, phase, tickets_remaining, state)
         VALUES (?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE
            event_id = VALUES(event_id),
            phase = VALUES(phase),
            tickets_remaining = VALUES(tickets_remaining),
            state = VALUES(state)`,
        r.actor.String(), ev.EventID, string(ev.Phase), ev.TicketsRemaining, raw,
    )
    return err
}

// decodeEvent parses a stored document and restores the empty collections
// that JSON null would otherwise leave nil.
func decodeEvent(raw []byte) (*model.Event, error) {
    var ev model.Event
    if err := json.Unmarshal(raw, &ev); err != nil {
        return nil, fmt.Errorf("decode event state: %w", err)
    }
    if ev.Buyers == nil {
        ev.Buyers = []model.ActorID{}
    }
    if ev.Positions == nil {
        ev.Positions = map[model.ActorID]map[uint64]*model.TicketMetadata{}
    }
    return &ev, nil
}
