package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticket-ledger/internal/model"
	"github.com/iliyamo/event-ticket-ledger/internal/utils"
)

// User mirrors the 'users' table.  ActorID is the identity the account acts
// as on the ledger; it is derived once at registration and never changes.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	ActorID      model.ActorID
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const usersDDL = `CREATE TABLE IF NOT EXISTS users (
    id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    email         VARCHAR(255)    NOT NULL UNIQUE,
    password_hash VARCHAR(255)    NOT NULL,
    actor_id      CHAR(64)        NOT NULL UNIQUE,
    is_active     BOOLEAN         NOT NULL DEFAULT TRUE,
    created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates the users table when it is missing.
func (r *UserRepo) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, usersDDL); err != nil {
		return fmt.Errorf("create users: %w", err)
	}
	return nil
}

// Create inserts a user and returns it.  The actor id is derived from the
// normalised email, so re-registering the same address after deletion
// yields the same ledger identity.
func (r *UserRepo) Create(ctx context.Context, email, password string, cost int) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return User{}, err
	}
	actor := model.ActorIDFromSeed("account:" + email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, actor_id) VALUES (?,?,?)",
		email, hash, actor.String())
	if err != nil {
		if isDuplicate(err) {
			return User{}, ErrEmailExists
		}
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{ID: uint64(id), Email: email, PasswordHash: hash, ActorID: actor, IsActive: true}, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,actor_id,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,actor_id,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id))
}

func (r *UserRepo) scanOne(row *sql.Row) (User, error) {
	var (
		u     User
		actor string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &actor, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	id, err := model.ParseActorID(actor)
	if err != nil {
		return User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.ActorID = id
	return u, nil
}

// isDuplicate reports a unique key violation (ER_DUP_ENTRY).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
