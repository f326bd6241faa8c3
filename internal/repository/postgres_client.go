package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"contact-intake/internal/domain"
)

const uniqueViolation = "23505"

// Schema creates the contact_messages table used by PgClient.
const Schema = `CREATE TABLE IF NOT EXISTS contact_messages (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL,
	message    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at BIGINT NOT NULL
)`

// pgExecer is the subset of *pgxpool.Pool used by PgClient.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPool opens a PostgreSQL pool and checks that it is reachable.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("repository: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository: ping: %w", err)
	}
	return pool, nil
}

// PgClient stores contact messages in PostgreSQL.
type PgClient struct {
	db  pgExecer
	now func() time.Time
}

// NewPg creates a PgClient. *pgxpool.Pool satisfies pgExecer.
func NewPg(db pgExecer) (*PgClient, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &PgClient{db: db, now: time.Now}, nil
}

// EnsureSchema creates the contact_messages table if it is missing.
func (c *PgClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("repository: EnsureSchema: %w", err)
	}
	return nil
}

// Save inserts msg and stamps msg.CreatedAt.
func (c *PgClient) Save(ctx context.Context, msg *domain.ContactMessage) (bool, error) {
	if msg == nil || msg.ID == "" {
		return false, errors.New("repository: Save: message id is required")
	}
	if !msg.Category.Valid() {
		return false, fmt.Errorf("repository: Save: invalid category %q", msg.Category)
	}
	data, err := encodeData(msg.Data)
	if err != nil {
		return false, fmt.Errorf("repository: Save: %w", err)
	}
	createdAt := c.now().UTC()

	tag, err := c.db.Exec(ctx,
		`INSERT INTO contact_messages (id, category, email, name, message, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.Category.String(), msg.Email, msg.Name, msg.Message, data, createdAt.Unix(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, fmt.Errorf("repository: Save %s: %w", msg.ID, ErrDuplicateID)
		}
		return false, fmt.Errorf("repository: Save: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, fmt.Errorf("repository: Save: expected 1 row, got %d", tag.RowsAffected())
	}
	msg.CreatedAt = createdAt
	return true, nil
}
