package approval

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/uptrace/bun"
)

// Schema is the DDL for the record store tables. It is written to run on
// SQLite and Postgres.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS pending_registrations (
		uid TEXT NOT NULL PRIMARY KEY,
		email TEXT,
		role TEXT NOT NULL,
		payload TEXT,
		provider TEXT,
		status TEXT NOT NULL,
		rejection_reason TEXT NULL,
		escalation_requested_at TIMESTAMP NULL,
		created_at TIMESTAMP NULL,
		reviewed_at TIMESTAMP NULL,
		approved_at TIMESTAMP NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_pending_registrations_status ON pending_registrations (status, created_at);`,
	`CREATE TABLE IF NOT EXISTS users (
		uid TEXT NOT NULL PRIMARY KEY,
		email TEXT,
		role TEXT,
		registration_payload TEXT,
		registration_completed BOOLEAN NOT NULL DEFAULT FALSE,
		registration_completed_at TIMESTAMP NULL,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		approved_at TIMESTAMP NULL
	);`,
	`CREATE TABLE IF NOT EXISTS approval_intents (
		id TEXT NOT NULL PRIMARY KEY,
		uid TEXT NOT NULL,
		actor_uid TEXT,
		role TEXT,
		step TEXT NOT NULL,
		created_at TIMESTAMP NULL,
		updated_at TIMESTAMP NULL
	);`,
}

// StoreOption customizes the bun record store.
type StoreOption func(*BunStore)

// WithStoreClock injects the clock used for server assigned timestamps.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *BunStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// BunStore implements RecordStore on top of bun.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ RecordStore = (*BunStore)(nil)

func NewBunStore(db *bun.DB, opts ...StoreOption) *BunStore {
	s := &BunStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateSchema creates the record store tables when missing.
func (s *BunStore) CreateSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return internalError(err, "failed to create schema")
		}
	}
	return nil
}

func (s *BunStore) Validate() error {
	if s.db == nil {
		return errors.New("record store db should be initialized")
	}
	return nil
}

func (s *BunStore) MustValidate() {
	if err := s.Validate(); err != nil {
		log.Panic(err)
	}
}

func (s *BunStore) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.db.RunInTx(ctx, opts, f)
	}
}

func (s *BunStore) stamp() *time.Time {
	n := s.now()
	return &n
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
