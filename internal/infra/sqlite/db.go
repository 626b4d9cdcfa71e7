// Package sqlite is the ledger store: durable, transactional storage of
// accounts, balances, per-cycle orders, market definitions and season
// records. It is the sole owner of all five record families; settlement
// transitions mutate rows only through this package.
//
// Concurrency model: one exclusive write lock per database file. A
// transaction takes the lock with BEGIN EXCLUSIVE and retries on contention
// according to the caller's RetryPolicy. Transactions are carried in the
// context; opening one while already inside one is a no-op join, and only
// the outermost boundary commits or rolls back.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/takotime"
)

// ─── Retry Policy ───────────────────────────────────────────────────────────

// RetryPolicy bounds the wait for the exclusive write lock.
// Retries < 0 means retry forever (daemon policy); 0 means fail on first
// contention. Backoff is the fixed sleep between attempts.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// DefaultRetryPolicy suits interactive callers: a bounded wait, then
// ErrDatabaseBusy surfaces to the caller.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 6, Backoff: 5 * time.Second}
}

// DaemonRetryPolicy waits forever. Used by the scheduler loop, which has
// nothing better to do than wait for the lock.
func DaemonRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: -1, Backoff: 5 * time.Second}
}

// ─── DB Handle ──────────────────────────────────────────────────────────────

// DB is the ledger store handle. It is passed explicitly to every component
// at construction; there is no process-wide connection state.
type DB struct {
	db     *sql.DB
	params domain.Params
	policy RetryPolicy
}

// Open opens (creating if absent) the ledger database at path.
func Open(path string, params domain.Params, policy RetryPolicy) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	return &DB{db: db, params: params, policy: policy}, nil
}

// Close releases the underlying pool.
func (d *DB) Close() error { return d.db.Close() }

// Params returns the market economy this store was opened with.
func (d *DB) Params() domain.Params { return d.params }

// WithRetry returns a handle sharing the same database but applying a
// different lock-retry policy. The policy is per caller, not global.
func (d *DB) WithRetry(policy RetryPolicy) *DB {
	return &DB{db: d.db, params: d.params, policy: policy}
}

// ─── Transactions ───────────────────────────────────────────────────────────

type txKey struct{}

// Transact runs fn inside an exclusive transaction. If ctx already carries
// a transaction, fn joins it and the outer boundary decides the outcome.
// On error from fn the transaction rolls back; partial writes are never
// observable.
func (d *DB) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Conn); ok {
		return fn(ctx)
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := d.beginExclusive(ctx, conn); err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, conn)
	if err := fn(txCtx); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			log.Printf("[sqlite] rollback failed: %v", rbErr)
		}
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// beginExclusive takes the global write lock, retrying per policy.
func (d *DB) beginExclusive(ctx context.Context, conn *sql.Conn) error {
	retry := d.policy.Retries
	for {
		_, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE")
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return fmt.Errorf("begin exclusive: %w", err)
		}
		if retry == 0 {
			log.Printf("[sqlite] give up waiting for write lock: %v", err)
			return fmt.Errorf("%w: %v", domain.ErrDatabaseBusy, err)
		}
		if retry > 0 {
			retry--
		}
		log.Printf("[sqlite] waiting for write lock (%d): %v", retry, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.policy.Backoff):
		}
	}
}

// queryer is either the transaction's connection or the pool.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) q(ctx context.Context) queryer {
	if conn, ok := ctx.Value(txKey{}).(*sql.Conn); ok {
		return conn
	}
	return d.db
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") || strings.Contains(s, "database is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// migrations returns the schema statements. Each string is one SQL
// statement; SQLite executes one at a time.
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			owner_id  TEXT PRIMARY KEY,
			name      TEXT NOT NULL,
			badge     INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS balances (
			owner_id  TEXT PRIMARY KEY,
			balance   INTEGER NOT NULL,
			timestamp TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			owner_id          TEXT NOT NULL,
			date              TEXT NOT NULL,
			quantity_ordered  INTEGER NOT NULL DEFAULT 0,
			cost              INTEGER NOT NULL DEFAULT 0,
			quantity_in_stock INTEGER NOT NULL DEFAULT 0,
			sales             INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL,
			timestamp         TEXT NOT NULL,
			PRIMARY KEY (owner_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date, status)`,

		`CREATE TABLE IF NOT EXISTS markets (
			date              TEXT PRIMARY KEY,
			area              TEXT NOT NULL,
			opening_datetime  TEXT NOT NULL,
			closing_datetime  TEXT NOT NULL,
			cost_price        INTEGER NOT NULL,
			selling_price     INTEGER NOT NULL,
			seed_money        INTEGER NOT NULL,
			status            TEXT NOT NULL,
			sales             INTEGER NOT NULL DEFAULT 0,
			weather           TEXT NOT NULL DEFAULT '',
			timestamp         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_markets_status ON markets(status, date)`,

		`CREATE TABLE IF NOT EXISTS records (
			date      TEXT NOT NULL,
			owner_id  TEXT NOT NULL,
			balance   INTEGER NOT NULL,
			target    INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (date, owner_id)
		)`,
	}
}

// CreateSchema creates all tables if absent. Safe to call on every start.
func (d *DB) CreateSchema(ctx context.Context) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		for _, stmt := range migrations() {
			if _, err := d.q(ctx).ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return nil
	})
}

// ─── Instant Helpers ────────────────────────────────────────────────────────

// sqlNow is the stored-timestamp expression, millisecond UTC.
const sqlNow = `strftime('%Y-%m-%dT%H:%M:%f', 'now')`

// parseInstant parses stored UTC instants with or without fractional
// seconds. A zero time means the stored value was malformed.
func parseInstant(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000", takotime.InstantLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// notFound reports whether err is the no-rows condition.
func notFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
