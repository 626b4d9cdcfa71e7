package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// ErrAccountExists is returned when opening an account whose owner ID
	// is already taken. Callers decide rename-vs-ignore.
	ErrAccountExists = errors.New("account already exists")

	// ErrNoAccount distinguishes "owner never joined" from an owner with
	// zero balance.
	ErrNoAccount = errors.New("account does not exist")

	// ErrMultipleRows means a unique key produced more than one row.
	// This is data corruption, not a handled condition.
	ErrMultipleRows = errors.New("multiple rows for unique key")

	// ErrDatabaseBusy means the write-lock retry budget was exhausted.
	// Retryable by the caller.
	ErrDatabaseBusy = errors.New("database is busy")

	// ErrNoMarket means no pending market exists to order against.
	ErrNoMarket = errors.New("no market scheduled")

	// ErrEmptyName rejects an empty display name before any mutation.
	ErrEmptyName = errors.New("name is empty")

	// ErrNoDemand means the demand source could not supply today's
	// sales cap. Retryable; the scheduler backs off without advancing.
	ErrNoDemand = errors.New("demand data unavailable")
)
