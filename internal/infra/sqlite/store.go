package sqlite

import (
	"context"
	"fmt"
	"log"

	"github.com/kumanofoo/tako/internal/domain"
)

// ─── Accounts ───────────────────────────────────────────────────────────────

// OpenAccount creates an account with the seed-money balance. Returns
// ErrAccountExists if the owner ID is taken; no row is written in that case.
func (d *DB) OpenAccount(ctx context.Context, ownerID, name string) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		_, err := d.q(ctx).ExecContext(ctx,
			`INSERT INTO accounts (owner_id, name, badge, timestamp)
			 VALUES (?, ?, 0, `+sqlNow+`)`,
			ownerID, name)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, ownerID)
		}
		if err != nil {
			return fmt.Errorf("open account: %w", err)
		}
		_, err = d.q(ctx).ExecContext(ctx,
			`INSERT INTO balances (owner_id, balance, timestamp)
			 VALUES (?, ?, `+sqlNow+`)`,
			ownerID, d.params.SeedMoney)
		if err != nil {
			return fmt.Errorf("seed balance: %w", err)
		}
		return nil
	})
}

// DeleteAccount removes the account and every row it owns, including its
// season records. Returns ErrNoAccount if the owner never joined.
func (d *DB) DeleteAccount(ctx context.Context, ownerID string) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		if _, err := d.Account(ctx, ownerID); err != nil {
			return err
		}
		for _, table := range []string{"records", "transactions", "balances", "accounts"} {
			_, err := d.q(ctx).ExecContext(ctx,
				`DELETE FROM `+table+` WHERE owner_id = ?`, ownerID)
			if err != nil {
				return fmt.Errorf("delete account from %s: %w", table, err)
			}
		}
		return nil
	})
}

// ChangeName updates the display name. The name must be non-empty and the
// account must exist; nothing is written otherwise.
func (d *DB) ChangeName(ctx context.Context, ownerID, name string) error {
	if name == "" {
		return domain.ErrEmptyName
	}
	return d.Transact(ctx, func(ctx context.Context) error {
		res, err := d.q(ctx).ExecContext(ctx,
			`UPDATE accounts SET name = ? WHERE owner_id = ?`,
			name, ownerID)
		if err != nil {
			return fmt.Errorf("change name: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("change name: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrNoAccount, ownerID)
		}
		return nil
	})
}

// Account fetches the identity row. Returns ErrNoAccount if absent and
// ErrMultipleRows if the owner key ever fans out, which only a corrupted
// database can produce.
func (d *DB) Account(ctx context.Context, ownerID string) (*domain.Account, error) {
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT owner_id, name, badge, timestamp FROM accounts WHERE owner_id = ?`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get account: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrNoAccount, ownerID)
	}
	var a domain.Account
	var ts string
	if err := rows.Scan(&a.OwnerID, &a.Name, &a.Badge, &ts); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if rows.Next() {
		return nil, fmt.Errorf("%w: accounts %s", domain.ErrMultipleRows, ownerID)
	}
	a.Timestamp = parseInstant(ts)
	return &a, nil
}

// ─── Balances ───────────────────────────────────────────────────────────────

// Condition fetches the owner's balance row. Returns ErrNoAccount if
// absent and ErrMultipleRows on a fanned-out owner key.
func (d *DB) Condition(ctx context.Context, ownerID string) (*domain.Condition, error) {
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT owner_id, balance, timestamp FROM balances WHERE owner_id = ?`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("get condition: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get condition: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrNoAccount, ownerID)
	}
	var c domain.Condition
	var ts string
	if err := rows.Scan(&c.OwnerID, &c.Balance, &ts); err != nil {
		return nil, fmt.Errorf("get condition: %w", err)
	}
	if rows.Next() {
		return nil, fmt.Errorf("%w: balances %s", domain.ErrMultipleRows, ownerID)
	}
	c.Timestamp = parseInstant(ts)
	return &c, nil
}

// ConditionAll returns every owner's name and balance, richest first.
func (d *DB) ConditionAll(ctx context.Context) ([]domain.OwnerBalance, error) {
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT a.name, b.balance
		 FROM balances b JOIN accounts a ON b.owner_id = a.owner_id
		 ORDER BY b.balance DESC, a.name`)
	if err != nil {
		return nil, fmt.Errorf("get all conditions: %w", err)
	}
	defer rows.Close()

	var all []domain.OwnerBalance
	for rows.Next() {
		var ob domain.OwnerBalance
		if err := rows.Scan(&ob.Name, &ob.Balance); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		all = append(all, ob)
	}
	return all, rows.Err()
}

// ─── Orders ─────────────────────────────────────────────────────────────────

// PlaceOrder records an order of quantity units for the given market date,
// replacing any pending order for the same (owner, date). Negative
// quantities clamp to zero. Once the order has left the ordered state it is
// frozen: the call is dropped and 0 is returned, without error.
func (d *DB) PlaceOrder(ctx context.Context, ownerID, date string, quantity int64) (int64, error) {
	if quantity < 0 {
		quantity = 0
	}
	var placed int64
	err := d.Transact(ctx, func(ctx context.Context) error {
		var status string
		err := d.q(ctx).QueryRowContext(ctx,
			`SELECT status FROM transactions WHERE owner_id = ? AND date = ?`,
			ownerID, date).Scan(&status)
		if err != nil && !notFound(err) {
			return fmt.Errorf("check order status: %w", err)
		}
		if err == nil && status != domain.OrderOrdered {
			log.Printf("[sqlite] cannot change %q order: %s, %s", status, ownerID, date)
			return nil
		}
		_, err = d.q(ctx).ExecContext(ctx,
			`REPLACE INTO transactions
			     (owner_id, date, quantity_ordered, cost, quantity_in_stock,
			      sales, status, timestamp)
			 VALUES (?, ?, ?, 0, 0, 0, 'ordered', `+sqlNow+`)`,
			ownerID, date, quantity)
		if err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		placed = quantity
		return nil
	})
	return placed, err
}

const transactionColumns = `
	b.owner_id, a.name, b.balance,
	t.date, t.quantity_ordered, t.cost, t.quantity_in_stock, t.sales,
	t.status, t.timestamp,
	m.area, m.sales, m.weather`

const transactionJoins = `
	FROM balances b
	JOIN accounts a ON b.owner_id = a.owner_id
	JOIN transactions t ON b.owner_id = t.owner_id
	JOIN markets m ON t.date = m.date`

// Transactions returns all of the owner's orders joined with the account,
// balance and market rows, oldest first.
func (d *DB) Transactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT`+transactionColumns+transactionJoins+`
		 WHERE b.owner_id = ?
		 ORDER BY t.date`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// TransactionByDate returns the owner's order for one market date.
// Absence is not an error; it returns (nil, nil).
func (d *DB) TransactionByDate(ctx context.Context, ownerID, date string) (*domain.Transaction, error) {
	row := d.q(ctx).QueryRowContext(ctx,
		`SELECT`+transactionColumns+transactionJoins+`
		 WHERE b.owner_id = ? AND t.date = ?`,
		ownerID, date)
	tx, err := scanTransaction(row)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var ts string
	err := s.Scan(
		&tx.OwnerID, &tx.Name, &tx.Balance,
		&tx.Date, &tx.QuantityOrdered, &tx.Cost, &tx.QuantityInStock, &tx.Sales,
		&tx.Status, &ts,
		&tx.Area, &tx.MaxSales, &tx.Weather)
	if err != nil {
		if notFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Timestamp = parseInstant(ts)
	return &tx, nil
}
