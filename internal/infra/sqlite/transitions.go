package sqlite

import (
	"context"
	"fmt"

	"github.com/kumanofoo/tako/internal/domain"
)

// ─── Settlement Transitions ─────────────────────────────────────────────────
// Bulk state transitions over a whole market date. Each method runs inside
// a transaction (joining the caller's if present) so a crash can never leave
// a debit without its matching order flip.

// FulfillOrders converts every pending order on the date into stock and
// debits the cost, then opens the market. Orders the balance fully covers
// are fulfilled as placed; the rest are clamped down to what the balance
// buys at the cost price, truncating. Balances never go negative here.
func (d *DB) FulfillOrders(ctx context.Context, date string) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		q := d.q(ctx)
		cost := d.params.CostPrice

		// Covered in full.
		_, err := q.ExecContext(ctx, `
			UPDATE transactions
			SET cost = quantity_ordered * ?1,
			    quantity_in_stock = quantity_ordered,
			    status = 'in_stock',
			    timestamp = `+sqlNow+`
			WHERE date = ?2
			  AND status = 'ordered'
			  AND (SELECT balance FROM balances b
			       WHERE b.owner_id = transactions.owner_id)
			      - quantity_ordered * ?1 >= 0`,
			cost, date)
		if err != nil {
			return fmt.Errorf("fulfill covered orders: %w", err)
		}

		// Clamped to the balance.
		_, err = q.ExecContext(ctx, `
			UPDATE transactions
			SET cost = (SELECT balance FROM balances b
			            WHERE b.owner_id = transactions.owner_id) / ?1 * ?1,
			    quantity_in_stock = (SELECT balance FROM balances b
			                         WHERE b.owner_id = transactions.owner_id) / ?1,
			    status = 'in_stock',
			    timestamp = `+sqlNow+`
			WHERE date = ?2
			  AND status = 'ordered'
			  AND (SELECT balance FROM balances b
			       WHERE b.owner_id = transactions.owner_id)
			      - quantity_ordered * ?1 < 0`,
			cost, date)
		if err != nil {
			return fmt.Errorf("fulfill clamped orders: %w", err)
		}

		// Debit what the stock cost.
		_, err = q.ExecContext(ctx, `
			UPDATE balances
			SET balance = balance - (SELECT t.cost FROM transactions t
			                         WHERE t.owner_id = balances.owner_id
			                           AND t.date = ?1),
			    timestamp = `+sqlNow+`
			WHERE owner_id IN (SELECT owner_id FROM transactions WHERE date = ?1)`,
			date)
		if err != nil {
			return fmt.Errorf("debit stock cost: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE markets
			SET status = 'open', timestamp = `+sqlNow+`
			WHERE date = ?`,
			date)
		if err != nil {
			return fmt.Errorf("open market: %w", err)
		}
		return nil
	})
}

// SettleOrders closes the date: every in_stock order sells
// min(stock, maxSales) units at the selling price, the proceeds are
// credited, orders still merely ordered are canceled, and the open market
// row is closed with the day's demand recorded.
func (d *DB) SettleOrders(ctx context.Context, date string, maxSales int64) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		q := d.q(ctx)

		_, err := q.ExecContext(ctx, `
			UPDATE transactions
			SET sales = min(quantity_in_stock, ?1) * ?2,
			    status = 'closed',
			    timestamp = `+sqlNow+`
			WHERE date = ?3 AND status = 'in_stock'`,
			maxSales, d.params.SellingPrice, date)
		if err != nil {
			return fmt.Errorf("close orders: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE balances
			SET balance = balance + (SELECT t.sales FROM transactions t
			                         WHERE t.owner_id = balances.owner_id
			                           AND t.date = ?1),
			    timestamp = `+sqlNow+`
			WHERE owner_id IN (SELECT owner_id FROM transactions WHERE date = ?1)`,
			date)
		if err != nil {
			return fmt.Errorf("credit sales: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE transactions
			SET status = 'canceled', timestamp = `+sqlNow+`
			WHERE date = ? AND status = 'ordered'`,
			date)
		if err != nil {
			return fmt.Errorf("cancel unfulfilled orders: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE markets
			SET status = 'closed', sales = ?, timestamp = `+sqlNow+`
			WHERE status = 'open' AND date = ?`,
			maxSales, date)
		if err != nil {
			return fmt.Errorf("close market: %w", err)
		}
		return nil
	})
}

// DetectWinnerAndRestart checks whether any balance reached the target.
// With no winner it writes nothing and reports false. Otherwise, in the
// same transaction, it snapshots every owner's balance into the season
// records, awards a badge to each winner, and resets all balances to the
// seed money.
func (d *DB) DetectWinnerAndRestart(ctx context.Context, date string) (bool, error) {
	var won bool
	err := d.Transact(ctx, func(ctx context.Context) error {
		q := d.q(ctx)

		var winners int64
		err := q.QueryRowContext(ctx,
			`SELECT count(*) FROM balances WHERE balance >= ?`,
			d.params.Target).Scan(&winners)
		if err != nil {
			return fmt.Errorf("count winners: %w", err)
		}
		if winners == 0 {
			return nil
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO records (date, owner_id, balance, target, timestamp)
			SELECT ?, owner_id, balance, ?, `+sqlNow+`
			FROM balances`,
			date, d.params.Target)
		if err != nil {
			return fmt.Errorf("snapshot season: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE accounts
			SET badge = badge + 1
			WHERE owner_id IN (SELECT owner_id FROM records
			                   WHERE date = ? AND balance >= ?)`,
			date, d.params.Target)
		if err != nil {
			return fmt.Errorf("award badges: %w", err)
		}

		_, err = q.ExecContext(ctx,
			`UPDATE balances SET balance = ?`, d.params.SeedMoney)
		if err != nil {
			return fmt.Errorf("reset balances: %w", err)
		}

		won = true
		return nil
	})
	return won, err
}

// MarkSeasonRestart relabels the date's closed orders as the ones that
// ended a season, so histories show where the reset happened.
func (d *DB) MarkSeasonRestart(ctx context.Context, date string) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		_, err := d.q(ctx).ExecContext(ctx, `
			UPDATE transactions
			SET status = ?, timestamp = `+sqlNow+`
			WHERE date = ? AND status = 'closed'`,
			domain.OrderRestarted, date)
		if err != nil {
			return fmt.Errorf("mark season restart: %w", err)
		}
		return nil
	})
}

// CancelAndRefund voids everything strictly before the date: in_stock
// orders are refunded at cost, pending and in_stock orders become canceled,
// and markets that never closed become canceled. Already-settled rows are
// untouched, so running it again is a no-op.
func (d *DB) CancelAndRefund(ctx context.Context, date string) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		q := d.q(ctx)

		_, err := q.ExecContext(ctx, `
			UPDATE balances
			SET balance = balance + (SELECT sum(t.cost) FROM transactions t
			                         WHERE t.owner_id = balances.owner_id
			                           AND t.status = 'in_stock'
			                           AND t.date < ?1),
			    timestamp = `+sqlNow+`
			WHERE owner_id IN (SELECT owner_id FROM transactions
			                   WHERE status = 'in_stock' AND date < ?1)`,
			date)
		if err != nil {
			return fmt.Errorf("refund stale stock: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE transactions
			SET status = 'canceled', timestamp = `+sqlNow+`
			WHERE (status = 'in_stock' OR status = 'ordered') AND date < ?`,
			date)
		if err != nil {
			return fmt.Errorf("cancel stale orders: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE markets
			SET status = 'canceled', timestamp = `+sqlNow+`
			WHERE status <> 'closed' AND status <> 'canceled' AND date < ?`,
			date)
		if err != nil {
			return fmt.Errorf("cancel stale markets: %w", err)
		}
		return nil
	})
}
