// Package market runs the daily cycle: the settlement engine that opens and
// closes markets atomically, and the scheduler that fires those transitions
// at the cycle boundaries.
package market

import (
	"context"
	"fmt"
	"log"

	"github.com/kumanofoo/tako/internal/infra/sqlite"
)

// ─── Settlement Engine ──────────────────────────────────────────────────────

// Engine applies whole-cycle transitions. Every public method is one
// transaction: either all of its ledger effects land or none do.
type Engine struct {
	db *sqlite.DB
}

func NewEngine(db *sqlite.DB) *Engine {
	return &Engine{db: db}
}

// Open runs the opening transition for the date: any stale earlier cycles
// are voided and refunded, then every pending order is fulfilled against
// its owner's balance and the market opens.
func (e *Engine) Open(ctx context.Context, date string) error {
	err := e.db.Transact(ctx, func(ctx context.Context) error {
		if err := e.db.CancelAndRefund(ctx, date); err != nil {
			return err
		}
		return e.db.FulfillOrders(ctx, date)
	})
	if err != nil {
		return fmt.Errorf("open market %s: %w", date, err)
	}
	marketOpens.Inc()
	log.Printf("[market] open %s", date)
	return nil
}

// Close settles the date at the demand cap and records the weather label.
// If any owner's balance reached the target the season ends in the same
// transaction: balances are snapshotted, winners get a badge, everyone
// restarts from the seed money. Reports whether a season ended.
func (e *Engine) Close(ctx context.Context, date string, maxSales int64, weather string) (bool, error) {
	var won bool
	err := e.db.Transact(ctx, func(ctx context.Context) error {
		if err := e.db.CancelAndRefund(ctx, date); err != nil {
			return err
		}
		if err := e.db.SettleOrders(ctx, date, maxSales); err != nil {
			return err
		}
		var err error
		won, err = e.db.DetectWinnerAndRestart(ctx, date)
		if err != nil {
			return err
		}
		if won {
			if err := e.db.MarkSeasonRestart(ctx, date); err != nil {
				return err
			}
		}
		if weather != "" {
			if err := e.db.SetWeather(ctx, date, weather); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("close market %s: %w", date, err)
	}
	marketCloses.Inc()
	if won {
		seasonRestarts.Inc()
		log.Printf("[market] close %s: season ended, market restarts", date)
	} else {
		log.Printf("[market] close %s: max sales %d, weather %s", date, maxSales, weather)
	}
	return won, nil
}

// CancelStale voids and refunds everything strictly before the date.
func (e *Engine) CancelStale(ctx context.Context, date string) error {
	if err := e.db.CancelAndRefund(ctx, date); err != nil {
		return fmt.Errorf("cancel stale before %s: %w", date, err)
	}
	staleCancels.Inc()
	return nil
}
