package sqlite

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/takotime"
)

// ─── Market Rows ────────────────────────────────────────────────────────────

const marketColumns = `
	date, area, opening_datetime, closing_datetime,
	cost_price, selling_price, seed_money,
	status, sales, weather, timestamp`

func scanMarket(s scanner) (*domain.Market, error) {
	var m domain.Market
	var opening, closing, ts string
	err := s.Scan(
		&m.Date, &m.Area, &opening, &closing,
		&m.CostPrice, &m.SellingPrice, &m.SeedMoney,
		&m.Status, &m.Sales, &m.Weather, &ts)
	if err != nil {
		if notFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan market: %w", err)
	}
	m.Opening = parseInstant(opening)
	m.Closing = parseInstant(closing)
	m.Timestamp = parseInstant(ts)
	return &m, nil
}

// Market returns the cycle for one date. Returns ErrNoMarket if absent.
func (d *DB) Market(ctx context.Context, date string) (*domain.Market, error) {
	row := d.q(ctx).QueryRowContext(ctx,
		`SELECT`+marketColumns+` FROM markets WHERE date = ?`, date)
	m, err := scanMarket(row)
	if notFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoMarket, date)
	}
	return m, err
}

// MarketHistory returns every cycle, newest first.
func (d *DB) MarketHistory(ctx context.Context) ([]domain.Market, error) {
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT`+marketColumns+` FROM markets ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("get market history: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

// NextMarket returns the pending market visible from the given date: the
// latest coming_soon cycle on or after it. When cycles for several future
// dates exist the farthest one is reported, which matches how announcements
// have always worked here. Returns ErrNoMarket if nothing is pending.
func (d *DB) NextMarket(ctx context.Context, date string) (*domain.Market, error) {
	row := d.q(ctx).QueryRowContext(ctx,
		`SELECT`+marketColumns+`
		 FROM markets
		 WHERE date >= ? AND status = 'coming_soon'
		 ORDER BY date DESC
		 LIMIT 1`,
		date)
	m, err := scanMarket(row)
	if notFound(err) {
		return nil, fmt.Errorf("%w: nothing scheduled from %s", domain.ErrNoMarket, date)
	}
	return m, err
}

// NextEvent returns the earliest market whose opening (coming_soon) or
// closing (open) instant has not yet passed. Returns ErrNoMarket when no
// cycle has a boundary ahead of now.
func (d *DB) NextEvent(ctx context.Context, now time.Time) (*domain.Event, error) {
	nowStr := takotime.UTCString(now)
	var e domain.Event
	var opening, closing string
	err := d.q(ctx).QueryRowContext(ctx,
		`SELECT date, opening_datetime, closing_datetime
		 FROM markets
		 WHERE (opening_datetime >= ? AND status = 'coming_soon')
		    OR (closing_datetime >= ? AND status = 'open')
		 ORDER BY date
		 LIMIT 1`,
		nowStr, nowStr).Scan(&e.Date, &opening, &closing)
	if notFound(err) {
		return nil, domain.ErrNoMarket
	}
	if err != nil {
		return nil, fmt.Errorf("get next event: %w", err)
	}
	e.Opening = parseInstant(opening)
	e.Closing = parseInstant(closing)
	return &e, nil
}

// CreateMarket schedules a coming_soon cycle at the area for the date,
// with the opening window and prices taken from the store's params.
// A date that already has a cycle is left untouched.
func (d *DB) CreateMarket(ctx context.Context, date, area string) error {
	opening, err := takotime.AtClock(date, d.params.OpeningTime)
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	closing, err := takotime.AtClock(date, d.params.ClosingTime)
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	return d.Transact(ctx, func(ctx context.Context) error {
		var exists int
		err := d.q(ctx).QueryRowContext(ctx,
			`SELECT count(*) FROM markets WHERE date = ?`, date).Scan(&exists)
		if err != nil {
			return fmt.Errorf("create market: %w", err)
		}
		if exists > 0 {
			log.Printf("[sqlite] market %s already exists", date)
			return nil
		}
		_, err = d.q(ctx).ExecContext(ctx,
			`INSERT INTO markets
			     (date, area, opening_datetime, closing_datetime,
			      cost_price, selling_price, seed_money,
			      status, sales, weather, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 'coming_soon', 0, '', `+sqlNow+`)`,
			date, area,
			takotime.UTCString(opening), takotime.UTCString(closing),
			d.params.CostPrice, d.params.SellingPrice, d.params.SeedMoney)
		if err != nil {
			return fmt.Errorf("create market: %w", err)
		}
		return nil
	})
}

// SetWeather records the observed weather label on a cycle.
func (d *DB) SetWeather(ctx context.Context, date, weather string) error {
	return d.Transact(ctx, func(ctx context.Context) error {
		_, err := d.q(ctx).ExecContext(ctx,
			`UPDATE markets SET weather = ?, timestamp = `+sqlNow+` WHERE date = ?`,
			weather, date)
		if err != nil {
			return fmt.Errorf("set weather: %w", err)
		}
		return nil
	})
}
