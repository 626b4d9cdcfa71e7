// Package domain contains the pure business types of the tako market with
// zero infrastructure imports. This is the innermost ring; it depends on
// nothing but the standard library.
package domain

import "time"

// ─── Status Values ──────────────────────────────────────────────────────────

// Order (transaction) statuses. The lifecycle is
// ordered → in_stock → closed, with canceled reachable from ordered and
// in_stock, and closed_and_restart overlaid on closed when a season ends.
const (
	OrderOrdered    = "ordered"
	OrderInStock    = "in_stock"
	OrderClosed     = "closed"
	OrderCanceled   = "canceled"
	OrderRestarted  = "closed_and_restart"
)

// Market (shop) statuses. coming_soon → open → closed, with canceled
// reachable from coming_soon and open when a cycle goes stale.
const (
	MarketComingSoon = "coming_soon"
	MarketOpen       = "open"
	MarketClosed     = "closed"
	MarketCanceled   = "canceled"
)

// ─── Record Types ───────────────────────────────────────────────────────────

// Account is a participant identity. Badge counts season wins and is only
// ever incremented by season-end detection.
type Account struct {
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Badge     int64     `json:"badge"`
	Timestamp time.Time `json:"timestamp"`
}

// Condition is an owner's balance row. Negative balances are a valid
// bankrupt state; the value only moves through settlement transitions.
type Condition struct {
	OwnerID   string    `json:"owner_id"`
	Balance   int64     `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

// OwnerBalance is a ranking projection: display name and balance.
type OwnerBalance struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// Market is one day's cycle: a location bound to an open/close window.
// At most one row exists per calendar date.
type Market struct {
	Date         string    `json:"date"`
	Area         string    `json:"area"`
	Opening      time.Time `json:"opening_datetime"`
	Closing      time.Time `json:"closing_datetime"`
	CostPrice    int64     `json:"cost_price"`
	SellingPrice int64     `json:"selling_price"`
	SeedMoney    int64     `json:"seed_money"`
	Status       string    `json:"status"`
	Sales        int64     `json:"sales"`
	Weather      string    `json:"weather"`
	Timestamp    time.Time `json:"timestamp"`
}

// Transaction is an owner's order for one market date, joined with the
// owner's account, balance and the market row for presentation.
// At most one row exists per (owner, date).
type Transaction struct {
	OwnerID         string    `json:"owner_id"`
	Name            string    `json:"name"`
	Balance         int64     `json:"balance"`
	Date            string    `json:"date"`
	QuantityOrdered int64     `json:"quantity_ordered"`
	Cost            int64     `json:"cost"`
	QuantityInStock int64     `json:"quantity_in_stock"`
	Sales           int64     `json:"sales"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Area            string    `json:"area"`
	MaxSales        int64     `json:"max_sales"`
	Weather         string    `json:"weather"`
}

// SeasonRecord is the snapshot of one owner's balance at a season boundary,
// joined with the account for presentation. Append-only.
type SeasonRecord struct {
	Date    string `json:"date"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Target  int64  `json:"target"`
	Ranking int64  `json:"ranking"`
	Badge   int64  `json:"badge"`
}

// Event is the next market boundary: the earliest un-passed opening or
// closing instant among non-terminal cycles.
type Event struct {
	Date    string    `json:"date"`
	Opening time.Time `json:"opening_datetime"`
	Closing time.Time `json:"closing_datetime"`
}

// ─── Market Parameters ──────────────────────────────────────────────────────

// Params are the economic constants of the market. They are passed to every
// component at construction; nothing reads them from process globals.
type Params struct {
	CostPrice    int64
	SellingPrice int64
	SeedMoney    int64
	Target       int64
	OpeningTime  string // "HH:MM" civil time
	ClosingTime  string
}

// DefaultParams returns the canonical market economy.
func DefaultParams() Params {
	return Params{
		CostPrice:    40,
		SellingPrice: 50,
		SeedMoney:    5000,
		Target:       30000,
		OpeningTime:  "09:00",
		ClosingTime:  "18:00",
	}
}

// MaxQuantity returns the largest order the balance can cover at the
// cost price. Division truncates toward zero.
func (p Params) MaxQuantity(balance int64) int64 {
	if balance <= 0 {
		return 0
	}
	return balance / p.CostPrice
}
