// Package client is the owner-facing facade: account lifecycle, ordering,
// standings and history, and the command interpreter every front end
// (console, chat bots, trading bot) is built on.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
	"github.com/kumanofoo/tako/internal/takotime"
	"github.com/kumanofoo/tako/internal/weather"
)

// Forecaster supplies the weather forecast shown with the next market.
// Nil is fine; the market section then simply omits the forecast.
type Forecaster interface {
	Forecast(ctx context.Context, station, date string) (*weather.Forecast, error)
}

// Client binds one owner to the market.
type Client struct {
	db       *sqlite.DB
	forecast Forecaster
	ownerID  string
	clock    takotime.Clock
}

// New opens the owner's account if it does not exist yet, seeding a random
// display name when none is given. For an existing account a non-empty
// name renames it; an empty name leaves it as is.
func New(ctx context.Context, db *sqlite.DB, forecast Forecaster, ownerID, name string) (*Client, error) {
	openName := name
	if openName == "" {
		openName = RandomName()
	}
	err := db.OpenAccount(ctx, ownerID, openName)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccountExists):
		if name != "" {
			if err := db.ChangeName(ctx, ownerID, name); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}
	return &Client{db: db, forecast: forecast, ownerID: ownerID, clock: takotime.SystemClock{}}, nil
}

// OwnerID returns the bound owner ID.
func (c *Client) OwnerID() string { return c.ownerID }

// WithClock replaces the time source. Used by tests.
func (c *Client) WithClock(clock takotime.Clock) *Client {
	c.clock = clock
	return c
}

// Account returns the owner's identity row.
func (c *Client) Account(ctx context.Context) (*domain.Account, error) {
	return c.db.Account(ctx, c.ownerID)
}

// MaxOrderQuantity returns the largest order the balance covers, and the
// balance itself.
func (c *Client) MaxOrderQuantity(ctx context.Context) (int64, int64, error) {
	cond, err := c.db.Condition(ctx, c.ownerID)
	if err != nil {
		return 0, 0, err
	}
	return c.db.Params().MaxQuantity(cond.Balance), cond.Balance, nil
}

// Ranking returns every owner richest first.
func (c *Client) Ranking(ctx context.Context) ([]domain.OwnerBalance, error) {
	return c.db.ConditionAll(ctx)
}

// LatestTransaction returns the owner's most recent order, or nil.
func (c *Client) LatestTransaction(ctx context.Context) (*domain.Transaction, error) {
	txs, err := c.db.Transactions(ctx, c.ownerID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[len(txs)-1], nil
}

// History returns the owner's orders newest first.
func (c *Client) History(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := c.db.Transactions(ctx, c.ownerID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	return txs, nil
}

// NextMarket returns the pending market, or ErrNoMarket.
func (c *Client) NextMarket(ctx context.Context) (*domain.Market, error) {
	return c.db.NextMarket(ctx, takotime.MarketDate(c.clock.Now()))
}

// Order places an order for the next market date. Reports false when no
// market is pending.
func (c *Client) Order(ctx context.Context, quantity int64) (bool, error) {
	next, err := c.NextMarket(ctx)
	if errors.Is(err, domain.ErrNoMarket) {
		log.Printf("[client] next market not found")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := c.db.PlaceOrder(ctx, c.ownerID, next.Date, quantity); err != nil {
		return false, err
	}
	return true, nil
}

// OwnerRecords returns the owner's season history, oldest first.
func (c *Client) OwnerRecords(ctx context.Context) ([]domain.SeasonRecord, error) {
	return c.db.OwnerRecords(ctx, c.ownerID)
}

// NextForecast returns the forecast for the pending market's area, or nil
// when no market is pending or no forecaster is wired.
func (c *Client) NextForecast(ctx context.Context) (*weather.Forecast, error) {
	if c.forecast == nil {
		return nil, nil
	}
	next, err := c.NextMarket(ctx)
	if errors.Is(err, domain.ErrNoMarket) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.forecast.Forecast(ctx, next.Area, next.Date)
}

// BadgeEmoji renders a badge count: a star per hundred, a squid per ten,
// an octopus per one.
func BadgeEmoji(badge int64) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("⭐", int(badge/100)))
	badge %= 100
	b.WriteString(strings.Repeat("🦑", int(badge/10)))
	badge %= 10
	b.WriteString(strings.Repeat("🐙", int(badge)))
	return b.String()
}

// NameWithBadge returns "name badges" for display headers.
func (c *Client) NameWithBadge(ctx context.Context) (string, error) {
	a, err := c.Account(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", a.Name, BadgeEmoji(a.Badge)), nil
}
