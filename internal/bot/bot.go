// Package bot contains the house trading bot, which keeps the market
// liquid by ordering against the weather forecast, and the chat front end
// that lets owners trade from Telegram.
package bot

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/kumanofoo/tako/internal/client"
	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/takotime"
	"github.com/kumanofoo/tako/internal/weather"
)

// Default identity of the house bot.
const (
	DefaultID   = "MS-06S"
	DefaultName = "Zaku"
)

// expectedSales maps a forecast weather headline to expected sales per
// precipitation-probability decile (index pops/10). Calibrated against
// settled market history.
var expectedSales = map[string][]int64{
	"晴れ":  {440, 420, 430, 390, 450, 450, 300, 300, 300, 300, 300},
	"くもり": {340, 340, 320, 300, 270, 250, 200, 140, 100, 100, 100},
	"雨":   {300, 330, 240, 200, 160, 220, 180, 150, 110, 100, 100},
	"雪":   {100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100},
}

// weatherHeadlines is the prefix-match order for forecast texts.
var weatherHeadlines = []string{"晴れ", "くもり", "雨", "雪"}

// Config tunes the bot loop. Zero values take production defaults.
type Config struct {
	OrderWait time.Duration // cap on the wait before re-ordering
	IdleWait  time.Duration // wait when no market is pending
	Clock     takotime.Clock
}

func (c *Config) fillDefaults() {
	if c.OrderWait == 0 {
		c.OrderWait = 30 * time.Minute
	}
	if c.IdleWait == 0 {
		c.IdleWait = time.Hour
	}
	if c.Clock == nil {
		c.Clock = takotime.SystemClock{}
	}
}

// Bot places forecast-driven orders for its own account until stopped.
type Bot struct {
	client *client.Client
	sales  weather.SalesParams
	cfg    Config
}

func New(c *client.Client, cfg Config) *Bot {
	cfg.fillDefaults()
	return &Bot{client: c, sales: weather.DefaultSalesParams(), cfg: cfg}
}

// minSales is the floor order: what a rained-out day still sells.
func (b *Bot) minSales() int64 {
	return int64(b.sales.BaseCloudy + b.sales.PenaltyRainy)
}

// HowManyOrder decides tomorrow's order from the forecast: the average
// expected sales over the daytime precipitation slots, floored at the
// rained-out minimum and capped by the balance. Without a usable forecast
// it falls back to the minimum.
func (b *Bot) HowManyOrder(ctx context.Context) (int64, error) {
	maxQuantity, _, err := b.client.MaxOrderQuantity(ctx)
	if err != nil {
		return 0, err
	}
	fallback := min(maxQuantity, b.minSales())

	forecast, err := b.client.NextForecast(ctx)
	if err != nil {
		log.Printf("[bot] weather forecast: %v", err)
		return fallback, nil
	}
	if forecast == nil {
		return fallback, nil
	}

	var expected, count int64
	for _, headline := range weatherHeadlines {
		if !strings.HasPrefix(forecast.WeatherText, headline) {
			continue
		}
		for _, pop := range forecast.Pops {
			if pop.Time.In(takotime.JST).Hour() < 6 {
				continue
			}
			percent, err := strconv.Atoi(pop.Percent)
			if err != nil {
				continue
			}
			expected += expectedSales[headline][percent/10]
			count++
		}
		break
	}
	if count == 0 {
		return fallback, nil
	}
	return min(maxQuantity, max(expected/count, b.minSales())), nil
}

// Run orders ahead of every market until ctx is canceled. While a market
// is still coming_soon the bot re-evaluates its order as the forecast
// firms up, sleeping at most the order wait between passes.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("[bot] running")
	for {
		wait := b.cfg.IdleWait
		next, err := b.client.NextMarket(ctx)
		if err != nil && !errors.Is(err, domain.ErrNoMarket) {
			return err
		}
		now := b.cfg.Clock.Now()
		if err == nil && next.Status == domain.MarketComingSoon && next.Opening.After(now) {
			order, err := b.HowManyOrder(ctx)
			if err != nil {
				return err
			}
			if _, err := b.client.Order(ctx, order); err != nil {
				return err
			}
			log.Printf("[bot] ordered %d takos for the market in %s on %s",
				order, next.Area, next.Date)
			wait = min(next.Opening.Sub(now), b.cfg.OrderWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
