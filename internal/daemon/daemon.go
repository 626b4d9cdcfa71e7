package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/kumanofoo/tako/internal/api"
	"github.com/kumanofoo/tako/internal/bot"
	"github.com/kumanofoo/tako/internal/cache"
	"github.com/kumanofoo/tako/internal/client"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
	"github.com/kumanofoo/tako/internal/market"
	"github.com/kumanofoo/tako/internal/weather"
)

// Daemon is the assembled market server.
type Daemon struct {
	cfg       Config
	secrets   Secrets
	db        *sqlite.DB
	weather   *weather.Client
	scheduler *market.Scheduler
	server    *http.Server
	bot       *bot.Bot
	telegram  *bot.Telegram
	cache     cache.Cache
}

// New builds every component from the configuration. The returned daemon
// owns the store and the cache; Close releases them.
func New(ctx context.Context, cfg Config, secrets Secrets) (*Daemon, error) {
	dbPath := cfg.DB.Path
	if secrets.DBPath != "" {
		dbPath = secrets.DBPath
	}
	db, err := sqlite.Open(dbPath, cfg.Params(), sqlite.DaemonRetryPolicy())
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	d := &Daemon{cfg: cfg, secrets: secrets, db: db}
	if err := d.wire(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) wire(ctx context.Context) error {
	stations, err := weather.LoadStations()
	if err != nil {
		return err
	}

	switch d.cfg.Cache.Backend {
	case "", "memory":
		d.cache = cache.NewMemory(d.cfg.Cache.TTL.Std())
	case "redis":
		redisCache, err := cache.NewRedis(ctx,
			d.cfg.Cache.RedisAddr, d.secrets.RedisPassword, d.cfg.Cache.RedisDB)
		if err != nil {
			return err
		}
		d.cache = redisCache
	default:
		return fmt.Errorf("unknown cache backend %q", d.cfg.Cache.Backend)
	}

	d.weather = weather.NewClient(stations, weather.ClientConfig{
		BaseURL:    d.cfg.Weather.BaseURL,
		HTTPClient: &http.Client{Timeout: d.cfg.Weather.Timeout.Std()},
		Cache:      d.cache,
		CacheTTL:   d.cfg.Cache.TTL.Std(),
	})

	engine := market.NewEngine(d.db)
	d.scheduler = market.NewScheduler(d.db, engine, d.weather, stations, market.Config{
		IdleWait:   d.cfg.Scheduler.IdleWait.Std(),
		RetryWait:  d.cfg.Scheduler.RetryWait.Std(),
		DemandWait: d.cfg.Scheduler.DemandWait.Std(),
	})

	if d.cfg.Bot.Enabled {
		botID, botName := d.cfg.Bot.ID, d.cfg.Bot.Name
		if botID == "" {
			botID, botName = bot.DefaultID, bot.DefaultName
		}
		botClient, err := client.New(ctx, d.db, d.weather, botID, botName)
		if err != nil {
			return err
		}
		d.bot = bot.New(botClient, bot.Config{})
	}

	if d.secrets.TelegramToken != "" {
		telegram, err := bot.NewTelegram(d.secrets.TelegramToken, d.db, d.weather)
		if err != nil {
			return err
		}
		d.telegram = telegram
	}

	if d.cfg.API.Enabled {
		s := api.NewServer(d.db)
		s.SetScheduler(d.scheduler)
		if d.cfg.API.Metrics {
			s.EnableMetrics()
		}
		d.server = &http.Server{
			Addr:    d.cfg.API.Address(),
			Handler: s.Handler(),
		}
	}
	return nil
}

// Scheduler returns the market scheduler, for oneshot runs.
func (d *Daemon) Scheduler() *market.Scheduler { return d.scheduler }

// DB returns the store.
func (d *Daemon) DB() *sqlite.DB { return d.db }

// Weather returns the weather client.
func (d *Daemon) Weather() *weather.Client { return d.weather }

// Run starts every enabled component and blocks until ctx is canceled,
// then shuts them down.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	run("scheduler", d.scheduler.Run)
	if d.bot != nil {
		run("bot", d.bot.Run)
	}
	if d.telegram != nil {
		run("telegram", d.telegram.Run)
	}
	if d.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("[daemon] api listening on %s", d.server.Addr)
			if err := d.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	if d.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[daemon] api shutdown: %v", err)
		}
		shutdownCancel()
	}
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

// Close releases the store and the cache.
func (d *Daemon) Close() error {
	if d.cache != nil {
		d.cache.Close()
	}
	return d.db.Close()
}
