package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
	"github.com/kumanofoo/tako/internal/takotime"
)

// ─── Collaborator Seams ─────────────────────────────────────────────────────

// DemandSource supplies the day's sales cap and a weather label for the
// area at closing time. Errors are retryable; the scheduler backs off and
// asks again without advancing past the boundary.
type DemandSource interface {
	Demand(ctx context.Context, area string) (maxSales int64, weather string, err error)
}

// LocationSelector picks the area for the next market cycle.
type LocationSelector interface {
	Pick(ctx context.Context) (area string, err error)
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

// Scheduler states, visible through State().
const (
	StateRunnable     = "runnable"
	StateInitializing = "initializing"
	StateRunning      = "running"
)

// Config tunes the scheduler's waits. Zero values take the production
// defaults; tests shrink them.
type Config struct {
	Tick       time.Duration // poll interval while an event is pending
	IdleWait   time.Duration // wait when no event exists at all
	RetryWait  time.Duration // wait between startup attempts to schedule a market
	DemandWait time.Duration // wait after a failed demand lookup
	Clock      takotime.Clock
}

func (c *Config) fillDefaults() {
	if c.Tick == 0 {
		c.Tick = time.Second
	}
	if c.IdleWait == 0 {
		c.IdleWait = 60 * time.Second
	}
	if c.RetryWait == 0 {
		c.RetryWait = 30 * time.Second
	}
	if c.DemandWait == 0 {
		c.DemandWait = 15 * time.Second
	}
	if c.Clock == nil {
		c.Clock = takotime.SystemClock{}
	}
}

// Scheduler drives the market through its daily boundaries. It polls the
// clock at minute granularity: when the truncated current minute equals a
// cycle's opening or closing instant, the matching transition fires exactly
// once for that minute.
type Scheduler struct {
	db     *sqlite.DB
	engine *Engine
	demand DemandSource
	areas  LocationSelector
	cfg    Config

	mu     sync.Mutex
	state  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(db *sqlite.DB, engine *Engine, demand DemandSource, areas LocationSelector, cfg Config) *Scheduler {
	cfg.fillDefaults()
	return &Scheduler{
		db:     db,
		engine: engine,
		demand: demand,
		areas:  areas,
		cfg:    cfg,
		state:  StateRunnable,
	}
}

// State reports the lifecycle state for health checks.
func (s *Scheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run executes the scheduling loop until ctx is canceled or Stop is
// called. It blocks; callers wanting a background scheduler run it in a
// goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	defer func() {
		cancel()
		close(done)
	}()

	s.setState(StateInitializing)
	defer s.setState(StateRunnable)

	if err := s.startup(ctx); err != nil {
		return err
	}
	s.setState(StateRunning)
	log.Printf("[scheduler] running")

	var openDone, closedDone bool
	for {
		wait, err := s.step(ctx, &openDone, &closedDone)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Stop cancels a running Run and waits for it to return. Stopping a
// scheduler that never ran is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce performs a single pass: it makes sure a cycle is scheduled,
// sweeps stale cycles, and fires whichever boundary matches the current
// minute. Used by the oneshot server mode and by tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	event, err := s.ensureEvent(ctx)
	if err != nil {
		return err
	}
	if err := s.engine.CancelStale(ctx, event.Date); err != nil {
		return err
	}
	openDone, closedDone := false, false
	_, err = s.step(ctx, &openDone, &closedDone)
	return err
}

// startup makes sure an event boundary exists ahead of now, retrying until
// one does, then sweeps cycles the daemon slept through.
func (s *Scheduler) startup(ctx context.Context) error {
	var event *domain.Event
	for {
		var err error
		event, err = s.ensureEvent(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrNoMarket) {
			return err
		}
		log.Printf("[scheduler] next event not found, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryWait):
		}
	}
	return s.engine.CancelStale(ctx, event.Date)
}

// ensureEvent returns the next boundary, scheduling tomorrow's market
// first if nothing is pending. ErrNoMarket means scheduling failed too,
// typically because no area could be picked. The lookup uses the truncated
// minute: a boundary stays visible for its whole minute, so a pass landing
// mid-minute still matches it in step instead of skipping ahead.
func (s *Scheduler) ensureEvent(ctx context.Context) (*domain.Event, error) {
	now := takotime.TruncateMinute(s.cfg.Clock.Now())
	event, err := s.db.NextEvent(ctx, now)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, domain.ErrNoMarket) {
		return nil, err
	}
	if err := s.scheduleNext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoMarket, err)
	}
	return s.db.NextEvent(ctx, now)
}

// scheduleNext creates tomorrow's cycle at a freshly picked area. A cycle
// already on the calendar is left alone.
func (s *Scheduler) scheduleNext(ctx context.Context) error {
	area, err := s.areas.Pick(ctx)
	if err != nil {
		return fmt.Errorf("pick area: %w", err)
	}
	date := takotime.MarketDate(s.cfg.Clock.Now().Add(24 * time.Hour))
	if err := s.db.CreateMarket(ctx, date, area); err != nil {
		return err
	}
	if next, err := s.db.NextMarket(ctx, takotime.MarketDate(s.cfg.Clock.Now())); err == nil {
		log.Printf("[scheduler] next market: %s in %s", next.Date, next.Area)
	}
	return nil
}

// step evaluates one loop iteration and returns how long to wait before
// the next. openDone and closedDone latch a fired boundary so the same
// minute never fires twice; they clear as soon as the minute moves on.
func (s *Scheduler) step(ctx context.Context, openDone, closedDone *bool) (time.Duration, error) {
	event, err := s.ensureEvent(ctx)
	if errors.Is(err, domain.ErrNoMarket) {
		log.Printf("[scheduler] next event not found")
		return s.cfg.IdleWait, nil
	}
	if err != nil {
		return 0, err
	}

	now := takotime.TruncateMinute(s.cfg.Clock.Now())

	if now.Equal(event.Opening) {
		if !*openDone {
			if err := s.engine.CancelStale(ctx, event.Date); err != nil {
				return 0, err
			}
			if err := s.engine.Open(ctx, event.Date); err != nil {
				return 0, err
			}
			if err := s.scheduleNext(ctx); err != nil {
				log.Printf("[scheduler] schedule next market: %v", err)
			}
			*openDone = true
		}
	} else {
		*openDone = false
	}

	if now.Equal(event.Closing) {
		if !*closedDone {
			m, err := s.db.Market(ctx, event.Date)
			if err != nil {
				return 0, err
			}
			maxSales, weather, err := s.demand.Demand(ctx, m.Area)
			if err != nil {
				demandFailures.Inc()
				log.Printf("[scheduler] demand lookup for %s failed: %v", m.Area, err)
				return s.cfg.DemandWait, nil
			}
			if _, err := s.engine.Close(ctx, event.Date, maxSales, weather); err != nil {
				return 0, err
			}
			*closedDone = true
		}
	} else {
		*closedDone = false
	}

	return s.cfg.Tick, nil
}
