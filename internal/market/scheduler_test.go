package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kumanofoo/tako/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeDemand struct {
	maxSales int64
	weather  string
	err      error
	calls    int
}

func (d *fakeDemand) Demand(ctx context.Context, area string) (int64, string, error) {
	d.calls++
	return d.maxSales, d.weather, d.err
}

type fakeAreas struct {
	area string
	err  error
}

func (a *fakeAreas) Pick(ctx context.Context) (string, error) { return a.area, a.err }

func newTestScheduler(t *testing.T, clock *fakeClock, demand *fakeDemand) (*Scheduler, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	sched := NewScheduler(env.db, env.engine, demand, &fakeAreas{area: "Nago"}, Config{
		Tick:       time.Millisecond,
		IdleWait:   time.Millisecond,
		RetryWait:  time.Millisecond,
		DemandWait: time.Millisecond,
		Clock:      clock,
	})
	return sched, env
}

func TestRunOnceSchedulesTomorrowWhenIdle(t *testing.T) {
	// 08:00 JST on 2026-01-10.
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	sched, env := newTestScheduler(t, clock, &fakeDemand{maxSales: 300, weather: "cloudy"})
	ctx := context.Background()

	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	m, err := env.db.Market(ctx, "2026-01-11")
	if err != nil {
		t.Fatalf("tomorrow's market missing: %v", err)
	}
	if m.Status != domain.MarketComingSoon || m.Area != "Nago" {
		t.Errorf("scheduled market = %+v", m)
	}
}

func TestRunOnceOpensAtOpeningMinute(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	sched, env := newTestScheduler(t, clock, &fakeDemand{maxSales: 300, weather: "cloudy"})
	ctx := context.Background()

	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.db.OpenAccount(ctx, "octo-1", "Octavia"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.db.PlaceOrder(ctx, "octo-1", "2026-01-11", 10); err != nil {
		t.Fatal(err)
	}

	// 09:00:30 JST truncates onto the opening minute.
	clock.now = time.Date(2026, 1, 11, 0, 0, 30, 0, time.UTC)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once at opening: %v", err)
	}

	m, err := env.db.Market(ctx, "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != domain.MarketOpen {
		t.Errorf("market status = %s, want open", m.Status)
	}
	tx, err := env.db.TransactionByDate(ctx, "octo-1", "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.Status != domain.OrderInStock {
		t.Errorf("order = %+v, want in_stock", tx)
	}
	// Opening also lines up the following day.
	if _, err := env.db.Market(ctx, "2026-01-12"); err != nil {
		t.Errorf("next market not scheduled: %v", err)
	}
}

func TestRunOnceLateInBoundaryMinuteKeepsCycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	sched, env := newTestScheduler(t, clock, &fakeDemand{maxSales: 300, weather: "cloudy"})
	ctx := context.Background()

	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	// The last second of the opening minute. The boundary must still be
	// visible; a pass this late must open the cycle, not sweep it away as
	// stale and schedule past it.
	clock.now = time.Date(2026, 1, 11, 0, 0, 59, 0, time.UTC)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once late in the opening minute: %v", err)
	}

	m, err := env.db.Market(ctx, "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != domain.MarketOpen {
		t.Errorf("market status = %s, want open", m.Status)
	}
}

func TestRunOnceClosesAtClosingMinute(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	demand := &fakeDemand{maxSales: 423, weather: "rainy"}
	sched, env := newTestScheduler(t, clock, demand)
	ctx := context.Background()

	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	clock.now = time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	// 18:00 JST.
	clock.now = time.Date(2026, 1, 11, 9, 0, 15, 0, time.UTC)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once at closing: %v", err)
	}

	m, err := env.db.Market(ctx, "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != domain.MarketClosed {
		t.Errorf("market status = %s, want closed", m.Status)
	}
	if m.Sales != 423 || m.Weather != "rainy" {
		t.Errorf("settled market = sales %d weather %s", m.Sales, m.Weather)
	}
	if demand.calls != 1 {
		t.Errorf("demand calls = %d, want 1", demand.calls)
	}
}

func TestRunOnceKeepsMarketOpenOnDemandFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	demand := &fakeDemand{err: errors.New("observation endpoint down")}
	sched, env := newTestScheduler(t, clock, demand)
	ctx := context.Background()

	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	clock.now = time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	clock.now = time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once with failing demand: %v", err)
	}

	m, err := env.db.Market(ctx, "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != domain.MarketOpen {
		t.Errorf("market status = %s, want still open", m.Status)
	}
}

func TestRunOnceSweepsStaleCycles(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 11, 3, 0, 0, 0, time.UTC)}
	sched, env := newTestScheduler(t, clock, &fakeDemand{maxSales: 300, weather: "cloudy"})
	ctx := context.Background()

	// A cycle the daemon slept through, and one still ahead.
	if err := env.db.CreateMarket(ctx, "2026-01-10", "Naha"); err != nil {
		t.Fatal(err)
	}
	if err := env.db.CreateMarket(ctx, "2026-01-12", "Nago"); err != nil {
		t.Fatal(err)
	}
	if err := env.db.OpenAccount(ctx, "octo-1", "Octavia"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.db.PlaceOrder(ctx, "octo-1", "2026-01-10", 10); err != nil {
		t.Fatal(err)
	}

	if err := sched.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	m, err := env.db.Market(ctx, "2026-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != domain.MarketCanceled {
		t.Errorf("stale market status = %s, want canceled", m.Status)
	}
	tx, err := env.db.TransactionByDate(ctx, "octo-1", "2026-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != domain.OrderCanceled {
		t.Errorf("stale order status = %s, want canceled", tx.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	sched, _ := newTestScheduler(t, clock, &fakeDemand{maxSales: 300, weather: "cloudy"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sched.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run = %v, want deadline exceeded", err)
	}
	if sched.State() != StateRunnable {
		t.Errorf("state after stop = %s, want runnable", sched.State())
	}
}

func TestStopJoinsRun(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)}
	sched, _ := newTestScheduler(t, clock, &fakeDemand{maxSales: 300, weather: "cloudy"})

	// Stopping before any Run is a no-op.
	sched.Stop()

	running := make(chan error, 1)
	go func() { running <- sched.Run(context.Background()) }()

	for sched.State() != StateRunning {
		time.Sleep(time.Millisecond)
	}
	sched.Stop()

	select {
	case err := <-running:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run = %v, want canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if sched.State() != StateRunnable {
		t.Errorf("state after stop = %s, want runnable", sched.State())
	}
}
