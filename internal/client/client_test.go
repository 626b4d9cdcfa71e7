package client

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// 08:00 JST on 2026-01-10.
var testNow = time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(
		filepath.Join(t.TempDir(), "tako.db"),
		domain.DefaultParams(),
		sqlite.RetryPolicy{Retries: 0, Backoff: time.Millisecond},
	)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.CreateSchema(context.Background()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTestClient(t *testing.T, db *sqlite.DB, ownerID, name string) *Client {
	t.Helper()
	c, err := New(context.Background(), db, nil, ownerID, name)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c.WithClock(fixedClock{now: testNow})
}

func TestNewOpensAndRenames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := newTestClient(t, db, "RB-79", "Ball")
	a, err := c.Account(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "Ball" {
		t.Errorf("name = %q, want Ball", a.Name)
	}

	// Existing ID with a new name renames.
	newTestClient(t, db, "RB-79", "Ball Mk-II")
	a, _ = c.Account(ctx)
	if a.Name != "Ball Mk-II" {
		t.Errorf("name = %q, want Ball Mk-II", a.Name)
	}

	// Existing ID without a name is left alone.
	newTestClient(t, db, "RB-79", "")
	a, _ = c.Account(ctx)
	if a.Name != "Ball Mk-II" {
		t.Errorf("name = %q, empty name must not rename", a.Name)
	}
}

func TestNewSeedsRandomNameWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	c := newTestClient(t, db, "anon-1", "")
	a, err := c.Account(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.Name == "" {
		t.Error("fresh account got an empty display name")
	}
}

func TestBadgeEmoji(t *testing.T) {
	tests := []struct {
		badge int64
		want  string
	}{
		{0, ""},
		{1, "🐙"},
		{111, "⭐🦑🐙"},
		{29, "🦑🦑🐙🐙🐙🐙🐙🐙🐙🐙🐙"},
		{30, "🦑🦑🦑"},
	}
	for _, tt := range tests {
		if got := BadgeEmoji(tt.badge); got != tt.want {
			t.Errorf("BadgeEmoji(%d) = %q, want %q", tt.badge, got, tt.want)
		}
	}
}

func TestOrderTargetsNextMarket(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := newTestClient(t, db, "RB-79", "Ball")

	ok, err := c.Order(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("order accepted with no market pending")
	}

	if err := db.CreateMarket(ctx, "2026-01-11", "Nago"); err != nil {
		t.Fatal(err)
	}
	ok, err = c.Order(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("order rejected with a market pending")
	}
	tx, err := db.TransactionByDate(ctx, "RB-79", "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.QuantityOrdered != 10 {
		t.Errorf("stored order = %+v", tx)
	}
}

func TestMaxOrderQuantity(t *testing.T) {
	db := newTestDB(t)
	c := newTestClient(t, db, "RB-79", "Ball")
	quantity, balance, err := c.MaxOrderQuantity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if balance != 5000 || quantity != 125 {
		t.Errorf("max order = %d at balance %d, want 125 at 5000", quantity, balance)
	}
}

func TestInterpretStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := newTestClient(t, db, "RB-79", "Ball")
	if err := db.CreateMarket(ctx, "2026-01-11", "Nago"); err != nil {
		t.Fatal(err)
	}

	lines, keep := NewInterpreter(c).Interpret(ctx, "")
	if !keep {
		t.Fatal("status command ended the session")
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{
		"Ball",
		"Balance: 5000 JPY at ",
		"Top 3 owners",
		"Next: Nago",
		"Open: 2026-01-11 09:00 JST",
		"Close: 2026-01-11 18:00 JST",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("status output missing %q:\n%s", want, joined)
		}
	}
}

func TestInterpretOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := newTestClient(t, db, "RB-79", "Ball")
	if err := db.CreateMarket(ctx, "2026-01-11", "Nago"); err != nil {
		t.Fatal(err)
	}
	it := NewInterpreter(c)

	lines, keep := it.Interpret(ctx, "25")
	if !keep {
		t.Fatal("order command ended the session")
	}
	if len(lines) != 1 || lines[0] != "Ordered 25 tako" {
		t.Errorf("order response = %q", lines)
	}

	// Beyond the balance: dropped without a word.
	lines, keep = it.Interpret(ctx, "126")
	if !keep {
		t.Fatal("oversized order ended the session")
	}
	if len(lines) != 0 {
		t.Errorf("oversized order responded %q, want silence", lines)
	}
	tx, err := db.TransactionByDate(ctx, "RB-79", "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if tx.QuantityOrdered != 25 {
		t.Errorf("stored quantity = %d, oversized order must not replace", tx.QuantityOrdered)
	}
}

func TestInterpretControlCommands(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	it := NewInterpreter(newTestClient(t, db, "RB-79", "Ball"))

	if _, keep := it.Interpret(ctx, "quit"); keep {
		t.Error("quit did not end the session")
	}
	lines, keep := it.Interpret(ctx, "help")
	if !keep || len(lines) != 5 {
		t.Errorf("help = %d lines, keep %v", len(lines), keep)
	}
	lines, _ = it.Interpret(ctx, "?")
	if len(lines) != 5 {
		t.Errorf("? = %d lines, want the help text", len(lines))
	}
	lines, _ = it.Interpret(ctx, "history")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "Date       Area") {
		t.Errorf("history header = %q", lines)
	}
	// Unknown commands respond with nothing and keep going.
	lines, keep = it.Interpret(ctx, "takoyaki")
	if !keep || len(lines) != 0 {
		t.Errorf("unknown command = %q, keep %v", lines, keep)
	}
}

func TestHistoryLinesFormat(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := newTestClient(t, db, "RB-79", "Ball")
	if err := db.CreateMarket(ctx, "2026-01-11", "帯広"); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Order(ctx, 100); err != nil || !ok {
		t.Fatalf("order: ok %v err %v", ok, err)
	}

	lines, _ := NewInterpreter(c).Interpret(ctx, "history")
	if len(lines) != 4 {
		t.Fatalf("history = %d lines, want header, separator, one row, footer", len(lines))
	}
	if lines[1] != strings.Repeat("-", 66) || lines[3] != strings.Repeat("-", 66) {
		t.Errorf("history borders = %q / %q", lines[1], lines[3])
	}
	row := lines[2]
	if !strings.HasPrefix(row, "2026-01-11 帯広") {
		t.Errorf("row = %q", row)
	}
	if !strings.Contains(row, "ordered") {
		t.Errorf("row missing status: %q", row)
	}
}
