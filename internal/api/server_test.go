package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type fixedState string

func (s fixedState) State() string { return string(s) }

// 08:00 JST on 2026-01-10.
var testNow = time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(
		filepath.Join(t.TempDir(), "tako.db"),
		domain.DefaultParams(),
		sqlite.RetryPolicy{Retries: 0, Backoff: time.Millisecond},
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.CreateSchema(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := NewServer(db).WithClock(fixedClock{now: testNow})
	s.SetScheduler(fixedState("running"))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

func get(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, body
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, out
}

func TestHealthReportsSchedulerState(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := get(t, ts.URL+"/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" || body["scheduler"] != "running" {
		t.Errorf("health = %v", body)
	}
}

func TestRankingOrdersByBalance(t *testing.T) {
	ts, db := newTestServer(t)
	ctx := context.Background()
	for _, owner := range []string{"octo-1", "octo-2"} {
		if err := db.OpenAccount(ctx, owner, owner); err != nil {
			t.Fatal(err)
		}
	}

	status, body := get(t, ts.URL+"/api/ranking")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	ranking, ok := body["ranking"].([]any)
	if !ok || len(ranking) != 2 {
		t.Fatalf("ranking = %v", body["ranking"])
	}
}

func TestNextMarket(t *testing.T) {
	ts, db := newTestServer(t)

	status, _ := get(t, ts.URL+"/api/market/next")
	if status != http.StatusNotFound {
		t.Fatalf("empty market status = %d, want 404", status)
	}

	if err := db.CreateMarket(context.Background(), "2026-01-11", "Nago"); err != nil {
		t.Fatal(err)
	}
	status, body := get(t, ts.URL+"/api/market/next")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["date"] != "2026-01-11" || body["area"] != "Nago" {
		t.Errorf("next market = %v", body)
	}
}

func TestOrderEndpoint(t *testing.T) {
	ts, db := newTestServer(t)
	ctx := context.Background()
	if err := db.OpenAccount(ctx, "octo-1", "Paul"); err != nil {
		t.Fatal(err)
	}

	// No market pending yet.
	status, _ := post(t, ts.URL+"/api/owners/octo-1/order", `{"quantity":10}`)
	if status != http.StatusConflict {
		t.Fatalf("no-market status = %d, want 409", status)
	}

	if err := db.CreateMarket(ctx, "2026-01-11", "Nago"); err != nil {
		t.Fatal(err)
	}

	status, body := post(t, ts.URL+"/api/owners/octo-1/order", `{"quantity":10}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %v", status, body)
	}
	if body["date"] != "2026-01-11" || body["quantity"] != float64(10) {
		t.Errorf("order = %v", body)
	}

	// 5000 JPY covers 125 units at most.
	status, _ = post(t, ts.URL+"/api/owners/octo-1/order", `{"quantity":126}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("oversized status = %d, want 422", status)
	}
	tx, err := db.TransactionByDate(ctx, "octo-1", "2026-01-11")
	if err != nil {
		t.Fatal(err)
	}
	if tx.QuantityOrdered != 10 {
		t.Errorf("stored order = %d, oversized must not replace", tx.QuantityOrdered)
	}

	status, _ = post(t, ts.URL+"/api/owners/nobody/order", `{"quantity":1}`)
	if status != http.StatusNotFound {
		t.Errorf("unknown owner status = %d, want 404", status)
	}
	status, _ = post(t, ts.URL+"/api/owners/octo-1/order", `{"quantity":-1}`)
	if status != http.StatusBadRequest {
		t.Errorf("negative status = %d, want 400", status)
	}
}

func TestOwnerEndpoints(t *testing.T) {
	ts, db := newTestServer(t)
	ctx := context.Background()
	if err := db.OpenAccount(ctx, "octo-1", "Paul"); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateMarket(ctx, "2026-01-11", "Nago"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.PlaceOrder(ctx, "octo-1", "2026-01-11", 25); err != nil {
		t.Fatal(err)
	}

	status, body := get(t, ts.URL+"/api/owners/octo-1/")
	if status != http.StatusOK {
		t.Fatalf("owner status = %d", status)
	}
	if body["balance"] != float64(5000) {
		t.Errorf("owner = %v", body)
	}

	status, body = get(t, ts.URL+"/api/owners/octo-1/transaction?date=2026-01-11")
	if status != http.StatusOK {
		t.Fatalf("transaction status = %d", status)
	}
	if body["quantity_ordered"] != float64(25) {
		t.Errorf("transaction = %v", body)
	}

	status, _ = get(t, ts.URL+"/api/owners/octo-1/transaction?date=2026-01-12")
	if status != http.StatusNotFound {
		t.Errorf("absent transaction status = %d, want 404", status)
	}

	status, body = get(t, ts.URL+"/api/owners/octo-1/history")
	if status != http.StatusOK {
		t.Fatalf("history status = %d", status)
	}
	if txs, ok := body["transactions"].([]any); !ok || len(txs) != 1 {
		t.Errorf("history = %v", body["transactions"])
	}

	status, _ = get(t, ts.URL+"/api/owners/nobody/")
	if status != http.StatusNotFound {
		t.Errorf("unknown owner status = %d, want 404", status)
	}
}
