// Package api provides the HTTP server for the tako market: owner and
// market read endpoints, order placement, health and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
	"github.com/kumanofoo/tako/internal/takotime"
)

// StateReporter exposes the scheduler's current state for /health.
type StateReporter interface {
	State() string
}

// Server is the tako market HTTP API server.
type Server struct {
	db             *sqlite.DB
	scheduler      StateReporter
	clock          takotime.Clock
	metricsEnabled bool
}

// NewServer creates a new API server over the store.
func NewServer(db *sqlite.DB) *Server {
	return &Server{db: db, clock: takotime.SystemClock{}}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetScheduler wires the scheduler state into /health.
func (s *Server) SetScheduler(r StateReporter) { s.scheduler = r }

// WithClock replaces the time source. Used by tests.
func (s *Server) WithClock(clock takotime.Clock) *Server {
	s.clock = clock
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ranking", s.handleRanking)
		r.Get("/market/next", s.handleNextMarket)
		r.Get("/market/history", s.handleMarketHistory)
		r.Get("/records", s.handleRecords)
		r.Route("/owners/{id}", func(r chi.Router) {
			r.Get("/", s.handleOwner)
			r.Get("/history", s.handleOwnerHistory)
			r.Get("/transaction", s.handleOwnerTransaction)
			r.Get("/records", s.handleOwnerRecords)
			r.Post("/order", s.handleOrder)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.scheduler != nil {
		state = s.scheduler.State()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"scheduler": state,
	})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.db.ConditionAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": ranking})
}

func (s *Server) handleNextMarket(w http.ResponseWriter, r *http.Request) {
	next, err := s.db.NextMarket(r.Context(), takotime.MarketDate(s.clock.Now()))
	if errors.Is(err, domain.ErrNoMarket) {
		writeError(w, http.StatusNotFound, "no market is pending")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleMarketHistory(w http.ResponseWriter, r *http.Request) {
	markets, err := s.db.MarketHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// handleRecords returns season results, every date or one date via ?date=.
// ?winners=1 keeps only owners who reached the target.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	winnersOnly := r.URL.Query().Get("winners") == "1"
	records, err := s.db.Records(r.Context(), date, 0, winnersOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	account, err := s.db.Account(r.Context(), ownerID)
	if errors.Is(err, domain.ErrNoAccount) {
		writeError(w, http.StatusNotFound, "owner not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cond, err := s.db.Condition(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": cond.Balance,
	})
}

func (s *Server) handleOwnerHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := s.db.Transactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleOwnerTransaction(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = takotime.MarketDate(s.clock.Now())
	}
	tx, err := s.db.TransactionByDate(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, "no transaction on "+date)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleOwnerRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.OwnerRecords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

type orderRequest struct {
	Quantity int64 `json:"quantity"`
}

type orderResponse struct {
	Date     string `json:"date"`
	Quantity int64  `json:"quantity"`
}

// handleOrder places an order for the pending market. The balance cap is
// enforced here; the console front end instead drops oversized orders
// silently.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order body")
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	cond, err := s.db.Condition(r.Context(), ownerID)
	if errors.Is(err, domain.ErrNoAccount) {
		writeError(w, http.StatusNotFound, "owner not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if maxQuantity := s.db.Params().MaxQuantity(cond.Balance); req.Quantity > maxQuantity {
		writeError(w, http.StatusUnprocessableEntity, "quantity exceeds the balance")
		return
	}

	next, err := s.db.NextMarket(r.Context(), takotime.MarketDate(s.clock.Now()))
	if errors.Is(err, domain.ErrNoMarket) {
		writeError(w, http.StatusConflict, "no market is pending")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	quantity, err := s.db.PlaceOrder(r.Context(), ownerID, next.Date, req.Quantity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Date: next.Date, Quantity: quantity})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
