package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/advledger/pkg/balances"
	"github.com/mcclellann/advledger/pkg/config"
	"github.com/mcclellann/advledger/pkg/ledger"
	"github.com/mcclellann/advledger/pkg/loader"
	"github.com/mcclellann/advledger/pkg/logger"
	"github.com/mcclellann/advledger/pkg/models"
	"github.com/mcclellann/advledger/pkg/report"
	"github.com/mcclellann/advledger/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	log     *zap.Logger
}

func NewServer(s store.Storage, log *zap.Logger, opts ...ledger.Option) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, append([]ledger.Option{ledger.WithLogger(log)}, opts...)...),
		storage: s,
		log:     log,
	}
}

// Router wires every endpoint.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestLogging)
	router.HandleFunc("/events", s.createEventHandler).Methods("POST")
	router.HandleFunc("/events/import", s.importEventsHandler).Methods("POST")
	router.HandleFunc("/balances", s.balancesHandler).Methods("GET")
	router.HandleFunc("/balances/report", s.balancesReportHandler).Methods("GET")
	return router
}

func (s *Server) createEventHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   models.EventKind `json:"type"`
		Date   string           `json:"date"`
		Amount decimal.Decimal  `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var event *models.Event
	switch req.Type {
	case models.EventKindAdvance:
		event, err = s.ledger.RecordAdvance(r.Context(), date, req.Amount)
	case models.EventKindPayment:
		event, err = s.ledger.RecordPayment(r.Context(), date, req.Amount)
	default:
		http.Error(w, "type must be advance or payment", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) importEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := loader.New().Read(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := s.ledger.Import(r.Context(), events)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"loaded": n})
}

func (s *Server) balancesHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := s.computeBalances(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) balancesReportHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := s.computeBalances(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.Write(w, res); err != nil {
		s.log.Error("failed to write report", zap.Error(err))
	}
}

func (s *Server) computeBalances(w http.ResponseWriter, r *http.Request) (*models.BalancesResult, bool) {
	endDate := models.Today()
	if q := r.URL.Query().Get("end_date"); q != "" {
		d, err := models.ParseDate(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
		endDate = d
	}

	res, err := s.ledger.Balances(r.Context(), endDate)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return res, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case balances.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sr.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// newServerFromConfig opens the existing event store named by cfg. A missing
// database is reported as store.ErrNotInitialized; run `ledger create-db` first.
func newServerFromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	sqliteStore, err := store.OpenSQLiteStore(ctx, cfg.DB.Path, store.WithLogger(log))
	if err != nil {
		return nil, err
	}

	calcOpts := []balances.Option{balances.WithDailyRate(cfg.Engine.DailyRate)}
	if cfg.Engine.TrackAppliedInterest {
		calcOpts = append(calcOpts, balances.WithAppliedInterestTracking())
	}
	return NewServer(sqliteStore, log, ledger.WithCalculatorOptions(calcOpts...)), nil
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	server, err := newServerFromConfig(context.Background(), cfg, log)
	if errors.Is(err, store.ErrNotInitialized) {
		log.Fatal("Database does not exist, please create it using `ledger create-db`", zap.String("db", cfg.DB.Path))
	}
	if err != nil {
		log.Fatal("Failed to initialize SQLite store", zap.Error(err))
	}
	defer server.storage.Close()

	log.Info("Server starting", zap.String("addr", cfg.API.Addr), zap.String("db", cfg.DB.Path))
	if err := http.ListenAndServe(cfg.API.Addr, server.Router()); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
