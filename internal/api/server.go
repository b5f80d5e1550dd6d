// Package api serves stored backtest runs over a read-only REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/amirphl/signalforge/internal/db"
	"github.com/amirphl/signalforge/internal/journal"
)

const defaultListLimit = 50

// Store is what the API reads from. db.Storage satisfies it.
type Store interface {
	db.RunStore
	journal.Journaler
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server handles the REST API.
type Server struct {
	store  Store
	router *mux.Router
	logger *zap.Logger
}

func NewServer(store Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id:[0-9]+}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id:[0-9]+}/fills", s.handleGetRunFills).Methods("GET")
	api.HandleFunc("/events/{type}", s.handleGetEvents).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API | server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API | shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	respondJSON(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found", err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "get run", err)
		return
	}
	respondJSON(w, run)
}

func (s *Server) handleGetRunFills(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	fills, err := s.store.GetRunFills(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found", err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "get run fills", err)
		return
	}
	if fills == nil {
		fills = []db.FillRecord{}
	}
	respondJSON(w, fills)
}

// handleGetEvents lists journal events of one type. from and to are RFC3339
// and default to the last 24 hours.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid "+p.name, err.Error())
			return
		}
		*p.dst = t
	}

	events, err := s.store.GetEvents(r.Context(), mux.Vars(r)["type"], from, to)
	if err != nil {
		s.internalError(w, "get events", err)
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	respondJSON(w, events)
}

func runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id", raw)
		return 0, false
	}
	return id, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("API | request failed", zap.String("op", op), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error", op)
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
