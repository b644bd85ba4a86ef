package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TobiSchelling/FrictionLog/internal/database"
	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

const (
	defaultTrendDays    = 30
	defaultRankingLimit = 5
	maxBodyBytes        = 64 << 10
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "frictionlog",
	Subsystem: "server",
	Name:      "requests_total",
	Help:      "Backend requests by route and status code",
}, []string{"route", "code"})

// Server is the local FrictionLog backend.
type Server struct {
	db     *database.DB
	mux    *http.ServeMux
	logger *zap.Logger
}

// New creates a new Server.
func New(db *database.DB, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{db: db, mux: http.NewServeMux(), logger: logger}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.withLogging(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/friction-items", s.handleListItems)
	s.mux.HandleFunc("POST /api/friction-items", s.handleCreateItem)
	s.mux.HandleFunc("GET /api/friction-items/{id}", s.handleGetItem)
	s.mux.HandleFunc("PUT /api/friction-items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("DELETE /api/friction-items/{id}", s.handleDeleteItem)
	s.mux.HandleFunc("POST /api/friction-items/{id}/encounter", s.handleEncounter)

	s.mux.HandleFunc("GET /api/analytics/score", s.handleScore)
	s.mux.HandleFunc("GET /api/analytics/trend", s.handleTrend)
	s.mux.HandleFunc("GET /api/analytics/by-category", s.handleByCategory)
	s.mux.HandleFunc("GET /api/analytics/most-annoying", s.handleMostAnnoying)
	s.mux.HandleFunc("GET /api/analytics/global-limit", s.handleGetGlobalLimit)
	s.mux.HandleFunc("PUT /api/analytics/global-limit", s.handleSetGlobalLimit)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var filter friction.Filter
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := friction.ParseStatus(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		filter.Status = st
	}
	if v := r.URL.Query().Get("category"); v != "" {
		cat, err := friction.ParseCategory(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		filter.Category = cat
	}

	items, err := s.db.ListItems(filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req friction.ItemCreate
	if !s.decode(w, r, &req) {
		return
	}
	if err := friction.Validate(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := s.db.InsertItem(req)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := s.db.GetItem(id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var update friction.ItemUpdate
	if !s.decode(w, r, &update) {
		return
	}
	if err := friction.Validate(update); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := s.db.UpdateItem(id, update)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteItem(id); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEncounter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := s.db.IncrementEncounter(id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.db.Score()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days", defaultTrendDays)
	if !ok {
		return
	}
	points, err := s.db.Trend(days)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	breakdown, err := s.db.CategoryBreakdown()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleMostAnnoying(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultRankingLimit)
	if !ok {
		return
	}
	ranked, err := s.db.MostAnnoying(limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (s *Server) handleGetGlobalLimit(w http.ResponseWriter, r *http.Request) {
	limit, err := s.db.GlobalLimit()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, friction.GlobalLimit{Limit: limit})
}

func (s *Server) handleSetGlobalLimit(w http.ResponseWriter, r *http.Request) {
	var req friction.GlobalLimit
	if !s.decode(w, r, &req) {
		return
	}
	if err := friction.Validate(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.db.SetGlobalLimit(req.Limit); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// storeError maps database sentinel errors onto HTTP status codes.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "Friction item not found")
	case errors.Is(err, database.ErrItemFixed):
		writeError(w, http.StatusConflict, "Cannot record encounters for fixed items")
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", r.Header.Get(requestIDHeader)),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "invalid item id")
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be a positive integer", key))
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging echoes the caller's request id (minting one if absent),
// logs each request and counts it per route.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", id))
	})
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int, logger *zap.Logger) error {
	srv := New(db, logger)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.logger.Info("server listening", zap.String("addr", "http://"+addr))
	return http.ListenAndServe(addr, srv.Handler())
}
