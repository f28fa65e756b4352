package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/trialmatch/catalog"
	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/internal/app"
	"github.com/liamcoop/trialmatch/internal/config"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/internal/metrics"
	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"
)

const maxBodyBytes = 4 << 20

type Server struct {
	app    *app.App
	router *chi.Mux
}

func NewServer(a *app.App) *Server {
	s := &Server{app: a}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/v1/criteria/parse", s.handleParse)
	r.Post("/api/v1/match", s.handleMatch)

	r.Route("/api/v1/trials", func(r chi.Router) {
		r.Get("/", s.handleListTrials)
		r.Post("/", s.handleCreateTrial)

		r.Route("/{trialId}", func(r chi.Router) {
			r.Get("/", s.handleGetTrial)
			r.Put("/", s.handleUpdateTrial)
			r.Delete("/", s.handleDeleteTrial)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request through the structured logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"requestId", middleware.GetReqID(r.Context()),
		}
		switch {
		case ww.Status() >= 500:
			logger.Error("request failed", args...)
		case ww.Status() >= 400:
			logger.Warn("request rejected", args...)
		default:
			logger.Debug("request served", args...)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		TrialsLoaded:  len(s.app.Catalog.Trials()),
		TrialsBlocked: len(s.app.Catalog.Blocked()),
	}
	if err := s.app.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Criterion == "" {
		respondError(w, http.StatusBadRequest, "criterion is required", nil)
		return
	}

	fn, err := s.app.Parser.Parse(req.Criterion)
	if err != nil {
		metrics.ParseRequests.WithLabelValues("rejected").Inc()
		logger.WarnParseFailure("criterion rejected", "criterion", req.Criterion, "error", err)
		respondError(w, http.StatusUnprocessableEntity, "criterion rejected", err)
		return
	}

	metrics.ParseRequests.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, ParseResponse{Canonical: criteria.Render(fn), Function: fn})
}

func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	entries := s.app.Catalog.Entries()
	resp := TrialsListResponse{Trials: make([]TrialSummaryResponse, 0, len(entries))}
	for _, e := range entries {
		cfg := e.Stored.Config
		resp.Trials = append(resp.Trials, TrialSummaryResponse{
			TrialID: cfg.TrialID,
			Acronym: cfg.Acronym,
			Title:   cfg.Title,
			Open:    cfg.Open,
			Blocked: e.Blocked(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTrial(w http.ResponseWriter, r *http.Request) {
	var cfg trial.Config
	if !decodeBody(w, r, &cfg) {
		return
	}

	e, err := s.app.Catalog.Add(r.Context(), cfg)
	if err != nil {
		respondStoreError(w, "failed to add trial", err)
		return
	}
	respondJSON(w, http.StatusCreated, newTrialResponse(e))
}

func (s *Server) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trialId")

	if e, ok := s.app.Catalog.Get(id); ok {
		respondJSON(w, http.StatusOK, newTrialResponse(e))
		return
	}

	// inactive trials are only in the store
	st, err := s.app.Store.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, "trial not found", err)
		return
	}
	respondJSON(w, http.StatusOK, newTrialResponse(&catalog.Entry{Stored: *st}))
}

func (s *Server) handleUpdateTrial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trialId")

	var req UpdateTrialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Config.TrialID == "" {
		req.Config.TrialID = id
	}
	if req.Config.TrialID != id {
		respondError(w, http.StatusBadRequest, "trialId in body does not match the path", nil)
		return
	}
	active := req.Active == nil || *req.Active

	e, err := s.app.Catalog.Update(r.Context(), req.Config, active)
	if err != nil {
		respondStoreError(w, "failed to update trial", err)
		return
	}
	respondJSON(w, http.StatusOK, newTrialResponse(e))
}

func (s *Server) handleDeleteTrial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trialId")

	if err := s.app.Catalog.Remove(r.Context(), id); err != nil {
		respondStoreError(w, "failed to delete trial", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Patient) == 0 {
		respondError(w, http.StatusBadRequest, "patient is required", nil)
		return
	}

	record, err := patient.Load(bytes.NewReader(req.Patient))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid patient record", err)
		return
	}

	trials := s.app.Catalog.Trials()
	if len(req.Trials) > 0 {
		if trials, err = s.app.Catalog.Select(req.Trials); err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, store.ErrNotFound) {
				status = http.StatusNotFound
			}
			respondError(w, status, "trials cannot be matched", err)
			return
		}
	}

	runID := uuid.New().String()
	start := time.Now()
	matches, err := s.app.Matcher.DetermineEligibility(r.Context(), record, trials)
	summary := match.Summarize(matches)
	metrics.ObserveMatch(start, summary, err)
	if err != nil {
		logger.ErrorEvaluator("matching failed", "runId", runID, "patient", record.PatientID, "error", err)
		respondError(w, http.StatusInternalServerError, "matching failed", err)
		return
	}

	logger.Info("patient matched",
		"runId", runID,
		"patient", record.PatientID,
		"trials", summary.Trials,
		"potentiallyEligible", summary.PotentiallyEligibleTrials,
	)
	respondJSON(w, http.StatusOK, MatchResponse{
		RunID:          runID,
		PatientID:      record.PatientID,
		Summary:        summary,
		Matches:        matches,
		EvaluationTime: time.Since(start).String(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func respondStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, store.ErrExists):
		respondError(w, http.StatusConflict, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, message, err)
	default:
		var invalid *trial.InvalidConfigError
		if errors.As(err, &invalid) {
			respondError(w, http.StatusBadRequest, message, err)
			return
		}
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	respondJSON(w, status, ErrorResponse{Error: message, Details: errorDetails(err)})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to start", "error", err)
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewServer(a),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	_ = logger.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
