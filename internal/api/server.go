package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/NarendraPati1/deIdentifier/internal/config"
	"github.com/NarendraPati1/deIdentifier/internal/detect"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
	"github.com/NarendraPati1/deIdentifier/internal/store"
)

// HistoryStore is the redaction log as seen by the handlers.
type HistoryStore interface {
	pipeline.Recorder
	History(ctx context.Context, userID string) ([]store.Redaction, error)
	Sessions(ctx context.Context, userID string) ([]store.SessionRow, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP API server for the de-identification service.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        HistoryStore
	oracleStats  *detect.LatencyStats
	ocrReady     bool
	log          *slog.Logger
	cfg          config.Config
	now          func() time.Time
}

// NewServer creates and configures the HTTP server. st and oracleStats may
// be nil when persistence or a real oracle is not configured.
func NewServer(orch *pipeline.Orchestrator, st HistoryStore, oracleStats *detect.LatencyStats, ocrReady bool, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        st,
		oracleStats:  oracleStats,
		ocrReady:     ocrReady,
		log:          log,
		cfg:          cfg,
		now:          time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/process-files", s.handleProcessFiles)
		r.Post("/api/sessions", s.handleSubmitSession)
		r.Get("/api/sessions/{jobID}", s.handleSessionStatus)
		r.Post("/api/download-results", s.handleDownloadResults)

		r.Get("/api/redactions-history/{userID}", s.handleRedactionsHistory)
		r.Get("/api/sessions-history/{userID}", s.handleSessionsHistory)
		r.Get("/api/stats/oracle", s.handleOracleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	detection := "demo"
	if s.orchestrator.Pipeline().DetectionAvailable() {
		detection = "oracle"
	}

	storeStatus := "disabled"
	if s.store != nil {
		storeStatus = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			storeStatus = "error: " + err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                  "ok",
		"timestamp":               s.now().UTC().Format(time.RFC3339),
		"detection":               detection,
		"pii_detection_available": detection == "oracle",
		"ocr_available":           s.ocrReady,
		"queue_depth":             s.orchestrator.QueueDepth(),
		"store":                   storeStatus,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
