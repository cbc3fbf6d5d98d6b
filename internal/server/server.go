// Package server exposes the ingestion, job and leaderboard HTTP API.
package server

import (
	"net/http"

	"demo-ingest/internal/config"
	"demo-ingest/internal/constants"
	"demo-ingest/internal/middleware"
	"demo-ingest/internal/service"
	"demo-ingest/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	tracker      *service.JobTracker
	registry     *service.Registry
	ingestor     *service.Ingestor
	orchestrator *service.Orchestrator
	aggregator   *service.Aggregator
	leaderboards *service.LeaderboardCalculator
	groups       *service.GroupService
	validator    *validation.Validator
	apiKey       string
	logger       zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	tracker *service.JobTracker,
	registry *service.Registry,
	ingestor *service.Ingestor,
	orchestrator *service.Orchestrator,
	aggregator *service.Aggregator,
	leaderboards *service.LeaderboardCalculator,
	groups *service.GroupService,
	validator *validation.Validator,
	logger zerolog.Logger,
) *Server {
	return &Server{
		tracker:      tracker,
		registry:     registry,
		ingestor:     ingestor,
		orchestrator: orchestrator,
		aggregator:   aggregator,
		leaderboards: leaderboards,
		groups:       groups,
		validator:    validator,
		apiKey:       cfg.IngestAPIKey,
		logger:       logger,
	}
}

// Router builds the chi route tree. Everything except /healthz and /metrics
// requires the shared API key; the routes the parser calls are rate limited per IP.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(s.apiKey))

		r.Route("/job", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(constants.IngestRateLimit, constants.IngestRateLimitWindow))
				r.Post("/{jobId}/event/{eventName}", s.handleIngestEvents)
				r.Post("/{jobId}/match", s.handleRegisterMatch)
				r.Post("/callback/progress", s.handleProgressCallback)
				r.Post("/callback/completion", s.handleCompletionCallback)
			})
			r.Get("/{jobId}", s.handleGetJob)
		})

		r.Post("/demos", s.handleSubmitDemo)
		r.Post("/matches/{matchId}/reprocess", s.handleReprocessMatch)

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", s.handleCreateGroup)
			r.Get("/{groupId}", s.handleGetGroup)
			r.Post("/{groupId}/members", s.handleAddMembers)
			r.Get("/{groupId}/leaderboards/{type}", s.handleLeaderboard)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
