// Package server exposes the branchq REST API over chi.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/branchq/internal/branch"
	"github.com/me/branchq/internal/config"
	"github.com/me/branchq/internal/journal"
)

// Server is the branchq REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	branches  *branch.Service
	journal   journal.Journal
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithJournal exposes the activity journal on the visit history
// endpoints.
func WithJournal(j journal.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, branches *branch.Service, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		branches:  branches,
		journal:   journal.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		r.Route("/branches", func(r chi.Router) {
			r.Get("/", s.handleListBranches)

			r.Route("/{branchID}", func(r chi.Router) {
				r.Get("/", s.handleGetBranch)

				// Entry point: visit creation
				r.Post("/visits", s.handleCreateVisit)

				// Queues
				r.Route("/queues", func(r chi.Router) {
					r.Get("/", s.handleListQueues)
					r.Get("/{queueID}", s.handleGetQueue)
				})

				// Visits addressed directly
				r.Route("/visits/{visitID}", func(r chi.Router) {
					r.Get("/", s.handleGetVisit)
					r.Delete("/", s.handleDeleteVisit)
					r.Get("/events", s.handleVisitEvents)
					r.Get("/available-service-points", s.handleAvailableServicePoints)
					r.Post("/transfer/queue", s.handleTransferToQueue)
					r.Post("/transfer/user-pool", s.handleTransferToUserPool)
					r.Post("/transfer/service-point-pool", s.handleTransferToServicePointPool)
				})

				// Service point operations
				r.Route("/service-points/{servicePointID}", func(r chi.Router) {
					r.Get("/", s.handleGetServicePoint)
					r.Post("/open", s.handleOpenServicePoint)
					r.Post("/close", s.handleCloseServicePoint)
					r.Put("/work-profile", s.handleChangeWorkProfile)
					r.Put("/auto-call", s.handleSetAutoCall)

					r.Post("/call-next", s.handleCallNext)
					r.Post("/call", s.handleCallVisit)
					r.Post("/recall", s.handleRecall)
					r.Post("/start-serving", s.handleStartServing)
					r.Post("/stop-serving", s.handleStopServing)
					r.Post("/no-show", s.handleNoShow)
					r.Post("/end", s.handleEndVisit)

					r.Post("/back/queue", s.handleBackToQueue)
					r.Post("/back/user-pool", s.handleBackToUserPool)
					r.Post("/back/service-point-pool", s.handleBackToServicePointPool)

					r.Post("/services", s.handleAddService)
					r.Post("/marks", s.handleAddMark)
					r.Delete("/marks/{markID}", s.handleDeleteMark)
					r.Post("/notes", s.handleAddNote)
					r.Delete("/notes/{markID}", s.handleDeleteNote)
				})
			})
		})

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/branches/{branchID}/queues/{queueID}", s.handleSSEQueue)
		})
	})
}
