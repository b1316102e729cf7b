// Package web wires the HTTP API together.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/enroll"
	"github.com/facegate/facegate/internal/quality"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/vecindex"
	"github.com/facegate/facegate/internal/web/handlers"
	"github.com/facegate/facegate/internal/web/middleware"
)

// Deps carries the externally constructed dependencies of the server.
type Deps struct {
	Identities store.IdentityStore
	Attendance store.AttendanceWriter
	Faces      handlers.FaceClient
	Index      *vecindex.Manager
	// DB is optional; nil drops the database probe from the health check.
	DB handlers.Pinger
}

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		router: r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS())

	// Set up routes
	s.setupRoutes(deps)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // enrollment batches upload several images
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(deps Deps) {
	assessor := quality.NewAssessor(s.config.Quality)
	aggregator := enroll.NewAggregator(assessor, deps.Faces, s.config.Enrollment.MinQuality)
	matcher := vecindex.NewMatcher(deps.Index, s.config.Recognition.Threshold, s.config.Recognition.TopK)

	healthHandler := handlers.NewHealthHandler(deps.Index, deps.DB)
	enrollHandler := handlers.NewEnrollHandler(s.config, deps.Identities, aggregator, deps.Index)
	identifyHandler := handlers.NewIdentifyHandler(deps.Faces, matcher, deps.Identities)
	attendanceHandler := handlers.NewAttendanceHandler(identifyHandler, deps.Attendance)
	faceHandler := handlers.NewFaceHandler(deps.Faces, assessor, s.config.Enrollment.MinQuality)
	adminHandler := handlers.NewAdminHandler(deps.Index, deps.Identities)

	s.router.Get("/api/v1/health", healthHandler.Health)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/enroll", enrollHandler.Enroll)
		r.Post("/identify", identifyHandler.Identify)
		r.Post("/attendance/check-in", attendanceHandler.CheckIn)
		r.Post("/face/detect", faceHandler.Detect)
		r.Post("/face/quality-check", faceHandler.QualityCheck)

		// Admin routes behind the static bearer token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.config.Server.AdminToken))

			r.Post("/admin/rebuild", adminHandler.Rebuild)
			r.Get("/admin/index", adminHandler.IndexInfo)
			r.Delete("/admin/identities/{id}", func(w http.ResponseWriter, req *http.Request) {
				id, err := parsePersonID(chi.URLParam(req, "id"))
				if err != nil {
					http.Error(w, "invalid person id", http.StatusBadRequest)
					return
				}
				enrollHandler.Deactivate(w, req, id)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

func parsePersonID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid person id %q", raw)
	}
	return id, nil
}
