// Package api serves the project listing, project detail, metadata CRUD
// and queue status over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/queue"
	"github.com/morozRed/engview/internal/scanner"
)

type Deps struct {
	Scanner *scanner.Scanner
	Store   *metadata.Store
	Queue   *queue.Queue // optional
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type Server struct {
	scanner  *scanner.Scanner
	store    *metadata.Store
	queue    *queue.Queue
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	started  time.Time
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		scanner:  deps.Scanner,
		store:    deps.Store,
		queue:    deps.Queue,
		gatherer: deps.Gatherer,
		logger:   logger.Named("api"),
		started:  time.Now(),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", s.handleProjects)
		r.Get("/project/{id}", s.handleProject)
		r.Get("/diagrams", s.handleDiagrams)

		r.Route("/projects/{id}/metadata", func(r chi.Router) {
			r.Get("/", s.handleGetMetadata)
			r.Post("/", s.handleSaveMetadata)
			r.Delete("/", s.handleDeleteMetadata)
		})

		r.Get("/queue/status", s.handleQueueStatus)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())))
	})
}

type healthResponse struct {
	Status string        `json:"status"`
	Uptime string        `json:"uptime"`
	Queue  *queue.Status `json:"queue,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	if s.queue != nil {
		st := s.queue.Status()
		resp.Queue = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, CodeQueueStatus, "Failed to get queue status", "extraction queue is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.queue.Status()})
}
