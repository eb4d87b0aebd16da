package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/subi-vn/subiocr/internal/config"
	"github.com/subi-vn/subiocr/internal/ocr"
	"github.com/subi-vn/subiocr/internal/pipeline"
)

// Server is the HTTP API server for subiocr.
type Server struct {
	router       chi.Router
	processor    *pipeline.Processor
	orchestrator *pipeline.Orchestrator
	engine       ocr.Engine
	stats        *ocr.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(proc *pipeline.Processor, orch *pipeline.Orchestrator, engine ocr.Engine, stats *ocr.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		processor:    proc,
		orchestrator: orch,
		engine:       engine,
		stats:        stats,
		log:          log,
		cfg:          cfg,
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

	// Public endpoints. The synchronous extraction route stays open like
	// the service it replaced; bearer auth covers the /api surface only.
	r.Get("/", s.handleRoot)
	r.Get("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Post("/ocrAndFill", s.handleOCRAndFill)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/ocr/jobs", s.handleSubmitJob)
		r.Get("/api/ocr/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/ocr", s.handleOCRStats)
	})

	s.router = r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"Subi OCR service is running"}`))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"pong"}`))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
