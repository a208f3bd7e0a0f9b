package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/config"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/worker"
	"whatsapp-course-delivery/internal/usecase"
)

// Server is the HTTP surface: the provider webhook, health and metrics, and
// the JWT-guarded operator API.
type Server struct {
	verifyToken string
	reconciler  usecase.ReconcilerUseCase
	pool        *worker.Pool
	jobs        repository.JobRepository
	enq         usecase.Enqueuer
	auth        *AuthManager
	log         *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(
	cfg config.WebConfig,
	verifyToken string,
	reconciler usecase.ReconcilerUseCase,
	pool *worker.Pool,
	jobs repository.JobRepository,
	enq usecase.Enqueuer,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		verifyToken: verifyToken,
		reconciler:  reconciler,
		pool:        pool,
		jobs:        jobs,
		enq:         enq,
		auth:        NewAuthManager(cfg.AdminSecret, 30*time.Minute),
		log:         &compLog,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(traceID)
	r.Use(recoverer(logger))
	r.Use(requestLog(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/webhook", s.handleWebhookVerify)
	r.Post("/webhook", s.handleWebhookEvents)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(timeout(10 * time.Second))
		r.Post("/auth/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Guard)
			r.Get("/jobs", s.handleJobsList)
			r.Post("/jobs", s.handleJobsCreate)
		})
	})
	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
