package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cipher241/Smart-Cities-Banorte/internal/monitor"
	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
	"github.com/cipher241/Smart-Cities-Banorte/internal/training"
)

// MaxUploadBytes bounds a request to /api/analyze.
const MaxUploadBytes = 16 << 20

// Analyzer scores one document on disk.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) (map[string]any, error)
}

type Options struct {
	Port               int
	APIToken           string
	UploadDir          string
	Model              string
	TrainingStatePath  string
	WarehouseStatePath string
}

type Server struct {
	router   *chi.Mux
	opts     Options
	analyzer Analyzer
	ledger   *storage.Ledger
	logger   *slog.Logger
}

// NewServer wires the routes. ledger may be nil.
func NewServer(opts Options, analyzer Analyzer, ledger *storage.Ledger, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		opts:     opts,
		analyzer: analyzer,
		ledger:   ledger,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Route("/api", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Get("/v1/status", s.status)
		r.Post("/analyze", s.analyze)
	})

	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Servidor activo"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"service": "banorte",
		"status":  "ok",
		"model":   s.opts.Model,
	}
	if s.ledger != nil {
		body["documents"] = s.ledger.Counts()
	}
	if s.opts.TrainingStatePath != "" {
		body["training"] = training.LoadState(s.opts.TrainingStatePath)
	}
	if s.opts.WarehouseStatePath != "" {
		body["warehouse"] = monitor.LoadWarehouseState(s.opts.WarehouseStatePath)
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
