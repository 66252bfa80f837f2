package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sekachev/whisper-api/internal/whisper"
	"go.uber.org/zap"
)

const (
	defaultMaxUploadBytes = 512 << 20
	defaultShutdownGrace  = 10 * time.Second
)

type Options struct {
	Port        int
	Model       string
	Language    string
	EngineName  string
	SilenceGate bool
	SilenceDBFS float64

	MaxUploadBytes int64
	ShutdownGrace  time.Duration

	// ResolveModel prepares the model file (downloading it when allowed)
	// and returns its path. It runs lazily on the first transcription, so
	// server startup stays instant; subsequent requests reuse the result.
	ResolveModel func(ctx context.Context) (string, error)

	// ModelReady reports whether the model file is already on disk. Only
	// used by GET /models.
	ModelReady func() bool
}

type Server struct {
	opts   Options
	engine whisper.Engine
	logger *zap.Logger

	modelMu   sync.Mutex
	modelPath string
	resolved  bool
}

func New(opts Options, engine whisper.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}
	if opts.Model == "" {
		opts.Model = whisper.DefaultModel
	}
	if opts.Language == "" {
		opts.Language = "auto"
	}
	if opts.EngineName == "" {
		opts.EngineName = "bundled"
	}
	if opts.ResolveModel == nil {
		opts.ResolveModel = func(context.Context) (string, error) { return "", nil }
	}
	if opts.ModelReady == nil {
		opts.ModelReady = func() bool { return false }
	}

	return &Server{
		opts:   opts,
		engine: engine,
		logger: logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/models", s.handleModels)
	r.Post("/transcribe", s.handleTranscribe)

	return r
}

// ListenAndServe runs the HTTP server until the context is cancelled, then
// drains in-flight requests for the configured grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.opts.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	s.logger.Info("server started", zap.Int("port", s.opts.Port), zap.String("engine", s.opts.EngineName), zap.String("model", s.opts.Model))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.Duration("grace", s.opts.ShutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownGrace)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ensureModel resolves the model once and caches the path, so concurrent
// first requests trigger a single download.
func (s *Server) ensureModel(ctx context.Context) (string, error) {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	if s.resolved {
		return s.modelPath, nil
	}

	path, err := s.opts.ResolveModel(ctx)
	if err != nil {
		return "", err
	}

	s.modelPath = path
	s.resolved = true
	return path, nil
}
