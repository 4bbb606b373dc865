package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/levelbgm/previewd/internal/ledger"
	"github.com/levelbgm/previewd/internal/preview"
)

// Converter runs one preview request.
type Converter interface {
	Convert(ctx context.Context, req preview.Request) (preview.Outcome, error)
}

// History lists recent conversions.
type History interface {
	List(ctx context.Context, limit int) ([]*ledger.Entry, error)
}

// ToolStatus is the result of the startup ffmpeg probe.
type ToolStatus struct {
	Path      string
	Available bool
	Error     string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr        string
	Converter   Converter
	History     History // nil disables /conversions
	Tool        ToolStatus
	StoreDriver string
	APIToken    string // empty disables auth
	Logger      *slog.Logger
	StartTime   time.Time
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
