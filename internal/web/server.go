package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

// Controller is the part of the orchestrator the operator API drives.
type Controller interface {
	Status() usecase.Status
	Stop() bool
}

// LedgerReader exposes the recorded history of the open session.
type LedgerReader interface {
	Sequences(ctx context.Context) ([]*domain.Sequence, error)
	Alerts(ctx context.Context) ([]*domain.Alert, error)
}

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	ctrl    Controller
	ledger  LedgerReader
	metrics http.Handler
	logger  *zap.Logger
}

func NewServer(
	port int,
	ctrl Controller,
	ledger LedgerReader,
	metrics http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		ctrl:    ctrl,
		ledger:  ledger,
		metrics: metrics,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// History
	s.router.HandleFunc("GET /sequences", s.handleSequences)
	s.router.HandleFunc("GET /alerts", s.handleAlerts)

	// Control
	s.router.HandleFunc("POST /stop", s.handleStop)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
