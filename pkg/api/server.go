// Package api exposes the control plane over HTTP: investigation
// submission and reads, the WebSocket streaming endpoint, health, and
// metrics.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ufflow/oats/pkg/config"
	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/services"
)

// InvestigationAPI is the service surface the handlers need.
// Implemented by services.InvestigationService.
type InvestigationAPI interface {
	Create(ctx context.Context, in services.CreateInput) (*models.Investigation, error)
	Get(id string) (*models.Investigation, error)
	List() []*models.Investigation
	Cancel(ctx context.Context, id string) error
	EventLog(ctx context.Context, id string) ([]*models.Event, error)
	StreamLogs(ctx context.Context, id string, follow bool) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

// Server is the control plane's HTTP server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	investigations InvestigationAPI
	streams        StreamHandler
	metricsHandler http.Handler
	cfg            config.ServerConfig
}

// NewServer assembles the router. streams and metricsHandler may be nil
// (the corresponding endpoints then answer 503 / 404).
func NewServer(cfg config.ServerConfig, investigations InvestigationAPI, streams StreamHandler, metricsHandler http.Handler) *Server {
	s := &Server{
		investigations: investigations,
		streams:        streams,
		metricsHandler: metricsHandler,
		cfg:            cfg,
	}

	e := echo.New()
	e.Use(securityHeaders())

	e.POST("/investigate", s.startInvestigationHandler)
	e.GET("/investigations", s.listInvestigationsHandler)
	e.GET("/investigations/:id", s.getInvestigationHandler)
	e.DELETE("/investigations/:id", s.cancelInvestigationHandler)
	e.GET("/investigations/:id/logs", s.investigationLogsHandler)
	e.GET("/ws", s.wsHandler)
	e.GET("/healthz", s.healthHandler)
	if metricsHandler != nil {
		e.GET("/metrics", func(c *echo.Context) error {
			s.metricsHandler.ServeHTTP(c.Response(), c.Request())
			return nil
		})
	}

	s.echo = e
	return s
}

// Start listens on addr and serves until Shutdown or a fatal error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}
