// Package publicapi exposes the manager's HTTP surface: task submission and
// read-only queries over tasks, workers and payments, plus prometheus
// metrics. This is the boundary an application integrates with; everything
// peer-to-peer stays on the libp2p side.
package publicapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type ServerConfig struct {
	Host string
	Port int

	// Connection deadlines, not handler timeouts.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

var DefaultServerConfig = ServerConfig{
	Host:              "0.0.0.0",
	Port:              1380,
	ReadHeaderTimeout: 10 * time.Second,
	ReadTimeout:       20 * time.Second,
	WriteTimeout:      20 * time.Second,
}

type ServerParams struct {
	Config   ServerConfig
	Endpoint *Endpoint
}

// Server hosts the public REST API over echo.
type Server struct {
	config     ServerConfig
	echoRouter *echo.Echo
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(params ServerParams) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	group := e.Group("/api/v1")
	params.Endpoint.RegisterRoutes(group)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		config:     params.Config,
		echoRouter: e,
		httpServer: &http.Server{
			Handler:           e,
			ReadHeaderTimeout: params.Config.ReadHeaderTimeout,
			ReadTimeout:       params.Config.ReadTimeout,
			WriteTimeout:      params.Config.WriteTimeout,
		},
	}
}

// ListenAndServe binds the configured address and serves in a background
// goroutine. Port 0 picks an ephemeral port; see Address for the bound one.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Ctx(ctx).Error().Err(serveErr).Msg("api server stopped")
		}
	}()

	log.Ctx(ctx).Info().Stringer("address", listener.Addr()).Msg("api server listening")
	return nil
}

// Address returns the bound listen address, valid after ListenAndServe.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
