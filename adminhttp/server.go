// Package adminhttp exposes the boss's health, readiness, metrics, and
// worker-inspection surface over HTTP. It is purely observational: nothing
// in this package touches the job queue or the wire protocol.
package adminhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/atomic"

	"github.com/amberarrow/devolve/boss"
	"github.com/amberarrow/devolve/devolvelog"
)

// Server wraps an Echo instance bound to a Pool's observability surface.
type Server struct {
	addr  string
	echo  *echo.Echo
	pool  *boss.Pool
	log   *devolvelog.Logger
	ready *atomic.Bool
}

// New builds a Server for pool. The server is not started until Start is
// called; it is a no-op to construct one for a Pool whose admin surface is
// disabled (addr == "").
func New(addr string, pool *boss.Pool, log *devolvelog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{addr: addr, echo: e, pool: pool, log: log, ready: atomic.NewBool(false)}

	reg := pool.MetricsRegistry().Reg
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "admin",
		Registerer: reg,
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: reg,
	}))
	e.GET("/healthz", s.healthz)
	e.GET("/readyz", s.readyz)
	e.GET("/workers", s.workers)
	return s
}

// Start begins serving in the background. It returns immediately; an empty
// addr (admin surface disabled) is a no-op.
func (s *Server) Start() {
	if s.addr == "" {
		return
	}
	go func() {
		s.ready.Store(true)
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			s.log.Error("adminhttp: server error: %v", err)
		}
	}()
}

// Shutdown stops serving within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.addr == "" {
		return nil
	}
	s.ready.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) readyz(c echo.Context) error {
	if !s.ready.Load() || s.pool.Closed() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}

type workerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PeerAddr  string `json:"peer_addr"`
	RemotePID int    `json:"remote_pid"`
	NJobs     int64  `json:"n_jobs"`
	Status    string `json:"status"`
}

func (s *Server) workers(c echo.Context) error {
	proxies := s.pool.Workers()
	views := make([]workerView, len(proxies))
	for i, p := range proxies {
		views[i] = workerView{
			ID:        p.ID,
			Name:      p.Name,
			PeerAddr:  p.PeerAddr,
			RemotePID: p.RemotePID,
			NJobs:     p.NJobs(),
			Status:    p.Status().String(),
		}
	}
	return c.JSON(http.StatusOK, views)
}
