package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Server is the dashboard HTTP API.
type Server struct {
	echo    *echo.Echo
	manager *Manager
	hub     *Hub
	log     zerolog.Logger
}

// NewServer registers the /api routes on a fresh echo instance.
func NewServer(manager *Manager, hub *Hub, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogging(log))

	s := &Server{echo: e, manager: manager, hub: hub, log: log}
	g := e.Group("/api")
	g.GET("/state", s.state)
	g.GET("/health", s.health)
	g.GET("/stream", s.stream)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("monitor listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) state(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.State())
}

type healthResponse struct {
	Status          string  `json:"status"`
	LastUpdated     *string `json:"lastUpdated"`
	RefreshInterval float64 `json:"refreshInterval"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:          "ok",
		LastUpdated:     stamp(s.manager.LastUpdated()),
		RefreshInterval: s.manager.Interval().Seconds(),
	})
}

func (s *Server) stream(c echo.Context) error {
	if s.hub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "streaming disabled")
	}
	initial, err := json.Marshal(s.manager.State())
	if err != nil {
		return err
	}
	if err := s.hub.Serve(c.Response(), c.Request(), initial); err != nil {
		s.log.Warn().Err(err).Msg("stream upgrade failed")
	}
	return nil
}

func requestLogging(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			log.Debug().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("http request")
			return nil
		}
	}
}
