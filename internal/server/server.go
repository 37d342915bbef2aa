// Package server provides the HTTP server and Echo setup for the robot's control API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/lveraszto/hubot-slack/internal/auth"
)

// Server is the HTTP server (Echo) with request logging, rate limiting, optional JWT and registered handlers.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Options configures the middleware stack. An empty JWTSecret leaves /api open;
// a non-positive RateLimit disables throttling.
type Options struct {
	Addr         string
	JWTSecret    string
	RateLimit    float64
	ErrorHandler echo.HTTPErrorHandler
}

// NewServer builds the Echo server with recovery, request logging, /api throttling and auth, and the given handlers.
func NewServer(log *slog.Logger, opts Options, handlers ...Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.ErrorHandler != nil {
		e.HTTPErrorHandler = opts.ErrorHandler
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	if opts.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: publicPath,
			Store:   middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimit)),
		}))
	}
	if secret := strings.TrimSpace(opts.JWTSecret); secret != "" {
		e.Use(auth.JWTMiddleware(secret, publicPath))
	}

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "server")),
	}
}

// publicPath skips everything outside /api.
func publicPath(c echo.Context) bool {
	path := c.Request().URL.Path
	return path != "/api" && !strings.HasPrefix(path, "/api/")
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Start starts the HTTP server (blocks until shutdown).
func (s *Server) Start() error {
	s.logger.Info("http api listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
