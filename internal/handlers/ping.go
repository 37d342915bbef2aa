package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lveraszto/hubot-slack/internal/version"
)

// ConnectionState reports whether the chat transport is connected.
type ConnectionState interface {
	Connected() bool
}

// PingHandler serves /ping and /health for liveness and readiness.
type PingHandler struct {
	state  ConnectionState
	logger *slog.Logger
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status    string       `json:"status"`
	Connected bool         `json:"connected"`
	Build     version.Info `json:"build"`
}

// NewPingHandler creates a ping handler. A nil state reports disconnected.
func NewPingHandler(log *slog.Logger, state ConnectionState) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{state: state, logger: log.With(slog.String("handler", "ping"))}
}

// Register mounts GET /ping, HEAD /health and GET /health on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/health", h.Health)
}

// Ping returns 200 JSON {"status":"ok"}.
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// PingHead returns 200 No Content for health checks.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Health reports the transport connection and build. It answers 503 while disconnected.
func (h *PingHandler) Health(c echo.Context) error {
	connected := h.state != nil && h.state.Connected()
	resp := HealthResponse{Status: "ok", Connected: connected, Build: version.Current()}
	if !connected {
		resp.Status = "disconnected"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
