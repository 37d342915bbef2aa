package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lveraszto/hubot-slack/internal/robot"
)

// Messenger is the outbound side of the robot.
type Messenger interface {
	Send(ctx context.Context, env robot.Envelope, texts ...string) error
	SetTopic(ctx context.Context, env robot.Envelope, lines ...string) error
}

// RoomsHandler lets operators post messages and set topics through the robot.
type RoomsHandler struct {
	robot  Messenger
	logger *slog.Logger
}

// SendMessageRequest is the POST /api/rooms/:room/messages body.
// ThreadTS posts into an existing thread.
type SendMessageRequest struct {
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// SetTopicRequest is the PUT /api/rooms/:room/topic body.
type SetTopicRequest struct {
	Topic string `json:"topic"`
}

func NewRoomsHandler(log *slog.Logger, r Messenger) *RoomsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoomsHandler{robot: r, logger: log.With(slog.String("handler", "rooms"))}
}

func (h *RoomsHandler) Register(e *echo.Echo) {
	group := e.Group("/api/rooms")
	group.POST("/:room/messages", h.SendMessage)
	group.PUT("/:room/topic", h.SetTopic)
}

// SendMessage godoc
// @Summary Send a message
// @Tags rooms
// @Param room path string true "Slack conversation id"
// @Param payload body SendMessageRequest true "Message"
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/rooms/{room}/messages [post]
func (h *RoomsHandler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	env := robot.Envelope{Room: c.Param("room")}
	if req.ThreadTS != "" {
		env.Message = &robot.TextMessage{ThreadTS: req.ThreadTS}
	}
	if err := h.robot.Send(c.Request().Context(), env, req.Text); err != nil {
		return h.upstreamError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// SetTopic godoc
// @Summary Set the conversation topic
// @Tags rooms
// @Param room path string true "Slack conversation id"
// @Param payload body SetTopicRequest true "Topic"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/rooms/{room}/topic [put]
func (h *RoomsHandler) SetTopic(c echo.Context) error {
	var req SetTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	env := robot.Envelope{Room: c.Param("room")}
	if err := h.robot.SetTopic(c.Request().Context(), env, req.Topic); err != nil {
		return h.upstreamError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomsHandler) upstreamError(err error) error {
	if errors.Is(err, robot.ErrNoAdapter) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	h.logger.Error("robot call failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
