package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lveraszto/hubot-slack/internal/brain"
)

// UserDirectory is the read side of the brain.
type UserDirectory interface {
	Get(id string) (brain.User, bool)
	Users() []brain.User
}

// UsersHandler exposes the brain's user records.
type UsersHandler struct {
	users  UserDirectory
	logger *slog.Logger
}

// ListUsersResponse is the GET /api/users body.
type ListUsersResponse struct {
	Items []brain.User `json:"items"`
	Total int          `json:"total"`
}

func NewUsersHandler(log *slog.Logger, users UserDirectory) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		users:  users,
		logger: log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	group := e.Group("/api/users")
	group.GET("", h.ListUsers)
	group.GET("/:id", h.GetUser)
}

// ListUsers godoc
// @Summary List users
// @Description List every user stored in the brain, ordered by id
// @Tags users
// @Success 200 {object} ListUsersResponse
// @Router /api/users [get]
func (h *UsersHandler) ListUsers(c echo.Context) error {
	items := h.users.Users()
	return c.JSON(http.StatusOK, ListUsersResponse{Items: items, Total: len(items)})
}

// GetUser godoc
// @Summary Get user
// @Tags users
// @Param id path string true "Slack user id"
// @Success 200 {object} brain.User
// @Failure 404 {object} ErrorResponse
// @Router /api/users/{id} [get]
func (h *UsersHandler) GetUser(c echo.Context) error {
	id := c.Param("id")
	u, ok := h.users.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}
