package httpapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/integration/github"
)

// GitHubHandler serves POST /github: the External Integration Adapter's
// webhook receiver (component K).
type GitHubHandler struct {
	adapter *github.Adapter
}

func NewGitHubHandler(adapter *github.Adapter) *GitHubHandler {
	return &GitHubHandler{adapter: adapter}
}

func (h *GitHubHandler) Register(group *echo.Group) {
	group.POST("", h.Webhook)
}

func (h *GitHubHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	eventType := c.Request().Header.Get("X-GitHub-Event")
	signature := c.Request().Header.Get("X-Hub-Signature-256")

	if err := h.adapter.HandleWebhook(c.Request().Context(), eventType, signature, body); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}
