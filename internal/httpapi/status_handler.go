package httpapi

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/statusingest"
)

// StatusHandler serves the Agent runtime's /status-update callback, the
// only HTTP path that may mutate AgentStatus.
type StatusHandler struct {
	ingest *statusingest.Ingest
}

func NewStatusHandler(ingest *statusingest.Ingest) *StatusHandler {
	return &StatusHandler{ingest: ingest}
}

func (h *StatusHandler) Register(group *echo.Group) {
	group.POST("", h.Put)
}

// statusEvent is the wire body an Agent runtime posts on every status
// transition. HostIP is never trusted from the body: it is stamped from
// the request's peer address so a runtime cannot claim to be reporting
// from a host it isn't.
type statusEvent struct {
	Name      string                   `json:"name"`
	Namespace string                   `json:"namespace,omitempty"`
	Status    string                   `json:"status"`
	Container *resources.ContainerInfo `json:"container,omitempty"`
	Deleted   bool                     `json:"deleted,omitempty"`
}

func (h *StatusHandler) Put(c echo.Context) error {
	ctx := c.Request().Context()

	var ev statusEvent
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if ev.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	namespace := ev.Namespace
	if namespace == "" {
		namespace = namespaceOf(c)
	}

	if ev.Deleted {
		if err := h.ingest.Delete(ctx, ev.Name, namespace); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	status := resources.AgentStatus{
		Name:      ev.Name,
		Status:    ev.Status,
		HostIP:    peerIP(c),
		Container: ev.Container,
	}

	res, err := h.ingest.Put(ctx, ev.Name, namespace, status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// peerIP strips the port from the request's remote address, falling back
// to the raw address if it isn't in host:port form.
func peerIP(c echo.Context) string {
	addr := c.Request().RemoteAddr
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
