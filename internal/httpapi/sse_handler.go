package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/registry"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/sse"
)

// subscriptionBufferSize bounds each SSE client's fanout channel; a slow
// reader drops events rather than stalling the shared dispatch loop.
const subscriptionBufferSize = 64

// SSEHandler serves GET /resource-events: a long-lived, filtered
// server-sent-events stream over the shared change feed.
type SSEHandler struct {
	projection *sse.Projection
}

func NewSSEHandler(projection *sse.Projection) *SSEHandler {
	return &SSEHandler{projection: projection}
}

func (h *SSEHandler) Register(group *echo.Group) {
	group.GET("", h.Stream)
}

func (h *SSEHandler) Stream(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return writeError(c, err)
	}

	req := c.Request()
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	sub := h.projection.Subscribe(req.Context(), filter, subscriptionBufferSize)
	defer sub.Close()

	for {
		select {
		case <-req.Context().Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if err := writeSSEEvent(resp, ev); err != nil {
				return nil
			}
		}
	}
}

func writeSSEEvent(resp *echo.Response, ev any) error {
	body, err := resources.Encode(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", body); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

func parseFilter(c echo.Context) (sse.Filter, error) {
	var types []registry.ResourceType
	if raw := c.QueryParam("resource_types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			types = append(types, registry.ResourceType(part))
		}
	}

	specChanges := queryBool(c, "spec_changes", true)
	statusChanges := queryBool(c, "status_changes", true)

	filter, err := sse.NewFilter(types, specChanges, statusChanges)
	if err != nil {
		return sse.Filter{}, roerrors.Wrap(roerrors.KindInvalidResource, "build resource-events filter", err)
	}
	return filter, nil
}

func queryBool(c echo.Context, key string, defaultValue bool) bool {
	raw := c.QueryParam(key)
	if raw == "" {
		return defaultValue
	}
	return raw == "true" || raw == "1"
}
