package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

// ResourceHandlers implements the uniform REST CRUD shape spec §6
// describes for /agents, /identities, /teams, /workflows. S must expose
// its own name via resources.Named so Create doesn't need a URL param
// for it — the body is the single source of truth for a new resource's
// name, matching spec §6's "POST /agents" with AgentSpec as the body.
type ResourceHandlers[S resources.Named, ST any] struct {
	registry *registry.Registry[S, ST]
}

// NewResourceHandlers builds handlers for one kind's Registry.
func NewResourceHandlers[S resources.Named, ST any](reg *registry.Registry[S, ST]) *ResourceHandlers[S, ST] {
	return &ResourceHandlers[S, ST]{registry: reg}
}

// Register wires the standard CRUD routes under group.
func (h *ResourceHandlers[S, ST]) Register(group *echo.Group) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:name", h.Get)
	group.PATCH("/:name", h.Update)
	group.DELETE("/:name", h.Delete)
}

func namespaceOf(c echo.Context) string {
	if ns := c.QueryParam("namespace"); ns != "" {
		return ns
	}
	return registry.DefaultNamespace
}

func (h *ResourceHandlers[S, ST]) Create(c echo.Context) error {
	var spec S
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if spec.ResourceName() == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	res, err := h.registry.Create(c.Request().Context(), spec.ResourceName(), namespaceOf(c), spec)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *ResourceHandlers[S, ST]) Get(c echo.Context) error {
	res, err := h.registry.Get(c.Request().Context(), c.Param("name"), namespaceOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ResourceHandlers[S, ST]) List(c echo.Context) error {
	list, err := h.registry.List(c.Request().Context(), namespaceOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ResourceHandlers[S, ST]) Update(c echo.Context) error {
	var spec S
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	res, err := h.registry.Update(c.Request().Context(), c.Param("name"), namespaceOf(c), spec)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ResourceHandlers[S, ST]) Delete(c echo.Context) error {
	if err := h.registry.Delete(c.Request().Context(), c.Param("name"), namespaceOf(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
