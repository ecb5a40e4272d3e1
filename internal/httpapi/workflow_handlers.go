package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

// WorkflowHandlers mirrors ResourceHandlers' CRUD shape but against
// *registry.WorkflowRegistry, which isn't a bare registry.Registry[S,ST]
// since Create/Update also recompute the step graph's topological order.
type WorkflowHandlers struct {
	workflows *registry.WorkflowRegistry
}

func NewWorkflowHandlers(workflows *registry.WorkflowRegistry) *WorkflowHandlers {
	return &WorkflowHandlers{workflows: workflows}
}

func (h *WorkflowHandlers) Register(group *echo.Group) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:name", h.Get)
	group.PATCH("/:name", h.Update)
	group.DELETE("/:name", h.Delete)
}

func (h *WorkflowHandlers) Create(c echo.Context) error {
	var spec resources.WorkflowSpec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if spec.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	res, err := h.workflows.Create(c.Request().Context(), spec.Name, namespaceOf(c), spec)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *WorkflowHandlers) Get(c echo.Context) error {
	res, err := h.workflows.Get(c.Request().Context(), c.Param("name"), namespaceOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *WorkflowHandlers) List(c echo.Context) error {
	list, err := h.workflows.List(c.Request().Context(), namespaceOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *WorkflowHandlers) Update(c echo.Context) error {
	var spec resources.WorkflowSpec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	res, err := h.workflows.Update(c.Request().Context(), c.Param("name"), namespaceOf(c), spec)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *WorkflowHandlers) Delete(c echo.Context) error {
	if err := h.workflows.Delete(c.Request().Context(), c.Param("name"), namespaceOf(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
