// Package httpapi wires the Resource Registry, Workflow Record Store,
// Status Ingest, SSE Change Projection, and External Integration Adapter
// onto a single echo.Echo surface, matching the REST/SSE interface spec
// §6 describes.
package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rosterhq/control-plane/internal/activity"
	"github.com/rosterhq/control-plane/internal/bus"
	"github.com/rosterhq/control-plane/internal/integration/github"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/ratelimit"
	"github.com/rosterhq/control-plane/internal/reactor"
	"github.com/rosterhq/control-plane/internal/records"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/sse"
	"github.com/rosterhq/control-plane/internal/statusingest"
)

// Registries bundles the four Resource Registry instances the HTTP
// surface's CRUD handlers are generated from.
type Registries struct {
	Agents     *registry.Registry[resources.AgentSpec, resources.AgentStatus]
	Identities *registry.Registry[resources.IdentitySpec, resources.NoStatus]
	Teams      *registry.Registry[resources.TeamSpec, resources.NoStatus]
	Workflows  *registry.WorkflowRegistry
}

// Deps collects every component the HTTP API needs to construct its
// handlers. A nil GitHub disables POST /github; a nil RateLimit leaves the
// /commands routes unthrottled.
type Deps struct {
	Registries Registries
	Records    *records.Store
	Activity   *activity.Store
	Ingest     *statusingest.Ingest
	Projection *sse.Projection
	Agents     reactor.AgentExecutor
	Bus        bus.Bus
	GitHub     *github.Adapter // nil disables POST /github
	RateLimit  *ratelimit.Limiter
	Log        *logger.Logger
}

// New builds a fully-wired echo.Echo for the control plane's REST/SSE
// surface. Callers attach it to an http.Server and own its lifecycle.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "control-plane"})
	})

	api := e.Group("/api/v1")

	NewResourceHandlers(deps.Registries.Agents).Register(api.Group("/agents"))
	NewResourceHandlers(deps.Registries.Identities).Register(api.Group("/identities"))
	NewResourceHandlers(deps.Registries.Teams).Register(api.Group("/teams"))
	NewWorkflowHandlers(deps.Registries.Workflows).Register(api.Group("/workflows"))

	NewRecordHandlers(deps.Records, deps.Activity).Register(api.Group("/workflow-records"))

	commands := api.Group("/commands")
	if deps.RateLimit != nil {
		commands.Use(ratelimit.Middleware(deps.RateLimit, 60, 60))
	}
	NewCommandHandlers(deps.Registries.Teams, deps.Registries.Workflows, deps.Agents, deps.Bus).Register(commands)

	NewStatusHandler(deps.Ingest).Register(api.Group("/status-update"))
	NewSSEHandler(deps.Projection).Register(api.Group("/resource-events"))

	if deps.GitHub != nil {
		NewGitHubHandler(deps.GitHub).Register(api.Group("/github"))
	}

	return e
}
