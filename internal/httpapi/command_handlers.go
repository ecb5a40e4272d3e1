package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/bus"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/inbox"
	"github.com/rosterhq/control-plane/internal/reactor"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/router"
)

// CommandHandlers serves the operator-facing /commands surface: synchronous
// agent-chat proxying and asynchronous workflow initiation, grounded in the
// original implementation's roster_api commands endpoints.
type CommandHandlers struct {
	teams     *registry.Registry[resources.TeamSpec, resources.NoStatus]
	workflows *registry.WorkflowRegistry
	agents    reactor.AgentExecutor
	bus       bus.Bus
}

func NewCommandHandlers(teams *registry.Registry[resources.TeamSpec, resources.NoStatus], workflows *registry.WorkflowRegistry, agents reactor.AgentExecutor, b bus.Bus) *CommandHandlers {
	return &CommandHandlers{teams: teams, workflows: workflows, agents: agents, bus: b}
}

func (h *CommandHandlers) Register(group *echo.Group) {
	group.POST("/agent-chat", h.ChatPromptAgent)
	group.POST("/initiate-workflow", h.InitiateWorkflow)
}

// ChatPromptAgent resolves team -> role -> agent and synchronously proxies
// the prompt to that Agent's runtime, returning its reply. A missing team,
// a role with no bound agent, or an agent runtime reporting not-ready all
// surface as 404, matching chat_prompt_agent's TeamNotFoundError /
// TeamMemberNotFoundError / AgentNotReadyError handling.
func (h *CommandHandlers) ChatPromptAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var args resources.ChatPromptAgentArgs
	if err := c.Bind(&args); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if args.Team == "" || args.Role == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "team and role are required"})
	}

	team, err := h.teams.Get(ctx, args.Team, namespaceOf(c))
	if err != nil {
		return writeError(c, err)
	}

	agentName, err := inbox.ResolveAgent(team.Spec, args.Role)
	if err != nil {
		return writeError(c, err)
	}

	executionID := c.Request().Header.Get("X-Execution-ID")
	executionType := c.Request().Header.Get("X-Execution-Type")

	reply, err := h.agents.ChatPromptAgent(ctx, agentName, args, executionID, executionType)
	if err != nil {
		return writeError(c, err)
	}
	if reply.Sender == "" {
		reply.Sender = team.Spec.RoleDescription(args.Role)
	}
	return c.JSON(http.StatusOK, reply)
}

// InitiateWorkflow looks up the named WorkflowSpec and publishes an
// initiate_workflow WorkflowMessage to the Workflow Router's queue,
// returning the new record id immediately. The router, not this handler,
// does the actual record creation and DAG triggering.
func (h *CommandHandlers) InitiateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Workflow  string            `json:"workflow"`
		Inputs    map[string]string `json:"inputs"`
		Workspace string            `json:"workspace,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Workflow == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workflow is required"})
	}

	if _, err := h.workflows.Get(ctx, req.Workflow, namespaceOf(c)); err != nil {
		return writeError(c, err)
	}

	recordID := uuid.NewString()
	body, err := router.EncodeInitiate(recordID, req.Workflow, resources.InitiateWorkflowPayload{
		Inputs:    req.Inputs,
		Workspace: req.Workspace,
	})
	if err != nil {
		return writeError(c, roerrors.Wrap(roerrors.KindGeneric, "encode initiate_workflow message", err))
	}

	if err := h.bus.Publish(ctx, router.RouterQueueName, body); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"id": recordID, "workflow": req.Workflow})
}
