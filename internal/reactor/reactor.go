// Package reactor implements the Resource Reactor pattern (component H),
// exemplified here by AgentController: a controller that subscribes to an
// Informer's events and reconciles desired Agent state against the actual
// state of an Agent runtime.
//
// Boot path and dispatch shape are grounded directly in the original Task
// controller: start the informer, perform one full concurrent
// reconciliation pass, then attach an event listener for subsequent
// changes.
package reactor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rosterhq/control-plane/internal/changefeed"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
)

// AgentController reconciles AgentSpec/AgentStatus resources by calling out
// to an Agent runtime. It never writes AgentStatus itself — that remains
// the exclusive province of Status Ingest (component J); the controller's
// job is the side effect (assign/cancel), not the bookkeeping.
type AgentController struct {
	informer *changefeed.Informer[resources.AgentResource]
	executor AgentExecutor
	log      *logger.Logger
}

// NewAgentController constructs an AgentController.
func NewAgentController(informer *changefeed.Informer[resources.AgentResource], executor AgentExecutor, log *logger.Logger) *AgentController {
	return &AgentController{informer: informer, executor: executor, log: log}
}

// Setup performs the reactor boot path: the Informer is assumed to already
// be set up by the caller, so this performs the full reconciliation pass and then
// attaches this controller's own event listener.
func (c *AgentController) Setup(ctx context.Context) error {
	if err := c.reconcileAll(ctx); err != nil {
		return roerrors.Wrap(roerrors.KindSetup, "agent controller initial reconciliation", err)
	}
	c.informer.AddEventListener(c.handleEvent)
	return nil
}

// reconcileAll reconciles every cached Agent concurrently (spec §4.H:
// "gathered concurrently"), isolating per-agent failures.
func (c *AgentController) reconcileAll(ctx context.Context) error {
	snapshot := c.informer.ListResources()

	g, gctx := errgroup.WithContext(ctx)
	for name, agent := range snapshot {
		name, agent := name, agent
		g.Go(func() error {
			c.reconcileOne(gctx, name, agent)
			return nil
		})
	}
	return g.Wait()
}

func (c *AgentController) handleEvent(ctx context.Context, ev changefeed.ResourceEvent) error {
	switch ev.Type {
	case changefeed.EventPut:
		agent, ok := c.informer.Get(ev.Name)
		if !ok {
			return nil
		}
		c.reconcileOne(ctx, ev.Name, agent)
	case changefeed.EventDelete:
		c.cancelOne(ctx, ev.Name)
	}
	return nil
}

// reconcileOne assigns the Agent to the runtime if its status is still
// pending. Handlers are reentrant: calling this twice for an
// already-running agent is a harmless duplicate assign.
func (c *AgentController) reconcileOne(ctx context.Context, name string, agent resources.AgentResource) {
	if agent.Status.Status != resources.AgentStatusPending {
		return
	}
	if err := c.executor.AssignAgent(ctx, agent.Spec); err != nil {
		c.log.Warn("agent controller: assign failed, will retry on next event", "agent", name, "error", err)
	}
}

func (c *AgentController) cancelOne(ctx context.Context, name string) {
	if err := c.executor.CancelAgent(ctx, name); err != nil {
		c.log.Warn("agent controller: cancel failed", "agent", name, "error", err)
	}
}
