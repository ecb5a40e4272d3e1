// Package statusingest implements Status Ingest (component J): the sole
// writer of AgentStatus, driven by status reports pushed by Agent runtimes
// (HTTP in production; exercised here via the Ingest method directly).
package statusingest

import (
	"context"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
)

// AgentRegistry is the subset of registry.Registry Status Ingest needs,
// narrowed so tests can substitute a fake if desired.
type AgentRegistry interface {
	UpdateStatus(ctx context.Context, name, namespace string, status resources.AgentStatus) (*resources.AgentResource, error)
	Delete(ctx context.Context, name, namespace string) error
}

// Ingest validates and applies AgentStatus reports from Agent runtimes.
type Ingest struct {
	agents AgentRegistry
	log    *logger.Logger
}

// New constructs an Ingest over the given AgentRegistry.
func New(agents AgentRegistry, log *logger.Logger) *Ingest {
	return &Ingest{agents: agents, log: log}
}

var validStatuses = map[string]struct{}{
	resources.AgentStatusPending: {},
	resources.AgentStatusRunning: {},
	resources.AgentStatusDeleted: {},
}

// Put validates and persists a reported AgentStatus for name. An unknown
// status value is rejected as InvalidEvent rather than silently accepted,
// since a typo here would otherwise wedge the reactor's reconciliation.
func (i *Ingest) Put(ctx context.Context, name, namespace string, status resources.AgentStatus) (*resources.AgentResource, error) {
	if _, ok := validStatuses[status.Status]; !ok {
		return nil, roerrors.InvalidEvent("unknown agent status: " + status.Status)
	}
	status.Name = name

	res, err := i.agents.UpdateStatus(ctx, name, namespace, status)
	if err != nil {
		return nil, err
	}
	i.log.Info("status ingest: updated agent status", "agent", name, "status", status.Status)
	return res, nil
}

// Delete removes the Agent resource on a terminal runtime notification.
// Deleting an Agent that is already gone is treated as success: the
// runtime's delete notification and the control plane's own Delete call
// can race harmlessly.
func (i *Ingest) Delete(ctx context.Context, name, namespace string) error {
	err := i.agents.Delete(ctx, name, namespace)
	if err != nil && !roerrors.Is(err, roerrors.KindNotFound) {
		return err
	}
	i.log.Info("status ingest: deleted agent", "agent", name)
	return nil
}
