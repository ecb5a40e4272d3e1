// Package inbox implements the Agent Inbox (component F): queue naming and
// publishing of trigger-action and tool-response messages to Agents.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/bus"
	"github.com/rosterhq/control-plane/internal/resources"
)

// Inbox addresses and delivers messages to Agents.
type Inbox struct {
	bus bus.Bus
}

// New constructs an Inbox over bus b.
func New(b bus.Bus) *Inbox {
	return &Inbox{bus: b}
}

// QueueName computes an Agent's inbox queue name:
// <namespace>:actor:agent:<agent-name>.
func QueueName(namespace, agentName string) string {
	return fmt.Sprintf("%s:actor:agent:%s", namespace, agentName)
}

// TriggerAction publishes a trigger_action WorkflowMessage to agentName's
// inbox in namespace.
func (i *Inbox) TriggerAction(ctx context.Context, namespace, agentName, workflow, recordID string, payload resources.TriggerActionPayload) error {
	msg := resources.WorkflowMessage{
		ID:       recordID,
		Workflow: workflow,
		Kind:     resources.KindTriggerAction,
		Payload:  payload,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return roerrors.Wrap(roerrors.KindDeserialization, "encode trigger_action message", err)
	}
	return i.bus.Publish(ctx, QueueName(namespace, agentName), body)
}

// SendToolResponse publishes a ToolMessage carrying a tool invocation's
// result (or error) back to agentName's inbox.
func (i *Inbox) SendToolResponse(ctx context.Context, namespace, agentName, invocationID, tool string, data any, toolErr string) error {
	msg := resources.ToolMessage{
		InvocationID: invocationID,
		Tool:         tool,
		Data:         data,
		Error:        toolErr,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return roerrors.Wrap(roerrors.KindDeserialization, "encode tool message", err)
	}
	return i.bus.Publish(ctx, QueueName(namespace, agentName), body)
}

// ResolveAgent looks up the agent name bound to role in team, returning
// AgentNotFound-equivalent (modeled as NotFound) if the role has no member.
func ResolveAgent(team resources.TeamSpec, role string) (string, error) {
	member, ok := team.Members[role]
	if !ok || member.Agent == "" {
		return "", roerrors.NotFound(fmt.Sprintf("no agent bound to role %q in team %q", role, team.Name))
	}
	return member.Agent, nil
}
