package router

import (
	"encoding/json"

	"github.com/rosterhq/control-plane/internal/resources"
)

// envelope is the wire shape of a WorkflowMessage with its payload left
// raw until Kind is known, implementing the tagged-variant re-architecture
// spec §9 calls for in place of a dynamically-typed `data: dict`.
type envelope struct {
	ID       string                  `json:"id"`
	Workflow string                  `json:"workflow"`
	Kind     resources.MessageKind   `json:"kind"`
	Payload  json.RawMessage         `json:"payload"`
}

// RouterQueueName is the single well-known queue the Workflow Router
// consumes WorkflowMessages from.
const RouterQueueName = "default:actor:roster-admin:workflow-router"

// EncodeInitiate builds the wire bytes for an initiate_workflow message.
func EncodeInitiate(id, workflow string, payload resources.InitiateWorkflowPayload) ([]byte, error) {
	return encodeEnvelope(id, workflow, resources.KindInitiateWorkflow, payload)
}

// EncodeReport builds the wire bytes for a report_action message.
func EncodeReport(id, workflow string, payload resources.ReportActionPayload) ([]byte, error) {
	return encodeEnvelope(id, workflow, resources.KindReportAction, payload)
}

func encodeEnvelope(id, workflow string, kind resources.MessageKind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{ID: id, Workflow: workflow, Kind: kind, Payload: raw})
}
