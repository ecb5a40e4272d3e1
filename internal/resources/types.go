// Package resources defines the declarative resource and execution-record
// types the control plane stores, watches, and routes.
package resources

// ResourceMeta is embedded in every persisted entity.
type ResourceMeta struct {
	ApiVersion string            `json:"api_version"`
	Kind       string            `json:"kind"`
	Namespace  string            `json:"namespace"`
	Name       string            `json:"name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Resource wraps a kind's declarative Spec with its Status, mirroring the
// Registry's uniform "Resource{spec, status}" construction. Kinds that have
// no meaningful separate status (Identity, TeamSpec, WorkflowSpec) use
// NoStatus.
type Resource[S any, ST any] struct {
	ResourceMeta
	Spec   S  `json:"spec"`
	Status ST `json:"status"`
}

// NoStatus marks kinds whose status is not independently tracked.
type NoStatus struct{}

// Named is satisfied by every top-level Spec type, letting the HTTP
// surface read a new resource's name from its request body instead of
// requiring a redundant URL parameter on Create.
type Named interface {
	ResourceName() string
}

// --- Agent --------------------------------------------------------------

// AgentCapabilities are the capability flags an Agent declares.
type AgentCapabilities struct {
	NetworkAccess   bool `json:"network_access"`
	MessagingAccess bool `json:"messaging_access"`
}

// AgentSpec declares a remote Agent process.
type AgentSpec struct {
	Name         string            `json:"name"`
	Image        string            `json:"image"`
	Capabilities AgentCapabilities `json:"capabilities"`
}

// Agent status values.
const (
	AgentStatusPending = "pending"
	AgentStatusRunning = "running"
	AgentStatusDeleted = "deleted"
)

// ContainerInfo optionally accompanies an AgentStatus.
type ContainerInfo struct {
	ContainerID string `json:"container_id,omitempty"`
	ImageDigest string `json:"image_digest,omitempty"`
}

// AgentStatus is mutated only by Status Ingest (component J).
type AgentStatus struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	HostIP    string         `json:"host_ip,omitempty"`
	Container *ContainerInfo `json:"container,omitempty"`
}

func InitialAgentStatus(spec AgentSpec) AgentStatus {
	return AgentStatus{Name: spec.Name, Status: AgentStatusPending}
}

func (s AgentSpec) ResourceName() string { return s.Name }

type AgentResource = Resource[AgentSpec, AgentStatus]

// --- Identity -------------------------------------------------------------

const (
	IdentityStatusActive = "active"
)

// IdentitySpec is a credential/principal declaration.
type IdentitySpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func InitialIdentitySpec(spec IdentitySpec) IdentitySpec {
	if spec.Status == "" {
		spec.Status = IdentityStatusActive
	}
	return spec
}

func (s IdentitySpec) ResourceName() string { return s.Name }

type IdentityResource = Resource[IdentitySpec, NoStatus]

// --- Team -----------------------------------------------------------------

// TeamLayout groups roles into peer vs management relationships.
type TeamLayout struct {
	Roles            []string `json:"roles"`
	PeerGroups       [][]string `json:"peer_groups,omitempty"`
	ManagementGroups [][]string `json:"management_groups,omitempty"`
}

// TeamMember binds a role to a concrete Identity and Agent.
type TeamMember struct {
	Identity string `json:"identity"`
	Agent    string `json:"agent"`
}

// TeamSpec declares a group of role-bound agents that workflows target.
type TeamSpec struct {
	Name              string                `json:"name"`
	Type              string                `json:"type"`
	Description       string                `json:"description"`
	Layout            TeamLayout            `json:"layout"`
	Members           map[string]TeamMember `json:"members"`
	DeclaredWorkflows []string              `json:"declared_workflows,omitempty"`
}

// RoleDescription returns the free-text context passed to an Agent when a
// Step addressed to role is triggered. Teams with no per-role description
// metadata fall back to the role name itself.
func (t TeamSpec) RoleDescription(role string) string {
	if t.Members == nil {
		return role
	}
	if m, ok := t.Members[role]; ok && m.Identity != "" {
		return role + " (" + m.Identity + ")"
	}
	return role
}

func (t TeamSpec) ResourceName() string { return t.Name }

type TeamResource = Resource[TeamSpec, NoStatus]

// --- Workflow ---------------------------------------------------------------

// TypedArg declares a workflow input or output's name and type tag.
type TypedArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedResult is a typed value flowing through a record's context.
type TypedResult struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// RunConfig holds per-step execution tuning.
type RunConfig struct {
	NumRetries int `json:"num_retries"`
}

// Step is one DAG node of a WorkflowSpec.
type Step struct {
	Role      string            `json:"role"`
	Action    string            `json:"action"`
	InputMap  map[string]string `json:"input_map"`
	OutputMap map[string]string `json:"output_map"`
	RunConfig RunConfig         `json:"run_config"`
}

// Dependencies returns the set of step names (or "workflow") this step's
// inputMap values reference, per spec's dependency-extraction rule:
// { v.split(".")[0] for v in inputMap.values() }.
func (s Step) Dependencies() map[string]struct{} {
	deps := make(map[string]struct{})
	for _, path := range s.InputMap {
		if idx := indexDot(path); idx >= 0 {
			deps[path[:idx]] = struct{}{}
		}
	}
	return deps
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// WorkflowSpec declares a DAG of Steps plus the team it targets.
type WorkflowSpec struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Team         string          `json:"team"`
	Inputs       []TypedArg      `json:"inputs"`
	Outputs      []TypedArg      `json:"outputs"`
	Steps        map[string]Step `json:"steps"`
	SortedSteps  []string        `json:"sorted_steps"`
}

func (w WorkflowSpec) ResourceName() string { return w.Name }

type WorkflowResource = Resource[WorkflowSpec, NoStatus]

// --- WorkflowRecord -----------------------------------------------------

// StepResult is one recorded outcome of triggering a step.
type StepResult struct {
	Outputs map[string]TypedResult `json:"outputs"`
	Error   string                 `json:"error"`
}

// StepRunStatus tracks how many times a step has run and every result.
type StepRunStatus struct {
	Runs    int          `json:"runs"`
	Results []StepResult `json:"results"`
}

// WorkflowRecord is one execution instance of a WorkflowSpec.
type WorkflowRecord struct {
	ID        string                   `json:"id"`
	Workflow  string                   `json:"workflow"`
	Namespace string                   `json:"namespace"`
	Spec      WorkflowSpec             `json:"spec"`
	Workspace string                   `json:"workspace,omitempty"`
	Context   map[string]TypedResult   `json:"context"`
	Outputs   map[string]TypedResult   `json:"outputs"`
	Errors    map[string]string        `json:"errors"`
	RunStatus map[string]StepRunStatus `json:"run_status"`
}

// --- Messages ---------------------------------------------------------------

// MessageKind discriminates a WorkflowMessage's payload, replacing the
// original dynamically-typed `data: dict` with a typed tagged variant.
type MessageKind string

const (
	KindInitiateWorkflow MessageKind = "initiate_workflow"
	KindReportAction     MessageKind = "report_action"
	KindTriggerAction    MessageKind = "trigger_action"
)

// InitiateWorkflowPayload starts a new WorkflowRecord.
type InitiateWorkflowPayload struct {
	Inputs    map[string]string `json:"inputs"`
	Workspace string            `json:"workspace,omitempty"`
}

// ReportActionPayload is an Agent's report of one Step's execution.
type ReportActionPayload struct {
	Step    string                 `json:"step"`
	Action  string                 `json:"action"`
	Outputs map[string]TypedResult `json:"outputs"`
	Error   string                 `json:"error"`
}

// TriggerActionPayload instructs an Agent to execute one Step.
type TriggerActionPayload struct {
	Action      string            `json:"action"`
	Inputs      map[string]string `json:"inputs"`
	RoleContext string            `json:"role_context"`
}

// WorkflowMessage is the envelope published to WORKFLOW_ROUTER_QUEUE and to
// Agent inboxes.
type WorkflowMessage struct {
	ID       string      `json:"id"`
	Workflow string      `json:"workflow"`
	Kind     MessageKind `json:"kind"`
	Payload  any         `json:"payload"`
}

// ToolMessage carries a tool-invocation response back to an Agent.
type ToolMessage struct {
	InvocationID string `json:"invocation_id"`
	Tool         string `json:"tool"`
	Data         any    `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
}

// --- Agent chat ---------------------------------------------------------

// ConversationMessage is one turn of an Agent conversation.
type ConversationMessage struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// ChatPromptAgentArgs is the request body for POST /commands/agent-chat:
// synchronously proxy a prompt, with history, to the Agent bound to role
// within team.
type ChatPromptAgentArgs struct {
	Team    string                 `json:"team"`
	Role    string                 `json:"role"`
	History []ConversationMessage  `json:"history"`
	Message ConversationMessage    `json:"message"`
}

// --- Activity ---------------------------------------------------------------

// ActivityEvent is one append-only entry in a workflow/agent's activity log.
type ActivityEvent struct {
	ID            string `json:"id"`
	ExecutionID   string `json:"execution_id"`
	ExecutionType string `json:"execution_type"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	AgentContext  string `json:"agent_context,omitempty"`
}
