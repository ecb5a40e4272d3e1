package reactor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rosterhq/control-plane/internal/egress"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/resources"
)

// AgentExecutor is the HTTP egress side of the Agent controller: it tells
// an Agent runtime to assign or cancel an Agent, per spec §5's "HTTP
// egress to Agent runtimes sets a per-request timeout". ChatPromptAgent
// is the synchronous counterpart used by the /commands/agent-chat proxy.
type AgentExecutor interface {
	AssignAgent(ctx context.Context, spec resources.AgentSpec) error
	CancelAgent(ctx context.Context, name string) error
	ChatPromptAgent(ctx context.Context, agentName string, args resources.ChatPromptAgentArgs, executionID, executionType string) (resources.ConversationMessage, error)
}

// HTTPAgentExecutor calls a single Agent runtime base URL to assign/cancel
// Agents, matching the control plane's single-process-per-host deployment
// model.
type HTTPAgentExecutor struct {
	baseURL  string
	client   *http.Client
	validate *egress.URLValidator
}

// NewHTTPAgentExecutor builds an executor against baseURL with a bounded
// per-request timeout.
func NewHTTPAgentExecutor(baseURL string, timeout time.Duration) *HTTPAgentExecutor {
	return &HTTPAgentExecutor{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		validate: egress.NewURLValidator(),
	}
}

func (e *HTTPAgentExecutor) AssignAgent(ctx context.Context, spec resources.AgentSpec) error {
	body, err := json.Marshal(spec)
	if err != nil {
		return roerrors.Wrap(roerrors.KindGeneric, "encode agent spec", err)
	}
	return e.do(ctx, http.MethodPost, e.baseURL+"/agents/"+spec.Name+"/assign", body)
}

func (e *HTTPAgentExecutor) CancelAgent(ctx context.Context, name string) error {
	return e.do(ctx, http.MethodPost, e.baseURL+"/agents/"+name+"/cancel", nil)
}

// chatRequest is the wire body for the Agent runtime's /chat endpoint: the
// caller's prompt plus the execution coordinates the runtime attaches to
// any activity it records for the turn.
type chatRequest struct {
	resources.ChatPromptAgentArgs
	ExecutionID   string `json:"execution_id,omitempty"`
	ExecutionType string `json:"execution_type,omitempty"`
}

// ChatPromptAgent synchronously proxies a prompt, with history, to the
// named Agent and returns its reply. Unlike AssignAgent/CancelAgent this
// call's result is returned to the caller rather than reported back
// asynchronously over the workflow router, so it decodes the response
// body instead of treating a 2xx as sufficient.
func (e *HTTPAgentExecutor) ChatPromptAgent(ctx context.Context, agentName string, args resources.ChatPromptAgentArgs, executionID, executionType string) (resources.ConversationMessage, error) {
	body, err := json.Marshal(chatRequest{ChatPromptAgentArgs: args, ExecutionID: executionID, ExecutionType: executionType})
	if err != nil {
		return resources.ConversationMessage{}, roerrors.Wrap(roerrors.KindGeneric, "encode chat request", err)
	}

	url := e.baseURL + "/agents/" + agentName + "/chat"
	if err := e.validate.Validate(url); err != nil {
		return resources.ConversationMessage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return resources.ConversationMessage{}, roerrors.Wrap(roerrors.KindGeneric, "build agent runtime request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return resources.ConversationMessage{}, roerrors.Wrap(roerrors.KindNotReady, fmt.Sprintf("agent runtime unreachable at %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resources.ConversationMessage{}, roerrors.New(roerrors.KindNotReady, fmt.Sprintf("agent runtime returned %d for %s", resp.StatusCode, url))
	}
	if resp.StatusCode >= 400 {
		return resources.ConversationMessage{}, roerrors.New(roerrors.KindGeneric, fmt.Sprintf("agent runtime returned %d for %s", resp.StatusCode, url))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resources.ConversationMessage{}, roerrors.Wrap(roerrors.KindGeneric, "read chat response", err)
	}
	var reply resources.ConversationMessage
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return resources.ConversationMessage{}, roerrors.Wrap(roerrors.KindGeneric, "decode chat response", err)
	}
	return reply, nil
}

func (e *HTTPAgentExecutor) do(ctx context.Context, method, url string, body []byte) error {
	if err := e.validate.Validate(url); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return roerrors.Wrap(roerrors.KindGeneric, "build agent runtime request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return roerrors.Wrap(roerrors.KindNotReady, fmt.Sprintf("agent runtime unreachable at %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return roerrors.New(roerrors.KindNotReady, fmt.Sprintf("agent runtime returned %d for %s", resp.StatusCode, url))
	}
	if resp.StatusCode >= 400 {
		return roerrors.New(roerrors.KindGeneric, fmt.Sprintf("agent runtime returned %d for %s", resp.StatusCode, url))
	}
	return nil
}
