// Package github implements the External Integration Adapter (component
// K): a GitHub webhook receiver that filters deliveries through a CEL
// predicate and initiates workflows, reporting their outcome back as a
// commit status.
package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rosterhq/control-plane/internal/bus"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/router"
)

// workspacePrefix tags WorkflowRecord.Workspace values created by this
// adapter so the finish listener can recover owner/repo/sha from a record
// it did not itself create synchronously.
const workspacePrefix = "github:"

// Adapter receives GitHub webhooks, gates them through a CEL filter, and
// drives workflow initiation/completion reporting.
type Adapter struct {
	bus      bus.Bus
	filter   *Filter
	client   *Client
	log      *logger.Logger
	secret   string
	workflow string
}

// Config configures an Adapter.
type Config struct {
	WebhookSecret string
	FilterCEL     string
	// Workflow is the workflow name initiated for every delivery the
	// filter matches.
	Workflow string
	GitHubAPIBaseURL string
	GitHubToken      string
}

// New constructs an Adapter, compiling its CEL filter up front.
func New(cfg Config, b bus.Bus, httpClient *http.Client, log *logger.Logger) (*Adapter, error) {
	filter, err := NewFilter(cfg.FilterCEL)
	if err != nil {
		return nil, err
	}
	baseURL := cfg.GitHubAPIBaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Adapter{
		bus:      b,
		filter:   filter,
		client:   NewClient(baseURL, cfg.GitHubToken, httpClient),
		log:      log,
		secret:   cfg.WebhookSecret,
		workflow: cfg.Workflow,
	}, nil
}

// HandleWebhook verifies the signature, parses the delivery, evaluates
// the filter, and on a match initiates a workflow. It returns a
// roerrors.Error so the HTTP layer can map it to a status code; a
// WebhookMalformed or InvalidEvent cause is reported to the caller, but a
// filter mismatch is a normal no-op and returns nil.
func (a *Adapter) HandleWebhook(ctx context.Context, eventType string, signature string, body []byte) error {
	if err := a.verifySignature(signature, body); err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return roerrors.Wrap(roerrors.KindWebhookMalformed, "decode github webhook body", err)
	}
	payload["type"] = eventType

	matched, err := a.filter.Matches(payload)
	if err != nil {
		return err
	}
	if !matched {
		a.log.Debug("github adapter: delivery did not match filter", "event", eventType)
		return nil
	}

	owner, repo, sha, err := extractRepoCoordinates(payload)
	if err != nil {
		return err
	}

	recordID := uuid.NewString()
	workspace := fmt.Sprintf("%s%s/%s@%s", workspacePrefix, owner, repo, sha)

	envBody, err := router.EncodeInitiate(recordID, a.workflow, resources.InitiateWorkflowPayload{
		Inputs:    map[string]string{"sha": sha, "owner": owner, "repo": repo},
		Workspace: workspace,
	})
	if err != nil {
		return roerrors.Wrap(roerrors.KindGeneric, "encode initiate_workflow", err)
	}

	if err := a.bus.Publish(ctx, router.RouterQueueName, envBody); err != nil {
		return err
	}

	a.log.Info("github adapter: initiated workflow", "workflow", a.workflow, "record_id", recordID, "repo", owner+"/"+repo, "sha", sha)
	return nil
}

func (a *Adapter) verifySignature(signature string, body []byte) error {
	if a.secret == "" {
		return nil
	}
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) {
		return roerrors.WebhookMalformed("missing or malformed X-Hub-Signature-256")
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signature, prefix))
	if err != nil {
		return roerrors.WebhookMalformed("malformed X-Hub-Signature-256 hex")
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write(body)
	got := mac.Sum(nil)

	if !hmac.Equal(want, got) {
		return roerrors.WebhookMalformed("signature mismatch")
	}
	return nil
}

func extractRepoCoordinates(payload map[string]any) (owner, repo, sha string, err error) {
	repoObj, _ := payload["repository"].(map[string]any)
	if repoObj == nil {
		return "", "", "", roerrors.WebhookMalformed("missing repository object")
	}
	fullName, _ := repoObj["full_name"].(string)
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 {
		return "", "", "", roerrors.WebhookMalformed("missing or malformed repository.full_name")
	}
	owner, repo = parts[0], parts[1]

	if head, ok := payload["after"].(string); ok && head != "" {
		sha = head
	} else if headCommit, ok := payload["head_commit"].(map[string]any); ok {
		sha, _ = headCommit["id"].(string)
	}
	if sha == "" {
		return "", "", "", roerrors.WebhookMalformed("missing commit sha")
	}
	return owner, repo, sha, nil
}

// OnFinish is registered as a router.RecordListener; it posts the
// workflow's outcome back to GitHub as a commit status for records this
// adapter initiated (identified by the workspace prefix it stamped on).
func (a *Adapter) OnFinish(ctx context.Context, rec *resources.WorkflowRecord) {
	if !strings.HasPrefix(rec.Workspace, workspacePrefix) {
		return
	}
	owner, repo, sha, ok := parseWorkspace(rec.Workspace)
	if !ok {
		a.log.Warn("github adapter: malformed workspace on finished record", "record_id", rec.ID, "workspace", rec.Workspace)
		return
	}

	status := CommitStatus{State: "success", Context: "roster/" + rec.Workflow}
	if len(rec.Errors) > 0 {
		status.State = "failure"
		status.Description = "workflow reported errors"
	}

	if err := a.client.PostCommitStatus(ctx, owner, repo, sha, status); err != nil {
		a.log.Error("github adapter: failed to post commit status", "record_id", rec.ID, "error", err)
	}
}

func parseWorkspace(workspace string) (owner, repo, sha string, ok bool) {
	rest := strings.TrimPrefix(workspace, workspacePrefix)
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return "", "", "", false
	}
	sha = rest[at+1:]
	slash := strings.Index(rest[:at], "/")
	if slash < 0 {
		return "", "", "", false
	}
	return rest[:slash], rest[slash+1 : at], sha, true
}
