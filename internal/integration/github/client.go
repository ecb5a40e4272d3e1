package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rosterhq/control-plane/internal/egress"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// Client is a thin GitHub REST client for posting workflow results back as
// commit statuses: one context-aware call (PostCommitStatus) over
// net/http, no generated SDK.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	validate *egress.URLValidator
}

// NewClient builds a Client against the GitHub API (or an enterprise base
// URL) authenticated with token. baseURL is operator-configurable (GitHub
// Enterprise deployments), so it passes through the same egress
// validation as Agent runtime URLs before every request.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient, validate: egress.NewURLValidator()}
}

// CommitStatus is the subset of the GitHub commit status payload the
// control plane needs to report a workflow's outcome.
type CommitStatus struct {
	State       string `json:"state"`
	TargetURL   string `json:"target_url,omitempty"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context"`
}

// PostCommitStatus reports a workflow's outcome against a commit SHA.
func (c *Client) PostCommitStatus(ctx context.Context, owner, repo, sha string, status CommitStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return roerrors.Wrap(roerrors.KindGeneric, "encode commit status", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", c.baseURL, owner, repo, sha)
	if err := c.validate.Validate(url); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return roerrors.Wrap(roerrors.KindGeneric, "build commit status request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return roerrors.Wrap(roerrors.KindNotReady, "github unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return roerrors.New(roerrors.KindGeneric, fmt.Sprintf("github returned %d for %s", resp.StatusCode, url))
	}
	return nil
}
