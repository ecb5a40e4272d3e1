// Command controlplane serves the REST/SSE API surface: resource CRUD,
// workflow records, operator commands, status ingest, the change feed
// projection, and the GitHub webhook receiver.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rosterhq/control-plane/internal/activity"
	"github.com/rosterhq/control-plane/internal/bootstrap"
	"github.com/rosterhq/control-plane/internal/changefeed"
	"github.com/rosterhq/control-plane/internal/httpapi"
	"github.com/rosterhq/control-plane/internal/integration/github"
	"github.com/rosterhq/control-plane/internal/ratelimit"
	"github.com/rosterhq/control-plane/internal/reactor"
	"github.com/rosterhq/control-plane/internal/records"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/server"
	"github.com/rosterhq/control-plane/internal/sse"
	"github.com/rosterhq/control-plane/internal/statusingest"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "controlplane")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap controlplane: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	registries := httpapi.Registries{
		Agents:     registry.New[resources.AgentSpec, resources.AgentStatus](components.KV, components.Logger, components.Config.KV.KeyRoot, registry.KindPrefixAgent, "v1", string(registry.ResourceTypeAgent), resources.InitialAgentStatus),
		Identities: registry.New[resources.IdentitySpec, resources.NoStatus](components.KV, components.Logger, components.Config.KV.KeyRoot, registry.KindPrefixIdentity, "v1", string(registry.ResourceTypeIdentity), func(resources.IdentitySpec) resources.NoStatus { return resources.NoStatus{} }),
		Teams:      registry.New[resources.TeamSpec, resources.NoStatus](components.KV, components.Logger, components.Config.KV.KeyRoot, registry.KindPrefixTeam, "v1", string(registry.ResourceTypeTeam), func(resources.TeamSpec) resources.NoStatus { return resources.NoStatus{} }),
		Workflows:  registry.NewWorkflowRegistry(components.KV, components.Logger, components.Config.KV.KeyRoot),
	}

	recordStore := records.New(components.KV, components.Logger, "/records/workflows")

	agentExecutor := reactor.NewHTTPAgentExecutor(agentRuntimeBaseURL(), agentRuntimeTimeout())
	ingest := statusingest.New(registries.Agents, components.Logger)

	watcher := changefeed.NewWatcher(components.KV, components.Logger, components.Config.KV.KeyRoot)
	events, err := watcher.Run(ctx)
	if err != nil {
		components.Logger.Error("failed to start change feed watcher", "error", err)
		os.Exit(1)
	}
	projection := sse.NewProjection(events)

	var githubAdapter *github.Adapter
	if components.Config.Integration.GitHubWebhookSecret != "" || components.Config.Integration.GitHubFilterCEL != "" {
		githubAdapter, err = github.New(github.Config{
			WebhookSecret: components.Config.Integration.GitHubWebhookSecret,
			FilterCEL:     components.Config.Integration.GitHubFilterCEL,
			Workflow:      "github-ci",
		}, components.Bus, nil, components.Logger)
		if err != nil {
			components.Logger.Error("failed to set up github adapter", "error", err)
			os.Exit(1)
		}
	}

	var rateLimiter *ratelimit.Limiter
	if components.RedisClient != nil {
		rateLimiter = ratelimit.New(components.RedisClient, components.Logger)
	}

	var activityStore *activity.Store
	if components.DB != nil {
		activityStore = activity.New(components.DB)
	}

	e := httpapi.New(httpapi.Deps{
		Registries: registries,
		Records:    recordStore,
		Activity:   activityStore,
		Ingest:     ingest,
		Projection: projection,
		Agents:     agentExecutor,
		Bus:        components.Bus,
		GitHub:     githubAdapter,
		RateLimit:  rateLimiter,
		Log:        components.Logger,
	})

	srv := server.New("controlplane", components.Config.HTTP.Port, e, components.Logger)
	if err := srv.Start(components.Config.HTTP.ShutdownTimeout); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func agentRuntimeBaseURL() string {
	if v := os.Getenv("AGENT_RUNTIME_URL"); v != "" {
		return v
	}
	return "http://localhost:9000"
}

func agentRuntimeTimeout() time.Duration {
	return 15 * time.Second
}
