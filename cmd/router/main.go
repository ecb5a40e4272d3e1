// Command router runs the Workflow Router (component G): it consumes
// WORKFLOW_ROUTER_QUEUE, advances WorkflowRecords, triggers Agent actions,
// and notifies external integrations (the GitHub adapter) on completion.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rosterhq/control-plane/internal/bootstrap"
	"github.com/rosterhq/control-plane/internal/inbox"
	"github.com/rosterhq/control-plane/internal/integration/github"
	"github.com/rosterhq/control-plane/internal/records"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
	"github.com/rosterhq/control-plane/internal/router"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "router", bootstrap.WithoutDB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap router: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	workflows := registry.NewWorkflowRegistry(components.KV, components.Logger, components.Config.KV.KeyRoot)
	teams := registry.New[resources.TeamSpec, resources.NoStatus](components.KV, components.Logger, components.Config.KV.KeyRoot, registry.KindPrefixTeam, "v1", string(registry.ResourceTypeTeam), func(resources.TeamSpec) resources.NoStatus { return resources.NoStatus{} })
	recordStore := records.New(components.KV, components.Logger, "/records/workflows")
	ib := inbox.New(components.Bus)

	r := router.New(components.Bus, recordStore, workflows, teams, ib, components.Logger)

	if components.Config.Integration.GitHubWebhookSecret != "" || components.Config.Integration.GitHubFilterCEL != "" {
		githubAdapter, err := github.New(github.Config{
			WebhookSecret: components.Config.Integration.GitHubWebhookSecret,
			FilterCEL:     components.Config.Integration.GitHubFilterCEL,
			Workflow:      "github-ci",
		}, components.Bus, http.DefaultClient, components.Logger)
		if err != nil {
			components.Logger.Error("failed to set up github adapter", "error", err)
			os.Exit(1)
		}
		r.AddFinishListener(githubAdapter.OnFinish)
	}

	unsubscribe, err := r.Start(ctx)
	if err != nil {
		components.Logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	defer unsubscribe()

	components.Logger.Info("router started", "queue", router.RouterQueueName)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
	components.Logger.Info("router shutting down")
}
