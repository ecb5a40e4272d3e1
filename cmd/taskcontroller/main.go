// Command taskcontroller runs the Resource Reactor (component H) against
// Agent resources: it watches the change feed, reconciles desired Agent
// state against the Agent runtime, and relies exclusively on Status
// Ingest to record the outcome.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rosterhq/control-plane/internal/bootstrap"
	"github.com/rosterhq/control-plane/internal/changefeed"
	"github.com/rosterhq/control-plane/internal/reactor"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "taskcontroller", bootstrap.WithoutDB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap taskcontroller: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	agents := registry.New[resources.AgentSpec, resources.AgentStatus](
		components.KV, components.Logger, components.Config.KV.KeyRoot,
		registry.KindPrefixAgent, "v1", string(registry.ResourceTypeAgent),
		resources.InitialAgentStatus,
	)

	watcher := changefeed.NewWatcher(components.KV, components.Logger, components.Config.KV.KeyRoot)
	events, err := watcher.Run(ctx)
	if err != nil {
		components.Logger.Error("failed to start change feed watcher", "error", err)
		os.Exit(1)
	}

	informer := changefeed.NewInformer[resources.AgentResource](registry.ResourceTypeAgent, changefeed.AgentLister(agents), changefeed.AgentDecoder(), components.Logger)
	if err := informer.Setup(ctx, events); err != nil {
		components.Logger.Error("failed to set up agent informer", "error", err)
		os.Exit(1)
	}

	executor := reactor.NewHTTPAgentExecutor(agentRuntimeBaseURL(), 15*time.Second)
	controller := reactor.NewAgentController(informer, executor, components.Logger)
	if err := controller.Setup(ctx); err != nil {
		components.Logger.Error("failed to set up agent controller", "error", err)
		os.Exit(1)
	}

	components.Logger.Info("task controller started")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
	components.Logger.Info("task controller shutting down")
}

func agentRuntimeBaseURL() string {
	if v := os.Getenv("AGENT_RUNTIME_URL"); v != "" {
		return v
	}
	return "http://localhost:9000"
}
