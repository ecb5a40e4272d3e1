package reactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/control-plane/internal/changefeed"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

type fakeExecutor struct {
	mu       sync.Mutex
	assigned []string
	canceled []string
}

func (f *fakeExecutor) AssignAgent(ctx context.Context, spec resources.AgentSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, spec.Name)
	return nil
}

func (f *fakeExecutor) CancelAgent(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, name)
	return nil
}

func (f *fakeExecutor) ChatPromptAgent(ctx context.Context, agentName string, args resources.ChatPromptAgentArgs, executionID, executionType string) (resources.ConversationMessage, error) {
	return resources.ConversationMessage{}, nil
}

func TestAgentController_ReconcilesPendingAgentsOnBoot(t *testing.T) {
	log := logger.New("error", "text")
	store := kv.NewMemoryStore()
	reg := registry.New[resources.AgentSpec, resources.AgentStatus](
		store, log, "/resources", registry.KindPrefixAgent, "v1", string(registry.ResourceTypeAgent),
		resources.InitialAgentStatus,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := reg.Create(ctx, "a1", "default", resources.AgentSpec{Name: "a1"})
	require.NoError(t, err)

	watcher := changefeed.NewWatcher(store, log, "/resources")
	events, err := watcher.Run(ctx)
	require.NoError(t, err)

	informer := changefeed.NewInformer[resources.AgentResource](
		registry.ResourceTypeAgent,
		func(ctx context.Context) (map[string]resources.AgentResource, error) {
			list, err := reg.List(ctx, "default")
			if err != nil {
				return nil, err
			}
			out := make(map[string]resources.AgentResource, len(list))
			for _, r := range list {
				out[r.Name] = *r
			}
			return out, nil
		},
		func(raw []byte) (resources.AgentResource, error) {
			var res resources.AgentResource
			err := resources.Decode(raw, &res)
			return res, err
		},
		log,
	)
	require.NoError(t, informer.Setup(ctx, events))

	exec := &fakeExecutor{}
	controller := NewAgentController(informer, exec, log)
	require.NoError(t, controller.Setup(ctx))

	exec.mu.Lock()
	assigned := append([]string(nil), exec.assigned...)
	exec.mu.Unlock()
	assert.Equal(t, []string{"a1"}, assigned)

	_, err = reg.Create(ctx, "a2", "default", resources.AgentSpec{Name: "a2"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		for _, n := range exec.assigned {
			if n == "a2" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Delete(ctx, "a1", "default"))
	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		for _, n := range exec.canceled {
			if n == "a1" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
