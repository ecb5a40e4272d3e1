package changefeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

func agentLister(reg *registry.Registry[resources.AgentSpec, resources.AgentStatus]) Lister[resources.AgentResource] {
	return func(ctx context.Context) (map[string]resources.AgentResource, error) {
		list, err := reg.List(ctx, "default")
		if err != nil {
			return nil, err
		}
		out := make(map[string]resources.AgentResource, len(list))
		for _, r := range list {
			out[r.Name] = *r
		}
		return out, nil
	}
}

func agentDecoder() Decoder[resources.AgentResource] {
	return func(raw []byte) (resources.AgentResource, error) {
		var res resources.AgentResource
		err := resources.Decode(raw, &res)
		return res, err
	}
}

func TestInformer_WatchDrivenConvergence(t *testing.T) {
	store := kv.NewMemoryStore()
	log := logger.New("error", "text")
	reg := registry.New[resources.AgentSpec, resources.AgentStatus](
		store, log, "/resources", registry.KindPrefixAgent, "v1", string(registry.ResourceTypeAgent),
		resources.InitialAgentStatus,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := NewWatcher(store, log, "/resources")
	events, err := watcher.Run(ctx)
	require.NoError(t, err)

	informer := NewInformer[resources.AgentResource](registry.ResourceTypeAgent, agentLister(reg), agentDecoder(), log)
	require.NoError(t, informer.Setup(ctx, events))

	var mu sync.Mutex
	var seen []EventType
	informer.AddEventListener(func(ctx context.Context, ev ResourceEvent) error {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
		return nil
	})

	_, err = reg.Create(ctx, "a1", "default", resources.AgentSpec{Name: "a1", Image: "v1"})
	require.NoError(t, err)
	_, err = reg.Update(ctx, "a1", "default", resources.AgentSpec{Name: "a1", Image: "v2"})
	require.NoError(t, err)
	require.NoError(t, reg.Delete(ctx, "a1", "default"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []EventType{EventPut, EventPut, EventDelete}, seen)
	assert.Empty(t, informer.ListResources())
}
