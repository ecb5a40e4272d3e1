package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
)

func testAgentRegistry() *Registry[resources.AgentSpec, resources.AgentStatus] {
	store := kv.NewMemoryStore()
	log := logger.New("error", "text")
	return New[resources.AgentSpec, resources.AgentStatus](
		store, log, "/resources", KindPrefixAgent, "v1", string(ResourceTypeAgent),
		resources.InitialAgentStatus,
	)
}

func TestRegistry_CreateGetRoundTrip(t *testing.T) {
	reg := testAgentRegistry()
	ctx := context.Background()

	spec := resources.AgentSpec{Name: "worker", Image: "ghcr.io/roster/worker:latest"}
	created, err := reg.Create(ctx, "worker", "default", spec)
	require.NoError(t, err)
	assert.Equal(t, resources.AgentStatusPending, created.Status.Status)

	got, err := reg.Get(ctx, "worker", "default")
	require.NoError(t, err)
	assert.Equal(t, spec, got.Spec)
	assert.Equal(t, created.Status, got.Status)
}

func TestRegistry_CreateAlreadyExists(t *testing.T) {
	reg := testAgentRegistry()
	ctx := context.Background()
	spec := resources.AgentSpec{Name: "worker"}

	_, err := reg.Create(ctx, "worker", "default", spec)
	require.NoError(t, err)

	_, err = reg.Create(ctx, "worker", "default", spec)
	require.Error(t, err)
	assert.True(t, roerrors.Is(err, roerrors.KindAlreadyExists))
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg := testAgentRegistry()
	_, err := reg.Get(context.Background(), "missing", "default")
	require.Error(t, err)
	assert.True(t, roerrors.Is(err, roerrors.KindNotFound))
}

func TestRegistry_UpdatePreservesStatus(t *testing.T) {
	reg := testAgentRegistry()
	ctx := context.Background()

	created, err := reg.Create(ctx, "worker", "default", resources.AgentSpec{Name: "worker", Image: "v1"})
	require.NoError(t, err)

	updated, err := reg.Update(ctx, "worker", "default", resources.AgentSpec{Name: "worker", Image: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Spec.Image)
	assert.Equal(t, created.Status, updated.Status)
}

func TestRegistry_List(t *testing.T) {
	reg := testAgentRegistry()
	ctx := context.Background()

	_, err := reg.Create(ctx, "a1", "default", resources.AgentSpec{Name: "a1"})
	require.NoError(t, err)
	_, err = reg.Create(ctx, "a2", "default", resources.AgentSpec{Name: "a2"})
	require.NoError(t, err)
	_, err = reg.Create(ctx, "other-ns", "staging", resources.AgentSpec{Name: "other-ns"})
	require.NoError(t, err)

	list, err := reg.List(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRegistry_ConcurrentCreate_OnlyOneWins(t *testing.T) {
	reg := testAgentRegistry()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	successes := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := reg.Create(ctx, "shared", "default", resources.AgentSpec{Name: "shared"})
			successes[idx] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent Create should succeed")

	got, err := reg.Get(ctx, "shared", "default")
	require.NoError(t, err)
	assert.Equal(t, "shared", got.Spec.Name)
}
