package statusingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

func testIngest(t *testing.T) (*Ingest, *registry.Registry[resources.AgentSpec, resources.AgentStatus]) {
	t.Helper()
	log := logger.New("error", "text")
	store := kv.NewMemoryStore()
	reg := registry.New[resources.AgentSpec, resources.AgentStatus](
		store, log, "/resources", registry.KindPrefixAgent, "v1", string(registry.ResourceTypeAgent),
		resources.InitialAgentStatus,
	)
	return New(reg, log), reg
}

func TestIngest_PutUpdatesStatusOnly(t *testing.T) {
	ing, reg := testIngest(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "a1", "default", resources.AgentSpec{Name: "a1", Image: "img:1"})
	require.NoError(t, err)

	res, err := ing.Put(ctx, "a1", "default", resources.AgentStatus{Status: resources.AgentStatusRunning, HostIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, resources.AgentStatusRunning, res.Status.Status)
	assert.Equal(t, "img:1", res.Spec.Image)
}

func TestIngest_PutRejectsUnknownStatus(t *testing.T) {
	ing, reg := testIngest(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "a1", "default", resources.AgentSpec{Name: "a1"})
	require.NoError(t, err)

	_, err = ing.Put(ctx, "a1", "default", resources.AgentStatus{Status: "bogus"})
	assert.True(t, roerrors.Is(err, roerrors.KindInvalidEvent))
}

func TestIngest_DeleteIsIdempotent(t *testing.T) {
	ing, reg := testIngest(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "a1", "default", resources.AgentSpec{Name: "a1"})
	require.NoError(t, err)

	require.NoError(t, ing.Delete(ctx, "a1", "default"))
	require.NoError(t, ing.Delete(ctx, "a1", "default"))
}
