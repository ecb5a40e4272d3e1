package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rosterhq/control-plane/internal/bus"
	"github.com/rosterhq/control-plane/internal/inbox"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/records"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

type harness struct {
	ctx       context.Context
	cancel    context.CancelFunc
	b         *bus.MemoryBus
	router    *Router
	workflows *registry.WorkflowRegistry
	teams     *registry.Registry[resources.TeamSpec, resources.NoStatus]
	recStore  *records.Store
	triggers  chan resources.TriggerActionPayload
	finishes  chan *resources.WorkflowRecord
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.New("error", "text")
	store := kv.NewMemoryStore()
	b := bus.NewMemoryBus(log)

	workflows := registry.NewWorkflowRegistry(store, log, "/resources")
	teams := registry.New[resources.TeamSpec, resources.NoStatus](
		store, log, "/resources", registry.KindPrefixTeam, "v1", string(registry.ResourceTypeTeam),
		func(resources.TeamSpec) resources.NoStatus { return resources.NoStatus{} },
	)
	recStore := records.New(store, log, "/records/workflows")
	ib := inbox.New(b)

	rt := New(b, recStore, workflows, teams, ib, log)

	ctx, cancel := context.WithCancel(context.Background())

	h := &harness{
		ctx: ctx, cancel: cancel, b: b, router: rt,
		workflows: workflows, teams: teams, recStore: recStore,
		triggers: make(chan resources.TriggerActionPayload, 16),
		finishes: make(chan *resources.WorkflowRecord, 16),
	}

	rt.AddFinishListener(func(ctx context.Context, rec *resources.WorkflowRecord) {
		h.finishes <- rec
	})

	_, err := b.RegisterCallback(ctx, inbox.QueueName("default", "worker-agent"), func(ctx context.Context, body []byte) error {
		var msg struct {
			Payload resources.TriggerActionPayload `json:"payload"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return err
		}
		h.triggers <- msg.Payload
		return nil
	})
	require.NoError(t, err)

	_, err = rt.Start(ctx)
	require.NoError(t, err)

	return h
}

func (h *harness) seedTeam(t *testing.T, role string) {
	t.Helper()
	_, err := h.teams.Create(h.ctx, "writers", "default", resources.TeamSpec{
		Name: "writers",
		Members: map[string]resources.TeamMember{
			role: {Identity: "writer-1", Agent: "worker-agent"},
		},
	})
	require.NoError(t, err)
}

func (h *harness) publishInitiate(t *testing.T, id, workflow string, inputs map[string]string) {
	t.Helper()
	body, err := EncodeInitiate(id, workflow, resources.InitiateWorkflowPayload{Inputs: inputs})
	require.NoError(t, err)
	require.NoError(t, h.b.Publish(h.ctx, RouterQueueName, body))
}

func (h *harness) publishReport(t *testing.T, id, workflow, step string, outputs map[string]resources.TypedResult, errMsg string) {
	t.Helper()
	body, err := EncodeReport(id, workflow, resources.ReportActionPayload{Step: step, Outputs: outputs, Error: errMsg})
	require.NoError(t, err)
	require.NoError(t, h.b.Publish(h.ctx, RouterQueueName, body))
}

func recvTrigger(t *testing.T, ch chan resources.TriggerActionPayload) resources.TriggerActionPayload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trigger_action")
		return resources.TriggerActionPayload{}
	}
}

func recvFinish(t *testing.T, ch chan *resources.WorkflowRecord) *resources.WorkflowRecord {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for finish event")
		return nil
	}
}

// Scenario 1: single-step workflow.
func TestRouter_SingleStepWorkflow(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.seedTeam(t, "R")

	_, err := h.workflows.Create(h.ctx, "greet", "default", resources.WorkflowSpec{
		Name: "greet",
		Team: "writers",
		Inputs:  []resources.TypedArg{{Name: "q", Type: "text"}},
		Outputs: []resources.TypedArg{{Name: "a", Type: "text"}},
		Steps: map[string]resources.Step{
			"s1": {
				Role: "R", Action: "Echo",
				InputMap:  map[string]string{"in": "workflow.q"},
				OutputMap: map[string]string{"out": "a"},
			},
		},
	})
	require.NoError(t, err)

	h.publishInitiate(t, "rec-1", "greet", map[string]string{"q": "hi"})

	trigger := recvTrigger(t, h.triggers)
	require.Equal(t, map[string]string{"in": "hi"}, trigger.Inputs)

	h.publishReport(t, "rec-1", "greet", "s1", map[string]resources.TypedResult{
		"out": {Type: "text", Value: "hi"},
	}, "")

	rec := recvFinish(t, h.finishes)
	require.Equal(t, "hi", rec.Outputs["a"].Value)
	require.Equal(t, 1, rec.RunStatus["s1"].Runs)
}

// Scenario 2: sequential two-step.
func TestRouter_SequentialTwoStep(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.seedTeam(t, "R")

	_, err := h.workflows.Create(h.ctx, "pipeline", "default", resources.WorkflowSpec{
		Name: "pipeline",
		Team: "writers",
		Inputs:  []resources.TypedArg{{Name: "q", Type: "text"}},
		Outputs: []resources.TypedArg{{Name: "a", Type: "text"}, {Name: "a2", Type: "text"}},
		Steps: map[string]resources.Step{
			"s1": {
				Role: "R", Action: "Echo",
				InputMap:  map[string]string{"in": "workflow.q"},
				OutputMap: map[string]string{"out": "a"},
			},
			"s2": {
				Role: "R", Action: "Echo",
				InputMap:  map[string]string{"in": "s1.out"},
				OutputMap: map[string]string{"out2": "a2"},
			},
		},
	})
	require.NoError(t, err)

	h.publishInitiate(t, "rec-2", "pipeline", map[string]string{"q": "hi"})

	first := recvTrigger(t, h.triggers)
	require.Equal(t, map[string]string{"in": "hi"}, first.Inputs)

	h.publishReport(t, "rec-2", "pipeline", "s1", map[string]resources.TypedResult{
		"out": {Type: "text", Value: "hi-s1"},
	}, "")

	second := recvTrigger(t, h.triggers)
	require.Equal(t, map[string]string{"in": "hi-s1"}, second.Inputs)

	h.publishReport(t, "rec-2", "pipeline", "s2", map[string]resources.TypedResult{
		"out2": {Type: "text", Value: "hi-s2"},
	}, "")

	rec := recvFinish(t, h.finishes)
	require.Equal(t, "hi-s1", rec.Outputs["a"].Value)
	require.Equal(t, "hi-s2", rec.Outputs["a2"].Value)
}

// Scenario 3: retry up to num_retries then fail.
func TestRouter_RetryThenFail(t *testing.T) {
	h := newHarness(t)
	defer h.cancel()
	h.seedTeam(t, "R")

	_, err := h.workflows.Create(h.ctx, "flaky", "default", resources.WorkflowSpec{
		Name: "flaky",
		Team: "writers",
		Inputs:  []resources.TypedArg{{Name: "q", Type: "text"}},
		Outputs: []resources.TypedArg{{Name: "a", Type: "text"}},
		Steps: map[string]resources.Step{
			"s1": {
				Role: "R", Action: "Echo",
				InputMap:  map[string]string{"in": "workflow.q"},
				OutputMap: map[string]string{"out": "a"},
				RunConfig: resources.RunConfig{NumRetries: 2},
			},
		},
	})
	require.NoError(t, err)

	h.publishInitiate(t, "rec-3", "flaky", map[string]string{"q": "hi"})
	recvTrigger(t, h.triggers) // initial trigger, runs becomes 1 on report

	h.publishReport(t, "rec-3", "flaky", "s1", nil, "boom")
	recvTrigger(t, h.triggers) // runs==1, retry -> runs becomes 2 on report

	h.publishReport(t, "rec-3", "flaky", "s1", nil, "boom")
	recvTrigger(t, h.triggers) // runs==2 <= num_retries(2), retry -> runs becomes 3 on report

	h.publishReport(t, "rec-3", "flaky", "s1", nil, "boom")

	rec := recvFinish(t, h.finishes)
	require.Equal(t, "boom", rec.Errors["a"])
	require.Equal(t, 3, rec.RunStatus["s1"].Runs)
}
