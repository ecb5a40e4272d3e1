// Package router implements the Workflow Router (component G) — the
// engine core. It consumes WORKFLOW_ROUTER_QUEUE, advances WorkflowRecords
// by context-presence data-flow (not a topological walk), triggers ready
// Steps against Agents, retries failed Steps up to their configured budget,
// and fires Start/Finish events for other components to react to.
//
// The control loop shape (consume -> load -> mutate -> persist -> determine
// next -> emit) mirrors how this codebase's DAG runner coordinator always
// has, generalized here from a token/IR execution model to context-presence
// data-flow over a WorkflowRecord.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rosterhq/control-plane/internal/bus"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/inbox"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/records"
	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

// RecordListener is notified on Start/Finish. Each registered listener is
// invoked on its own goroutine; a panic or error from one listener never
// affects another (spec §4.G: "exceptions per listener are isolated").
type RecordListener func(ctx context.Context, rec *resources.WorkflowRecord)

// Router is the Workflow Router engine.
type Router struct {
	bus       bus.Bus
	records   *records.Store
	workflows *registry.WorkflowRegistry
	teams     *registry.Registry[resources.TeamSpec, resources.NoStatus]
	inbox     *inbox.Inbox
	log       *logger.Logger

	locks *keyedMutex

	startListeners  []RecordListener
	finishListeners []RecordListener
}

// New constructs a Router.
func New(
	b bus.Bus,
	recordStore *records.Store,
	workflows *registry.WorkflowRegistry,
	teams *registry.Registry[resources.TeamSpec, resources.NoStatus],
	ib *inbox.Inbox,
	log *logger.Logger,
) *Router {
	return &Router{
		bus:       b,
		records:   recordStore,
		workflows: workflows,
		teams:     teams,
		inbox:     ib,
		log:       log,
		locks:     newKeyedMutex(64),
	}
}

// AddStartListener registers l to run whenever a workflow is initiated.
func (r *Router) AddStartListener(l RecordListener) { r.startListeners = append(r.startListeners, l) }

// AddFinishListener registers l to run whenever a workflow's outputs are
// fully resolved (component K subscribes here to post results back).
func (r *Router) AddFinishListener(l RecordListener) { r.finishListeners = append(r.finishListeners, l) }

// Start registers the router's message handler against RouterQueueName.
func (r *Router) Start(ctx context.Context) (func(), error) {
	return r.bus.RegisterCallback(ctx, RouterQueueName, r.handleMessage)
}

func (r *Router) handleMessage(ctx context.Context, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		r.log.Warn("router: malformed message dropped", "error", err)
		return nil
	}

	switch env.Kind {
	case resources.KindInitiateWorkflow:
		var payload resources.InitiateWorkflowPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			r.log.Warn("router: malformed initiate_workflow payload dropped", "workflow", env.Workflow, "error", err)
			return nil
		}
		return r.handleInitiate(ctx, env.ID, env.Workflow, payload)

	case resources.KindReportAction:
		var payload resources.ReportActionPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			r.log.Warn("router: malformed report_action payload dropped", "workflow", env.Workflow, "record_id", env.ID, "error", err)
			return nil
		}
		return r.handleReport(ctx, env.ID, env.Workflow, payload)

	default:
		r.log.Warn("router: unknown message kind dropped", "kind", env.Kind, "workflow", env.Workflow)
		return nil
	}
}

func (r *Router) handleInitiate(ctx context.Context, recordID, workflow string, payload resources.InitiateWorkflowPayload) error {
	unlock := r.locks.Lock(recordID)
	defer unlock()

	namespace := registry.DefaultNamespace

	specResource, err := r.workflows.Get(ctx, workflow, namespace)
	if err != nil {
		if roerrors.Is(err, roerrors.KindNotFound) {
			r.log.Warn("router: initiate dropped, workflow spec not found", "workflow", workflow)
			return nil
		}
		return err
	}
	spec := specResource.Spec

	rec, err := r.records.Create(ctx, recordID, namespace, spec, payload.Inputs, payload.Workspace)
	if err != nil {
		if roerrors.Is(err, roerrors.KindAlreadyExists) {
			r.log.Info("router: initiate dropped, record already exists (idempotent)", "workflow", workflow, "record_id", recordID)
			return nil
		}
		return err
	}

	for _, in := range spec.Inputs {
		if _, ok := payload.Inputs[in.Name]; !ok {
			r.log.Warn("router: initiate dropped, missing required input", "workflow", workflow, "input", in.Name, "record_id", recordID)
			return nil
		}
	}

	r.notify(ctx, r.startListeners, rec)

	for name, step := range spec.Steps {
		if r.stepReady(rec, step) {
			if err := r.triggerStep(ctx, rec, name, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Router) handleReport(ctx context.Context, recordID, workflow string, payload resources.ReportActionPayload) error {
	unlock := r.locks.Lock(recordID)
	defer unlock()

	namespace := registry.DefaultNamespace

	rec, err := r.records.Get(ctx, namespace, workflow, recordID)
	if err != nil {
		if roerrors.Is(err, roerrors.KindNotFound) {
			r.log.Warn("router: report dropped, record not found", "workflow", workflow, "record_id", recordID)
			return nil
		}
		return err
	}

	step, ok := rec.Spec.Steps[payload.Step]
	if !ok {
		r.log.Warn("router: report dropped, unknown step", "workflow", workflow, "record_id", recordID, "step", payload.Step)
		return nil
	}

	applyReport(rec, payload, step)

	if err := r.records.Update(ctx, rec); err != nil {
		if roerrors.Is(err, roerrors.KindNotFound) {
			r.log.Warn("router: report dropped, record deleted concurrently", "workflow", workflow, "record_id", recordID)
			return nil
		}
		return err
	}

	if isComplete(rec) {
		r.notify(ctx, r.finishListeners, rec)
		return nil
	}

	for name, s := range rec.Spec.Steps {
		if !r.stepReady(rec, s) {
			continue
		}
		run := rec.RunStatus[name]
		shouldTrigger := run.Runs == 0
		if !shouldTrigger && len(run.Results) > 0 {
			last := run.Results[len(run.Results)-1]
			if last.Error != "" && run.Runs <= s.RunConfig.NumRetries {
				shouldTrigger = true
			}
		}
		if shouldTrigger {
			if err := r.triggerStep(ctx, rec, name, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyReport mutates rec in place per spec §4.G steps 4-6.
func applyReport(rec *resources.WorkflowRecord, payload resources.ReportActionPayload, step resources.Step) {
	run := rec.RunStatus[payload.Step]
	run.Runs++
	run.Results = append(run.Results, resources.StepResult{Outputs: payload.Outputs, Error: payload.Error})
	rec.RunStatus[payload.Step] = run

	if payload.Error != "" {
		// The error is recorded against the step's outputs only once its
		// retries are spent; until then the fan-out re-triggers the step.
		if run.Runs > step.RunConfig.NumRetries {
			for _, outName := range step.OutputMap {
				rec.Errors[outName] = payload.Error
			}
		}
	} else {
		for outName, value := range payload.Outputs {
			if mapped, ok := step.OutputMap[outName]; ok {
				rec.Outputs[mapped] = value
			}
		}
	}

	for outName, value := range payload.Outputs {
		rec.Context[payload.Step+"."+outName] = value
	}
}

// isComplete is the completion test: outputs.keys ∪ errors.keys must equal
// the declared workflow outputs.
func isComplete(rec *resources.WorkflowRecord) bool {
	for _, o := range rec.Spec.Outputs {
		_, hasOutput := rec.Outputs[o.Name]
		_, hasError := rec.Errors[o.Name]
		if !hasOutput && !hasError {
			return false
		}
	}
	return true
}

func (r *Router) stepReady(rec *resources.WorkflowRecord, step resources.Step) bool {
	for _, path := range step.InputMap {
		if _, ok := rec.Context[path]; !ok {
			return false
		}
	}
	return true
}

func (r *Router) triggerStep(ctx context.Context, rec *resources.WorkflowRecord, stepName string, step resources.Step) error {
	teamResource, err := r.teams.Get(ctx, rec.Spec.Team, rec.Namespace)
	if err != nil {
		if roerrors.Is(err, roerrors.KindNotFound) {
			r.log.Warn("router: trigger dropped, team not found", "workflow", rec.Workflow, "record_id", rec.ID, "team", rec.Spec.Team)
			return nil
		}
		return err
	}
	team := teamResource.Spec

	agentName, err := inbox.ResolveAgent(team, step.Role)
	if err != nil {
		r.log.Warn("router: trigger dropped, no agent for role", "workflow", rec.Workflow, "record_id", rec.ID, "role", step.Role)
		return nil
	}

	inputs := make(map[string]string, len(step.InputMap))
	for actionInput, path := range step.InputMap {
		if tr, ok := rec.Context[path]; ok {
			inputs[actionInput] = stringifyResult(tr)
		}
	}

	payload := resources.TriggerActionPayload{
		Action:      step.Action,
		Inputs:      inputs,
		RoleContext: team.RoleDescription(step.Role),
	}

	return r.inbox.TriggerAction(ctx, rec.Namespace, agentName, rec.Workflow, rec.ID, payload)
}

func stringifyResult(tr resources.TypedResult) string {
	if s, ok := tr.Value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", tr.Value)
}

func (r *Router) notify(ctx context.Context, listeners []RecordListener, rec *resources.WorkflowRecord) {
	for _, l := range listeners {
		go func(l RecordListener) {
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("router: listener panicked", "panic", p, "record_id", rec.ID)
				}
			}()
			l(ctx, rec)
		}(l)
	}
}
