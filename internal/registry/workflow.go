package registry

import (
	"context"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
)

// WorkflowRegistry specializes Registry for WorkflowSpec: Create/Update
// additionally recompute SortedSteps via topological sort and reject
// specs whose step graph contains a cycle, per spec invariant "for any
// declared workflow whose dependency graph contains a cycle, Create/Update
// fails; no record is ever created."
type WorkflowRegistry struct {
	inner *Registry[resources.WorkflowSpec, resources.NoStatus]
}

// NewWorkflowRegistry constructs a WorkflowRegistry.
func NewWorkflowRegistry(store kv.Store, log *logger.Logger, root string) *WorkflowRegistry {
	return &WorkflowRegistry{
		inner: New[resources.WorkflowSpec, resources.NoStatus](
			store, log, root, KindPrefixWorkflow, "v1", string(ResourceTypeWorkflow),
			func(resources.WorkflowSpec) resources.NoStatus { return resources.NoStatus{} },
		),
	}
}

// Create validates the step graph is acyclic, computes SortedSteps, and
// delegates to the generic Registry.
func (r *WorkflowRegistry) Create(ctx context.Context, name, namespace string, spec resources.WorkflowSpec) (*resources.WorkflowResource, error) {
	sorted, err := SortSteps(spec.Steps)
	if err != nil {
		return nil, err
	}
	spec.SortedSteps = sorted
	return r.inner.Create(ctx, name, namespace, spec)
}

// Get delegates to the generic Registry.
func (r *WorkflowRegistry) Get(ctx context.Context, name, namespace string) (*resources.WorkflowResource, error) {
	return r.inner.Get(ctx, name, namespace)
}

// List delegates to the generic Registry.
func (r *WorkflowRegistry) List(ctx context.Context, namespace string) ([]*resources.WorkflowResource, error) {
	return r.inner.List(ctx, namespace)
}

// Update re-validates and re-sorts the step graph before writing.
func (r *WorkflowRegistry) Update(ctx context.Context, name, namespace string, spec resources.WorkflowSpec) (*resources.WorkflowResource, error) {
	sorted, err := SortSteps(spec.Steps)
	if err != nil {
		return nil, err
	}
	spec.SortedSteps = sorted
	return r.inner.Update(ctx, name, namespace, spec)
}

// Delete delegates to the generic Registry. Deleting a WorkflowSpec does
// not cascade into in-flight WorkflowRecords (spec §3, Open Question #2):
// records remain navigable via the Workflow Record Store after this call.
func (r *WorkflowRegistry) Delete(ctx context.Context, name, namespace string) error {
	return r.inner.Delete(ctx, name, namespace)
}

// SortSteps computes a deterministic topological order over steps using
// each step's Dependencies() (the other step names its inputMap
// references). Returns InvalidResource if the graph contains a cycle.
func SortSteps(steps map[string]resources.Step) ([]string, error) {
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))

	for name := range steps {
		indegree[name] = 0
	}
	for name, step := range steps {
		for dep := range step.Dependencies() {
			if _, isStep := steps[dep]; !isStep {
				continue // "workflow" or an unknown reference; not a graph edge
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range sortedKeys(steps) {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, roerrors.InvalidResource("workflow step graph contains a cycle")
	}
	return order, nil
}

func sortedKeys(steps map[string]resources.Step) []string {
	keys := make([]string, 0, len(steps))
	for k := range steps {
		keys = append(keys, k)
	}
	// Simple insertion sort keeps SortSteps deterministic without pulling
	// in sort for what is always a small step count.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
