package github

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// Filter is a cached CEL predicate gating which webhook deliveries
// initiate a workflow, generalized from a node-output condition evaluator
// into an event filter: the expression is compiled once against an
// `event` variable exposing the parsed delivery body.
type Filter struct {
	mu  sync.RWMutex
	prg cel.Program
}

// NewFilter compiles expr once up front so a malformed CEL filter fails
// fast at Adapter construction rather than on the first webhook delivery.
func NewFilter(expr string) (*Filter, error) {
	env, err := cel.NewEnv(cel.Variable("event", cel.DynType))
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindSetup, "create CEL env", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, roerrors.Wrap(roerrors.KindInvalidResource, "compile github filter CEL", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindSetup, "build CEL program", err)
	}

	return &Filter{prg: prg}, nil
}

// Matches evaluates the filter against a decoded event map (the JSON
// webhook body plus a synthesized "type" key from X-GitHub-Event).
func (f *Filter) Matches(event map[string]any) (bool, error) {
	f.mu.RLock()
	prg := f.prg
	f.mu.RUnlock()

	out, _, err := prg.Eval(map[string]any{"event": event})
	if err != nil {
		return false, roerrors.Wrap(roerrors.KindInvalidEvent, "evaluate github filter", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, roerrors.InvalidEvent(fmt.Sprintf("github filter did not return bool, got %T", out.Value()))
	}
	return result, nil
}
