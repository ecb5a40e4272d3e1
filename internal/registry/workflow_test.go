package registry

import (
	"testing"

	"github.com/rosterhq/control-plane/internal/resources"
)

func TestSortSteps_Sequential(t *testing.T) {
	steps := map[string]resources.Step{
		"s1": {InputMap: map[string]string{"in": "workflow.q"}},
		"s2": {InputMap: map[string]string{"in": "s1.out"}},
	}

	order, err := SortSteps(steps)
	if err != nil {
		t.Fatalf("SortSteps failed: %v", err)
	}
	if len(order) != 2 || order[0] != "s1" || order[1] != "s2" {
		t.Fatalf("expected [s1 s2], got %v", order)
	}
}

func TestSortSteps_CycleRejected(t *testing.T) {
	steps := map[string]resources.Step{
		"s1": {InputMap: map[string]string{"x": "s2.y"}},
		"s2": {InputMap: map[string]string{"y": "s1.x"}},
	}

	_, err := SortSteps(steps)
	if err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestSortSteps_IndependentStepsBothReady(t *testing.T) {
	steps := map[string]resources.Step{
		"s1": {InputMap: map[string]string{"in": "workflow.q"}},
		"s2": {InputMap: map[string]string{"in": "workflow.q"}},
	}

	order, err := SortSteps(steps)
	if err != nil {
		t.Fatalf("SortSteps failed: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 steps in order, got %v", order)
	}
}
