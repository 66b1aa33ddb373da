package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/testutil"
)

func newExecution(id, workflowID string) *domain.Execution {
	return &domain.Execution{
		ID:           id,
		WorkflowID:   workflowID,
		WorkflowName: workflowID,
		Status:       domain.ExecutionStatusRunning,
	}
}

func TestBasic_RunsStepsInOrder(t *testing.T) {
	s := NewBasic(nil, nil, nil)

	first := testutil.NewStep("first", "analysis")
	second := testutil.NewStep("second", "testing")
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second)

	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !result.Success {
		t.Fatal("expected successful result")
	}
	if len(result.Steps) != 2 || result.Steps[0].Name != "first" || result.Steps[1].Name != "second" {
		t.Errorf("unexpected step results: %+v", result.Steps)
	}
	if result.Output["first"] != "first-output" || result.Output["second"] != "second-output" {
		t.Errorf("unexpected output: %v", result.Output)
	}
	if result.Strategy != "basic" {
		t.Errorf("expected basic strategy tag, got %s", result.Strategy)
	}
}

func TestBasic_HaltsAtFirstFailure(t *testing.T) {
	s := NewBasic(nil, nil, nil)

	first := testutil.NewStep("first", "analysis")
	second := testutil.NewStep("second", "testing").WithError(errors.New("assertion failed"))
	third := testutil.NewStep("third", "deployment")
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second, third)

	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Success {
		t.Fatal("expected failed result")
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
	if !result.Steps[0].Success || result.Steps[1].Success {
		t.Errorf("expected [success, failure], got %+v", result.Steps)
	}
	if third.Executions != 0 {
		t.Error("step after a failure must never execute")
	}
	if failed := result.FailedStep(); failed == nil || failed.Name != "second" {
		t.Errorf("expected failed step second, got %+v", failed)
	}
}

func TestBasic_CancelledContext(t *testing.T) {
	s := NewBasic(nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf := testutil.NewWorkflow("wf-1", "pipeline", testutil.NewStep("first", "analysis"))
	_, err := s.Execute(ctx, wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))

	if err == nil {
		t.Fatal("expected strategy error on cancelled context")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindStrategyExecution {
		t.Errorf("expected strategy execution kind, got %v", err)
	}
}
