package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
	"github.com/loomhq/loom/internal/testutil"
)

func TestBatch_ParallelIndependentSteps(t *testing.T) {
	s := NewBatch(nil, nil, nil)

	first := testutil.NewStep("first", "analysis")
	second := testutil.NewStep("second", "analysis")
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second)

	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !result.Success || len(result.Steps) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, step := range result.Steps {
		if !step.Parallel {
			t.Errorf("step %s should carry parallel flag", step.Name)
		}
	}
}

func TestBatch_ParallelStepsOverlapInTime(t *testing.T) {
	s := NewBatch(nil, nil, nil)

	first := testutil.NewStep("first", "analysis")
	second := testutil.NewStep("second", "analysis")
	first.Delay = 50 * time.Millisecond
	second.Delay = 50 * time.Millisecond
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second)

	started := time.Now()
	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if elapsed := time.Since(started); elapsed >= 100*time.Millisecond {
		t.Errorf("expected parallel execution, took %s", elapsed)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
}

func TestBatch_DependencyForcesSequential(t *testing.T) {
	s := NewBatch(nil, nil, nil)

	first := testutil.NewStep("first", "analysis")
	second := testutil.NewStep("second", "analysis").WithDependencies("first")
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second)

	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	for _, step := range result.Steps {
		if step.Parallel {
			t.Errorf("dependent steps must not run in parallel, step %s", step.Name)
		}
	}
}

func TestBatch_ResourceCeilingForcesSequential(t *testing.T) {
	s := NewBatch(nil, nil, nil)

	first := testutil.NewStep("first", "refactor").WithResources(1536, 60)
	second := testutil.NewStep("second", "refactor").WithResources(1536, 60)
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second)

	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	for _, step := range result.Steps {
		if step.Parallel {
			t.Error("combined estimate above the ceiling must run sequentially")
		}
	}
}

func TestBatch_SharedExclusiveResourceForcesSequential(t *testing.T) {
	s := NewBatch(nil, nil, nil)

	first := testutil.NewStep("first", "deployment").WithParameters(map[string]interface{}{"exclusive_resource": "registry"})
	second := testutil.NewStep("second", "deployment").WithParameters(map[string]interface{}{"exclusive_resource": "registry"})
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second)

	result, _ := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	for _, step := range result.Steps {
		if step.Parallel {
			t.Error("steps sharing an exclusive resource must not overlap")
		}
	}
}

func TestBatch_AbortsAfterFailedBatch(t *testing.T) {
	s := NewBatch(nil, nil, nil)

	first := testutil.NewStep("first", "analysis").WithError(errors.New("scan failed"))
	second := testutil.NewStep("second", "analysis")
	third := testutil.NewStep("third", "deployment")
	wf := testutil.NewWorkflow("wf-1", "pipeline", first, second, third)

	result, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Success {
		t.Fatal("expected failed result")
	}
	if third.Executions != 0 {
		t.Error("batch after a failed batch must never execute")
	}
}

func TestGroupSteps_SimilarityAndBound(t *testing.T) {
	steps := make([]ports.Step, 0, 6)
	for i := 0; i < 5; i++ {
		steps = append(steps, testutil.NewStep("scan", "analysis"))
	}
	steps = append(steps, testutil.NewStep("ship", "deployment"))

	batches := groupSteps(steps)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches (4+1 analysis, 1 deployment), got %d", len(batches))
	}
	if len(batches[0].steps) != maxBatchSize {
		t.Errorf("expected first batch bounded at %d, got %d", maxBatchSize, len(batches[0].steps))
	}
}
