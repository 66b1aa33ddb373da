package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/testutil"
)

func newSmart() *Smart {
	return NewSmart(NewBasic(nil, nil, nil), NewBatch(nil, nil, nil), nil)
}

func complexWorkflow(id string) *testutil.Workflow {
	return testutil.NewWorkflow(id, "pipeline",
		testutil.NewStep("scan", "analysis"),
		testutil.NewStep("verify", "testing"),
		testutil.NewStep("ship", "deployment"),
	)
}

func TestSmart_SimpleWorkflowRunsBasic(t *testing.T) {
	s := newSmart()

	wf := testutil.NewWorkflow("wf-1", "pipeline", testutil.NewStep("scan", "analysis"))
	chosen := s.selectStrategy(wf, patternSignature(wf))

	if chosen.Name() != "basic" {
		t.Errorf("single-step workflow should run basic, got %s", chosen.Name())
	}
}

func TestSmart_IndependentStepsRunBatch(t *testing.T) {
	s := newSmart()

	wf := complexWorkflow("wf-1")
	chosen := s.selectStrategy(wf, patternSignature(wf))

	if chosen.Name() != "batch" {
		t.Errorf("independent multi-step workflow should run batch, got %s", chosen.Name())
	}
}

func TestSmart_TagsResultWithOwnName(t *testing.T) {
	s := newSmart()

	result, err := s.Execute(context.Background(), complexWorkflow("wf-1"), domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Strategy != "smart" {
		t.Errorf("expected smart strategy tag, got %s", result.Strategy)
	}
}

func TestSmart_LearnsPatternOutcomes(t *testing.T) {
	s := newSmart()
	wf := complexWorkflow("wf-1")

	for i := 0; i < 3; i++ {
		if _, err := s.Execute(context.Background(), wf, domain.NewContext(nil), newExecution("exec-1", "wf-1")); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}

	patterns := s.Patterns()
	pattern, ok := patterns["analysis>testing>deployment"]
	if !ok {
		t.Fatalf("expected pattern recorded, got %v", patterns)
	}
	if pattern.Observations != 3 {
		t.Errorf("expected 3 observations, got %d", pattern.Observations)
	}
	outcome, ok := pattern.StrategyStats["batch"]
	if !ok || outcome.Runs != 3 || outcome.SuccessRate() != 1 {
		t.Errorf("unexpected strategy stats: %+v", pattern.StrategyStats)
	}
}

func TestSmart_HistoryBiasesSelection(t *testing.T) {
	s := newSmart()

	failing := testutil.NewWorkflow("wf-1", "pipeline",
		testutil.NewStep("scan", "analysis"),
		testutil.NewStep("verify", "testing").WithError(errors.New("flaky environment")),
		testutil.NewStep("ship", "deployment"),
	)

	for i := 0; i < 3; i++ {
		s.Execute(context.Background(), failing, domain.NewContext(nil), newExecution("exec-1", "wf-1"))
	}

	signature := patternSignature(failing)
	s.mu.Lock()
	s.patterns[signature].StrategyStats["basic"] = &domain.StrategyOutcome{Runs: 4, Successes: 4}
	s.mu.Unlock()

	chosen := s.selectStrategy(failing, signature)
	if chosen.Name() != "basic" {
		t.Errorf("history must bias selection toward the successful strategy, got %s", chosen.Name())
	}
}
