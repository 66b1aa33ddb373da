package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/loomhq/loom/internal/adapters/resources"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/testutil"
)

func newScheduler(t *testing.T) (*Adapter, *resources.Adapter) {
	t.Helper()

	rm := resources.NewAdapter(domain.ResourceConfig{
		MaxMemoryMB:        1024,
		MaxCPUPercent:      200,
		MaxConcurrent:      10,
		DefaultTimeout:     time.Minute,
		MonitorInterval:    time.Second,
		ViolationThreshold: 0.9,
	}, nil)

	config := domain.SchedulerConfig{
		MaxConcurrentExecutions: 4,
		BaseStepDuration:        30 * time.Second,
		StepDurationByType: map[string]time.Duration{
			"testing": 90 * time.Second,
		},
	}

	return NewAdapter(config, rm, nil, nil), rm
}

func execution(id string, flags map[string]bool) *domain.Execution {
	return &domain.Execution{
		ID:         id,
		WorkflowID: "wf-" + id,
		Status:     domain.ExecutionStatusRunning,
		Flags:      flags,
		StartedAt:  time.Now(),
	}
}

func TestAdapter_ScheduleEstimates(t *testing.T) {
	s, _ := newScheduler(t)

	wf := testutil.NewWorkflow("wf-1", "pipeline",
		testutil.NewStep("unit", "testing"),
		testutil.NewStep("review", "analysis"),
	)

	scheduled, err := s.Schedule(execution("exec-1", nil), wf)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if scheduled.EstimatedDuration != 120*time.Second {
		t.Errorf("expected 120s estimate (90s typed + 30s base), got %s", scheduled.EstimatedDuration)
	}
	if scheduled.Priority != 5 {
		t.Errorf("expected default priority 5, got %d", scheduled.Priority)
	}
	if scheduled.Requirements.MemoryMB == 0 {
		t.Error("expected nonzero memory estimate")
	}
}

func TestAdapter_ScheduleRejectsUnknownDependency(t *testing.T) {
	s, _ := newScheduler(t)

	wf := testutil.NewWorkflow("wf-1", "dependent", testutil.NewStep("s", "analysis")).
		WithDependencies("missing-exec")

	_, err := s.Schedule(execution("exec-1", nil), wf)
	if err == nil {
		t.Fatal("expected scheduling error for unknown dependency")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.ErrorKindScheduler {
		t.Errorf("expected scheduler error kind, got %v", err)
	}
}

func TestAdapter_ScheduleRejectsCircularDependency(t *testing.T) {
	s, _ := newScheduler(t)

	a := testutil.NewWorkflow("wf-a", "a", testutil.NewStep("s", "analysis"))
	if _, err := s.Schedule(execution("exec-a", nil), a); err != nil {
		t.Fatalf("schedule a: %v", err)
	}

	s.mu.Lock()
	cycles := s.graph.wouldCycle("exec-a", []string{"exec-a"})
	s.mu.Unlock()
	if !cycles {
		t.Error("expected self-dependency to be reported as a cycle")
	}

	s.mu.Lock()
	s.graph.add("exec-b", []string{"exec-a"})
	cycles = s.graph.wouldCycle("exec-a", []string{"exec-b"})
	s.mu.Unlock()
	if !cycles {
		t.Error("expected a->b->a to be reported as a cycle")
	}
}

func TestAdapter_ScheduleRejectsOversizedRequirements(t *testing.T) {
	s, _ := newScheduler(t)

	wf := testutil.NewWorkflow("wf-1", "heavy",
		testutil.NewStep("big", "analysis").WithResources(4096, 50),
	)

	_, err := s.Schedule(execution("exec-1", nil), wf)
	if err == nil {
		t.Fatal("expected rejection for 4096MB against 1024MB pool")
	}
}

func TestAdapter_ReadyExecutionsOrderAndDependencies(t *testing.T) {
	s, _ := newScheduler(t)

	base := testutil.NewWorkflow("wf-base", "base", testutil.NewStep("s", "analysis"))
	s.Schedule(execution("exec-base", nil), base)

	dependent := testutil.NewWorkflow("wf-dep", "dep", testutil.NewStep("s", "analysis")).
		WithDependencies("exec-base")
	s.Schedule(execution("exec-dep", map[string]bool{domain.FlagCritical: true}), dependent)

	free := testutil.NewWorkflow("wf-free", "free", testutil.NewStep("s", "analysis"))
	s.Schedule(execution("exec-free", nil), free)

	ready := s.ReadyExecutions()
	ids := make([]string, 0, len(ready))
	for _, se := range ready {
		ids = append(ids, se.ExecutionID)
	}

	for _, id := range ids {
		if id == "exec-dep" {
			t.Error("blocked execution must not be ready before its dependency completes")
		}
	}
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready executions, got %v", ids)
	}

	if err := s.MarkRunning("exec-base"); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := s.MarkCompleted("exec-base"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	ready = s.ReadyExecutions()
	if len(ready) == 0 || ready[0].ExecutionID != "exec-dep" {
		t.Errorf("expected exec-dep ready first after dependency completion, got %+v", ready)
	}
}

func TestAdapter_ReadyExecutionsRespectsResourceFit(t *testing.T) {
	s, rm := newScheduler(t)

	wf := testutil.NewWorkflow("wf-1", "fit",
		testutil.NewStep("s", "analysis").WithResources(512, 50),
	)
	s.Schedule(execution("exec-1", nil), wf)

	rm.Allocate("occupier", domain.ResourceRequirements{MemoryMB: 900, CPUPercent: 10})

	if ready := s.ReadyExecutions(); len(ready) != 0 {
		t.Errorf("expected no ready executions while pool is occupied, got %d", len(ready))
	}

	rm.Release("occupier")

	if ready := s.ReadyExecutions(); len(ready) != 1 {
		t.Errorf("expected 1 ready execution after release, got %d", len(ready))
	}
}

func TestAdapter_MarkPendingReadmitsFailedExecution(t *testing.T) {
	s, _ := newScheduler(t)

	wf := testutil.NewWorkflow("wf-1", "retryable", testutil.NewStep("s", "analysis"))
	s.Schedule(execution("exec-1", nil), wf)

	if err := s.MarkRunning("exec-1"); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if ready := s.ReadyExecutions(); len(ready) != 0 {
		t.Errorf("running execution must not be ready, got %d", len(ready))
	}

	if err := s.MarkPending("exec-1"); err != nil {
		t.Fatalf("mark pending: %v", err)
	}

	ready := s.ReadyExecutions()
	if len(ready) != 1 || ready[0].ExecutionID != "exec-1" {
		t.Errorf("expected exec-1 ready after readmission, got %+v", ready)
	}
	if err := s.MarkPending("unknown"); err == nil {
		t.Error("expected error for unknown execution")
	}
}

func TestAdapter_PruneDropsTerminalExecutions(t *testing.T) {
	s, _ := newScheduler(t)

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("exec-%d", i)
		wf := testutil.NewWorkflow("wf-"+id, "one", testutil.NewStep("s", "analysis"))
		if _, err := s.Schedule(execution(id, nil), wf); err != nil {
			t.Fatalf("schedule %s: %v", id, err)
		}
		s.MarkRunning(id)
		s.MarkCompleted(id)
	}

	if stats := s.Statistics(); stats.Scheduled != 100 {
		t.Fatalf("expected 100 scheduled before prune, got %d", stats.Scheduled)
	}

	if removed := s.Prune(); removed != 100 {
		t.Errorf("expected 100 pruned, got %d", removed)
	}

	stats := s.Statistics()
	if stats.Scheduled != 0 {
		t.Errorf("expected empty registry after prune, got %d", stats.Scheduled)
	}
	if stats.GraphEdges != 0 {
		t.Errorf("expected no graph edges after prune, got %d", stats.GraphEdges)
	}
}

func TestAdapter_PruneKeepsReferencedDependencies(t *testing.T) {
	s, _ := newScheduler(t)

	base := testutil.NewWorkflow("wf-base", "base", testutil.NewStep("s", "analysis"))
	s.Schedule(execution("exec-base", nil), base)
	s.MarkRunning("exec-base")
	s.MarkCompleted("exec-base")

	dependent := testutil.NewWorkflow("wf-dep", "dep", testutil.NewStep("s", "analysis")).
		WithDependencies("exec-base")
	s.Schedule(execution("exec-dep", nil), dependent)

	if removed := s.Prune(); removed != 0 {
		t.Errorf("completed dependency of a pending execution must survive, pruned %d", removed)
	}

	ready := s.ReadyExecutions()
	if len(ready) != 1 || ready[0].ExecutionID != "exec-dep" {
		t.Fatalf("expected exec-dep ready, got %+v", ready)
	}

	s.MarkRunning("exec-dep")
	s.MarkCompleted("exec-dep")

	if removed := s.Prune(); removed != 2 {
		t.Errorf("expected both executions pruned once terminal, got %d", removed)
	}
}

func TestAdapter_CancelRemovesPendingEdges(t *testing.T) {
	s, _ := newScheduler(t)

	wf := testutil.NewWorkflow("wf-1", "one", testutil.NewStep("s", "analysis"))
	s.Schedule(execution("exec-1", nil), wf)

	if err := s.Cancel("exec-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stats := s.Statistics()
	if stats.Cancelled != 1 {
		t.Errorf("expected 1 cancelled, got %+v", stats)
	}
	if stats.GraphEdges != 0 {
		t.Errorf("expected no graph edges after cancel, got %d", stats.GraphEdges)
	}
	if err := s.Cancel("unknown"); err == nil {
		t.Error("expected error cancelling unknown execution")
	}
}
