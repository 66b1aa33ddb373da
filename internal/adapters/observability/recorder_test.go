package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

func recorderConfig() domain.ObservabilityConfig {
	config := domain.DefaultConfig().Observability
	config.MaxRecords = 20
	return config
}

func endResult(executionID string, success bool, duration time.Duration) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		ExecutionID: executionID,
		WorkflowID:  "wf-1",
		Success:     success,
		Duration:    duration,
		CompletedAt: time.Now(),
	}
}

func TestRecorder_ExecutionLifecycle(t *testing.T) {
	r := NewRecorder(recorderConfig(), nil)

	execution := &domain.Execution{ID: "exec-1", WorkflowID: "wf-1", WorkflowName: "flow"}
	r.RecordExecutionStart(execution)
	r.RecordStepStart("exec-1", domain.StepMetadata{Name: "analyze", Type: "analysis"}, 0)
	r.RecordStepEnd("exec-1", domain.StepResult{Index: 0, Name: "analyze", Success: true, Duration: time.Second})
	r.RecordExecutionEnd("exec-1", endResult("exec-1", true, 2*time.Second))

	records := r.Records("exec-1")
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0].Type != domain.MetricExecutionStart || records[3].Type != domain.MetricExecutionEnd {
		t.Errorf("unexpected record ordering: %v %v", records[0].Type, records[3].Type)
	}

	metrics := r.SystemMetrics()
	if metrics.Counters.ExecutionsStarted != 1 || metrics.Counters.ExecutionsCompleted != 1 {
		t.Errorf("unexpected counters: %+v", metrics.Counters)
	}
	if metrics.Counters.StepsExecuted != 1 || metrics.Counters.StepsSucceeded != 1 {
		t.Errorf("unexpected step counters: %+v", metrics.Counters)
	}
	if metrics.ActiveExecutions != 0 {
		t.Errorf("expected no active executions, got %d", metrics.ActiveExecutions)
	}
	if metrics.AverageExecutionTime != 2*time.Second {
		t.Errorf("expected 2s average, got %s", metrics.AverageExecutionTime)
	}
}

func TestRecorder_ErrorRate(t *testing.T) {
	r := NewRecorder(recorderConfig(), nil)

	for i := 0; i < 3; i++ {
		r.RecordExecutionEnd("exec-ok", endResult("exec-ok", true, time.Second))
	}
	r.RecordExecutionEnd("exec-bad", endResult("exec-bad", false, time.Second))

	metrics := r.SystemMetrics()
	if metrics.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %f", metrics.ErrorRate)
	}
	if metrics.ThroughputPerMinute != 4 {
		t.Errorf("expected throughput 4, got %d", metrics.ThroughputPerMinute)
	}
}

func TestRecorder_CacheCounters(t *testing.T) {
	r := NewRecorder(recorderConfig(), nil)

	r.RecordCacheMiss()
	execution := &domain.Execution{ID: "exec-1", WorkflowID: "wf-1", WorkflowName: "flow"}
	r.RecordExecutionStart(execution)
	r.RecordExecutionEnd("exec-1", endResult("exec-1", true, time.Second))
	r.RecordCacheHit("exec-1")

	metrics := r.SystemMetrics()
	if metrics.Counters.CacheHits != 1 || metrics.Counters.CacheMisses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", metrics.Counters.CacheHits, metrics.Counters.CacheMisses)
	}
	if metrics.Counters.ExecutionsCompleted != 1 {
		t.Errorf("cache hit must not count as a completion, got %d", metrics.Counters.ExecutionsCompleted)
	}
	if metrics.ActiveExecutions != 0 {
		t.Errorf("cache hit must not unbalance active executions, got %d", metrics.ActiveExecutions)
	}
	if metrics.ThroughputPerMinute != 1 {
		t.Errorf("cache hit must not count toward throughput, got %d", metrics.ThroughputPerMinute)
	}

	records := r.Records("exec-1")
	if len(records) == 0 || records[len(records)-1].Type != domain.MetricCacheHit {
		t.Errorf("expected trailing cache_hit record, got %v", records)
	}
}

func TestRecorder_RecordCapBoundsGrowth(t *testing.T) {
	config := recorderConfig()
	config.MaxRecords = 5
	r := NewRecorder(config, nil)

	for i := 0; i < 50; i++ {
		r.RecordError("exec-1", errors.New("boom"))
	}

	if count := r.SystemMetrics().RecordCount; count != 5 {
		t.Errorf("expected records capped at 5, got %d", count)
	}
}

func TestRecorder_PruneDropsExpiredRecords(t *testing.T) {
	config := recorderConfig()
	config.RetentionWindow = 30 * time.Millisecond
	r := NewRecorder(config, nil)

	r.RecordError("exec-old", errors.New("stale"))
	time.Sleep(50 * time.Millisecond)
	r.RecordError("exec-new", errors.New("fresh"))

	r.Prune()

	if len(r.Records("exec-old")) != 0 {
		t.Error("expected stale records pruned")
	}
	if len(r.Records("exec-new")) != 1 {
		t.Error("expected fresh record retained")
	}
}
