package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

func newExecution(id string, flags map[string]bool) *domain.Execution {
	return &domain.Execution{
		ID:         id,
		WorkflowID: "wf-" + id,
		Status:     domain.ExecutionStatusRunning,
		Flags:      flags,
		StartedAt:  time.Now(),
	}
}

func testConfig() domain.QueueConfig {
	return domain.QueueConfig{
		MaxSize:    10,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}
}

func TestAdapter_DequeueByPriority(t *testing.T) {
	q := NewAdapter(testConfig(), nil)

	q.Enqueue(newExecution("low", map[string]bool{domain.FlagLow: true}))
	q.Enqueue(newExecution("critical", map[string]bool{domain.FlagCritical: true}))
	q.Enqueue(newExecution("high", map[string]bool{domain.FlagHigh: true}))

	expected := []string{"critical", "high", "low"}
	for _, want := range expected {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected item %s, queue empty", want)
		}
		if item.Execution.ID != want {
			t.Errorf("expected %s, got %s", want, item.Execution.ID)
		}
	}
}

func TestAdapter_EqualPriorityFIFO(t *testing.T) {
	q := NewAdapter(testConfig(), nil)

	for _, id := range []string{"first", "second", "third"} {
		if err := q.Enqueue(newExecution(id, nil)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected item %s, queue empty", want)
		}
		if item.Execution.ID != want {
			t.Errorf("expected %s, got %s", want, item.Execution.ID)
		}
	}
}

func TestAdapter_EnqueueBackpressure(t *testing.T) {
	config := testConfig()
	config.MaxSize = 2
	q := NewAdapter(config, nil)

	q.Enqueue(newExecution("a", nil))
	q.Enqueue(newExecution("b", nil))

	err := q.Enqueue(newExecution("c", nil))
	if err == nil {
		t.Fatal("expected backpressure error at capacity")
	}
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	stats := q.Statistics()
	if stats.TotalRejected != 1 {
		t.Errorf("expected 1 rejection, got %d", stats.TotalRejected)
	}
}

func TestAdapter_RetryBound(t *testing.T) {
	config := testConfig()
	config.RetryDelay = 0
	q := NewAdapter(config, nil)

	q.Enqueue(newExecution("flaky", nil))

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatalf("attempt %d: expected item", attempt)
		}

		requeued, err := q.MarkFailed(item.Execution.ID, errors.New("boom"))
		if err != nil {
			t.Fatalf("attempt %d: mark failed: %v", attempt, err)
		}

		if attempt < config.MaxRetries && !requeued {
			t.Errorf("attempt %d: expected re-enqueue", attempt)
		}
		if attempt == config.MaxRetries && requeued {
			t.Error("expected move to failed set after retries exhausted")
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Error("failed execution must never be re-enqueued again")
	}

	stats := q.Statistics()
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	if stats.TotalRetried != int64(config.MaxRetries) {
		t.Errorf("expected %d retries, got %d", config.MaxRetries, stats.TotalRetried)
	}
}

func TestAdapter_RetryDelayDefersDequeue(t *testing.T) {
	config := testConfig()
	config.RetryDelay = 50 * time.Millisecond
	q := NewAdapter(config, nil)

	q.Enqueue(newExecution("delayed", nil))

	item, _ := q.Dequeue()
	q.MarkFailed(item.Execution.ID, errors.New("boom"))

	if _, ok := q.Dequeue(); ok {
		t.Error("retried item must not be eligible before its delay elapses")
	}

	time.Sleep(60 * time.Millisecond)

	item, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected retried item after delay")
	}
	if item.Execution.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", item.Execution.RetryCount)
	}
}

func TestAdapter_TakeClaimsSpecificExecution(t *testing.T) {
	q := NewAdapter(testConfig(), nil)

	q.Enqueue(newExecution("a", nil))
	q.Enqueue(newExecution("b", map[string]bool{domain.FlagCritical: true}))

	item, ok := q.Take("a")
	if !ok {
		t.Fatal("expected to take queued execution")
	}
	if item.Execution.ID != "a" {
		t.Errorf("expected a, got %s", item.Execution.ID)
	}
	if _, ok := q.Take("a"); ok {
		t.Error("expected second take to report not found")
	}

	stats := q.Statistics()
	if stats.Queued != 1 || stats.Processing != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestAdapter_TakeHonorsRetryDelay(t *testing.T) {
	config := testConfig()
	config.RetryDelay = 50 * time.Millisecond
	q := NewAdapter(config, nil)

	q.Enqueue(newExecution("retrying", nil))
	item, _ := q.Dequeue()
	q.MarkFailed(item.Execution.ID, errors.New("boom"))

	if _, ok := q.Take("retrying"); ok {
		t.Error("retried item must not be takeable before its delay elapses")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := q.Take("retrying"); !ok {
		t.Error("expected retried item to be takeable after delay")
	}
}

func TestAdapter_MarkCompleted(t *testing.T) {
	q := NewAdapter(testConfig(), nil)

	q.Enqueue(newExecution("done", nil))
	item, _ := q.Dequeue()

	if err := q.MarkCompleted(item.Execution.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	if err := q.MarkCompleted(item.Execution.ID); err == nil {
		t.Error("expected error for double completion")
	}

	stats := q.Statistics()
	if stats.Completed != 1 || stats.Processing != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestAdapter_Remove(t *testing.T) {
	q := NewAdapter(testConfig(), nil)

	q.Enqueue(newExecution("keep", nil))
	q.Enqueue(newExecution("drop", nil))

	if !q.Remove("drop") {
		t.Fatal("expected removal of queued item")
	}
	if q.Remove("drop") {
		t.Error("expected second removal to report not found")
	}

	item, ok := q.Dequeue()
	if !ok || item.Execution.ID != "keep" {
		t.Errorf("expected keep, got %+v", item)
	}
}
