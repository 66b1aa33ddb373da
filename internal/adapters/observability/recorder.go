package observability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

const throughputWindow = time.Minute

type Recorder struct {
	config domain.ObservabilityConfig
	logger *slog.Logger

	counters *domain.Counters

	mu          sync.RWMutex
	records     []domain.MetricRecord
	completions []time.Time
	started     int64
	ended       int64
}

func NewRecorder(config domain.ObservabilityConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		config:   config,
		logger:   logger.With("component", "metrics-recorder"),
		counters: domain.NewCounters(),
	}
}

func (r *Recorder) RecordExecutionStart(execution *domain.Execution) {
	r.counters.IncrementExecutionsStarted()

	r.mu.Lock()
	r.started++
	r.append(domain.MetricRecord{
		Type:        domain.MetricExecutionStart,
		ExecutionID: execution.ID,
		Workflow:    execution.WorkflowName,
		RecordedAt:  time.Now(),
	})
	r.mu.Unlock()

	r.logger.Debug("execution started", "execution_id", execution.ID, "workflow", execution.WorkflowName)
}

func (r *Recorder) RecordExecutionEnd(executionID string, result *domain.ExecutionResult) {
	if result == nil {
		return
	}

	switch {
	case result.Success:
		r.counters.IncrementExecutionsCompleted()
	default:
		r.counters.IncrementExecutionsFailed()
	}
	r.counters.AddExecutionTime(result.Duration)

	record := domain.MetricRecord{
		Type:        domain.MetricExecutionEnd,
		ExecutionID: executionID,
		Workflow:    result.WorkflowID,
		Success:     result.Success,
		Duration:    result.Duration,
		Error:       result.Error,
		RecordedAt:  time.Now(),
	}

	r.mu.Lock()
	r.ended++
	r.completions = append(r.completions, record.RecordedAt)
	r.append(record)
	r.mu.Unlock()

	r.logger.Debug("execution ended",
		"execution_id", executionID,
		"success", result.Success,
		"duration", result.Duration)
}

func (r *Recorder) RecordExecutionCancelled(executionID string) {
	r.counters.IncrementExecutionsCancelled()

	r.mu.Lock()
	r.ended++
	r.append(domain.MetricRecord{
		Type:        domain.MetricExecutionEnd,
		ExecutionID: executionID,
		Error:       "cancelled",
		RecordedAt:  time.Now(),
	})
	r.mu.Unlock()
}

func (r *Recorder) RecordExecutionRetry(executionID string) {
	r.counters.IncrementExecutionsRetried()
}

// RecordCacheHit marks a request served from the result cache. Cached
// serves never reach RecordExecutionStart, so this must not touch the
// started/ended balance or the throughput window.
func (r *Recorder) RecordCacheHit(executionID string) {
	r.counters.IncrementCacheHits()

	r.mu.Lock()
	r.append(domain.MetricRecord{
		Type:        domain.MetricCacheHit,
		ExecutionID: executionID,
		Success:     true,
		RecordedAt:  time.Now(),
	})
	r.mu.Unlock()

	r.logger.Debug("cache hit", "execution_id", executionID)
}

func (r *Recorder) RecordCacheMiss() {
	r.counters.IncrementCacheMisses()
}

func (r *Recorder) RecordStepStart(executionID string, step domain.StepMetadata, index int) {
	r.mu.Lock()
	r.append(domain.MetricRecord{
		Type:        domain.MetricStepStart,
		ExecutionID: executionID,
		StepName:    step.Name,
		StepIndex:   index,
		RecordedAt:  time.Now(),
	})
	r.mu.Unlock()
}

func (r *Recorder) RecordStepEnd(executionID string, result domain.StepResult) {
	r.counters.IncrementStepsExecuted()
	if result.Success {
		r.counters.IncrementStepsSucceeded()
	} else {
		r.counters.IncrementStepsFailed()
	}

	r.mu.Lock()
	r.append(domain.MetricRecord{
		Type:        domain.MetricStepEnd,
		ExecutionID: executionID,
		StepName:    result.Name,
		StepIndex:   result.Index,
		Success:     result.Success,
		Duration:    result.Duration,
		Error:       result.Error,
		RecordedAt:  time.Now(),
	})
	r.mu.Unlock()
}

func (r *Recorder) RecordError(executionID string, err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	r.append(domain.MetricRecord{
		Type:        domain.MetricError,
		ExecutionID: executionID,
		Error:       err.Error(),
		RecordedAt:  time.Now(),
	})
	r.mu.Unlock()

	r.logger.Debug("execution error recorded", "execution_id", executionID, "error", err)
}

func (r *Recorder) SystemMetrics() domain.SystemMetrics {
	snapshot := r.counters.Snapshot()

	finished := snapshot.ExecutionsCompleted + snapshot.ExecutionsFailed
	errorRate := 0.0
	if finished > 0 {
		errorRate = float64(snapshot.ExecutionsFailed) / float64(finished)
	}

	r.mu.RLock()
	active := int(r.started - r.ended)
	recordCount := len(r.records)
	cutoff := time.Now().Add(-throughputWindow)
	throughput := 0
	for i := len(r.completions) - 1; i >= 0; i-- {
		if r.completions[i].Before(cutoff) {
			break
		}
		throughput++
	}
	r.mu.RUnlock()

	return domain.SystemMetrics{
		Counters:             snapshot,
		ErrorRate:            errorRate,
		ThroughputPerMinute:  throughput,
		AverageExecutionTime: r.counters.AverageExecutionTime(),
		ActiveExecutions:     active,
		RecordCount:          recordCount,
		CollectedAt:          time.Now(),
	}
}

func (r *Recorder) Records(executionID string) []domain.MetricRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.MetricRecord, 0)
	for _, record := range r.records {
		if record.ExecutionID == executionID {
			matched = append(matched, record)
		}
	}
	return matched
}

func (r *Recorder) Prune() {
	cutoff := time.Now().Add(-r.config.RetentionWindow)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	for _, record := range r.records {
		if record.RecordedAt.After(cutoff) {
			kept = append(kept, record)
		}
	}
	pruned := len(r.records) - len(kept)
	r.records = kept

	windowCutoff := time.Now().Add(-throughputWindow)
	keptCompletions := r.completions[:0]
	for _, at := range r.completions {
		if at.After(windowCutoff) {
			keptCompletions = append(keptCompletions, at)
		}
	}
	r.completions = keptCompletions

	if pruned > 0 {
		r.logger.Debug("metric records pruned", "removed", pruned, "remaining", len(r.records))
	}
}

func (r *Recorder) append(record domain.MetricRecord) {
	if len(r.records) >= r.config.MaxRecords {
		overflow := len(r.records) - r.config.MaxRecords + 1
		r.records = r.records[overflow:]
	}
	r.records = append(r.records, record)
}
