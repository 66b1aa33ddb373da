package ports

import (
	"context"

	"github.com/loomhq/loom/internal/domain"
)

type MetricsRecorder interface {
	RecordExecutionStart(execution *domain.Execution)
	RecordExecutionEnd(executionID string, result *domain.ExecutionResult)
	RecordExecutionCancelled(executionID string)
	RecordExecutionRetry(executionID string)
	RecordCacheHit(executionID string)
	RecordCacheMiss()
	RecordStepStart(executionID string, step domain.StepMetadata, index int)
	RecordStepEnd(executionID string, result domain.StepResult)
	RecordError(executionID string, err error)
	SystemMetrics() domain.SystemMetrics
	Records(executionID string) []domain.MetricRecord
	Prune()
}

type ExecutionMonitor interface {
	Track(execution *domain.Execution)
	Heartbeat(executionID string)
	Untrack(executionID string)
	Active() []string
	Alerts() []domain.AlertRecord
	SetAlertHook(hook func(domain.AlertRecord))
	ObserveResult(result *domain.ExecutionResult)
	ObserveResources(snapshot domain.ResourceSnapshot)
	ObserveViolation(violation domain.ResourceViolation)
	ObserveErrorRate(rate float64)
	Start(ctx context.Context)
	Stop()
}
