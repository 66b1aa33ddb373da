package ports

import (
	"github.com/loomhq/loom/internal/domain"
)

type ExecutionScheduler interface {
	Schedule(execution *domain.Execution, workflow Workflow) (*domain.ScheduledExecution, error)
	ReadyExecutions() []*domain.ScheduledExecution
	MarkRunning(executionID string) error
	MarkPending(executionID string) error
	MarkCompleted(executionID string) error
	MarkFailed(executionID string) error
	Cancel(executionID string) error
	Prune() int
	Statistics() domain.SchedulerStatistics
}
