package ports

import (
	"github.com/loomhq/loom/internal/domain"
)

type ExecutionQueue interface {
	Enqueue(execution *domain.Execution) error
	Dequeue() (*domain.QueueItem, bool)
	Take(executionID string) (*domain.QueueItem, bool)
	MarkCompleted(executionID string) error
	MarkFailed(executionID string, cause error) (bool, error)
	Remove(executionID string) bool
	Len() int
	Statistics() domain.QueueStatistics
}
