package queue

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/loomhq/loom/internal/domain"
)

type Adapter struct {
	config domain.QueueConfig
	logger *slog.Logger

	mu         sync.Mutex
	pending    itemHeap
	processing map[string]*domain.QueueItem
	completed  map[string]*domain.QueueItem
	failed     map[string]*domain.QueueItem
	doneOrder  []string
	sequence   int64
	retryDelay backoff.BackOff

	totalEnqueued int64
	totalRetried  int64
	totalRejected int64
}

func NewAdapter(config domain.QueueConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config:     config,
		logger:     logger.With("component", "execution-queue"),
		pending:    itemHeap{},
		processing: make(map[string]*domain.QueueItem),
		completed:  make(map[string]*domain.QueueItem),
		failed:     make(map[string]*domain.QueueItem),
		retryDelay: backoff.NewConstantBackOff(config.RetryDelay),
	}
}

func (q *Adapter) Enqueue(execution *domain.Execution) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Len() >= q.config.MaxSize {
		q.totalRejected++
		q.logger.Warn("enqueue rejected - queue at capacity", "execution_id", execution.ID, "max_size", q.config.MaxSize)
		return domain.NewQueueError(execution.ID, "queue at capacity", domain.ErrQueueFull)
	}

	q.sequence++
	item := &domain.QueueItem{
		Execution:  execution,
		Priority:   domain.ComputePriority(execution.Flags),
		Sequence:   q.sequence,
		State:      domain.QueueItemQueued,
		MaxRetries: q.config.MaxRetries,
		EnqueuedAt: time.Now(),
	}

	heap.Push(&q.pending, item)
	q.totalEnqueued++

	q.logger.Debug("execution enqueued", "execution_id", execution.ID, "priority", item.Priority, "sequence", item.Sequence, "depth", q.pending.Len())
	return nil
}

func (q *Adapter) Dequeue() (*domain.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var skipped []*domain.QueueItem

	for q.pending.Len() > 0 {
		item := heap.Pop(&q.pending).(*domain.QueueItem)
		if item.NextAttemptAt.After(now) {
			skipped = append(skipped, item)
			continue
		}

		for _, s := range skipped {
			heap.Push(&q.pending, s)
		}

		item.State = domain.QueueItemProcessing
		q.processing[item.Execution.ID] = item

		q.logger.Debug("execution dequeued", "execution_id", item.Execution.ID, "priority", item.Priority, "retry_count", item.Execution.RetryCount)
		return item, true
	}

	for _, s := range skipped {
		heap.Push(&q.pending, s)
	}
	return nil, false
}

func (q *Adapter) Take(executionID string) (*domain.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.pending {
		if item.Execution.ID != executionID {
			continue
		}
		if item.NextAttemptAt.After(time.Now()) {
			return nil, false
		}

		heap.Remove(&q.pending, i)
		item.State = domain.QueueItemProcessing
		q.processing[executionID] = item

		q.logger.Debug("execution taken from queue", "execution_id", executionID, "priority", item.Priority)
		return item, true
	}
	return nil, false
}

func (q *Adapter) MarkCompleted(executionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.processing[executionID]
	if !ok {
		return domain.NewQueueError(executionID, "not in processing state", domain.ErrNotFound)
	}

	delete(q.processing, executionID)
	item.State = domain.QueueItemCompleted
	q.completed[executionID] = item
	q.recordDone(executionID)

	q.logger.Debug("execution marked completed", "execution_id", executionID)
	return nil
}

func (q *Adapter) MarkFailed(executionID string, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.processing[executionID]
	if !ok {
		return false, domain.NewQueueError(executionID, "not in processing state", domain.ErrNotFound)
	}

	delete(q.processing, executionID)
	if cause != nil {
		item.LastError = cause.Error()
	}

	if item.Execution.RetryCount < item.MaxRetries {
		item.Execution.RetryCount++
		item.State = domain.QueueItemQueued
		item.NextAttemptAt = time.Now().Add(q.retryDelay.NextBackOff())
		heap.Push(&q.pending, item)
		q.totalRetried++

		q.logger.Info("execution re-enqueued for retry",
			"execution_id", executionID,
			"retry_count", item.Execution.RetryCount,
			"max_retries", item.MaxRetries,
			"next_attempt_at", item.NextAttemptAt)
		return true, nil
	}

	item.State = domain.QueueItemFailed
	q.failed[executionID] = item
	q.recordDone(executionID)

	q.logger.Warn("execution moved to failed set", "execution_id", executionID, "retry_count", item.Execution.RetryCount, "error", item.LastError)
	return false, nil
}

func (q *Adapter) Remove(executionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.pending {
		if item.Execution.ID == executionID {
			heap.Remove(&q.pending, i)
			q.logger.Debug("execution removed from queue", "execution_id", executionID)
			return true
		}
	}

	if _, ok := q.processing[executionID]; ok {
		delete(q.processing, executionID)
		q.logger.Debug("execution removed from processing", "execution_id", executionID)
		return true
	}
	return false
}

func (q *Adapter) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *Adapter) Statistics() domain.QueueStatistics {
	q.mu.Lock()
	defer q.mu.Unlock()

	return domain.QueueStatistics{
		Queued:        q.pending.Len(),
		Processing:    len(q.processing),
		Completed:     len(q.completed),
		Failed:        len(q.failed),
		MaxSize:       q.config.MaxSize,
		TotalEnqueued: q.totalEnqueued,
		TotalRetried:  q.totalRetried,
		TotalRejected: q.totalRejected,
	}
}

func (q *Adapter) recordDone(executionID string) {
	q.doneOrder = append(q.doneOrder, executionID)
	if len(q.doneOrder) <= q.config.MaxSize {
		return
	}

	oldest := q.doneOrder[0]
	q.doneOrder = q.doneOrder[1:]
	delete(q.completed, oldest)
	delete(q.failed, oldest)
}
