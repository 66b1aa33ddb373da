package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

func (e *Engine) dispatchLoop() {
	defer e.wg.Done()

	e.configMu.RLock()
	interval := e.config.Engine.DispatchInterval
	e.configMu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.rootCtx.Done():
			return
		case <-ticker.C:
			e.dispatch()
		}
	}
}

func (e *Engine) pruneLoop() {
	defer e.wg.Done()

	e.configMu.RLock()
	interval := e.config.Observability.PruneInterval
	retention := e.config.Observability.RetentionWindow
	e.configMu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.rootCtx.Done():
			return
		case <-ticker.C:
			e.recorder.Prune()
			e.scheduler.Prune()
			e.cache.InvalidateByAge(retention)
		}
	}
}

func (e *Engine) dispatch() {
	for _, scheduled := range e.scheduler.ReadyExecutions() {
		id := scheduled.ExecutionID

		e.mu.RLock()
		entry, ok := e.active[id]
		e.mu.RUnlock()
		if !ok {
			continue
		}

		item, ok := e.queue.Take(id)
		if !ok {
			continue
		}

		if _, err := e.resources.Allocate(id, scheduled.Requirements); err != nil {
			e.logger.Debug("allocation lost to a concurrent dispatch", "execution_id", id, "error", err)
			e.handleFailure(entry, item, nil, err)
			continue
		}

		if err := e.scheduler.MarkRunning(id); err != nil {
			e.resources.Release(id)
			continue
		}

		e.wg.Add(1)
		go e.run(entry, item)
	}
}

func (e *Engine) run(entry *activeExecution, item *domain.QueueItem) {
	defer e.wg.Done()

	execution := entry.execution
	id := execution.ID

	runCtx, cancel := context.WithTimeout(e.rootCtx, execution.Timeout)
	entry.setCancel(cancel)
	defer cancel()

	strat := e.strategyFor(entry.opts.Strategy)

	runCtx, span := e.tracer.Start(runCtx, "loom.run_execution", trace.WithAttributes(
		attribute.String("execution.id", id),
		attribute.String("strategy", strat.Name()),
		attribute.Int("attempt", execution.RetryCount+1),
	))

	if plan, err := e.optimizer.Optimize(entry.workflow, entry.wfctx); err == nil {
		entry.tunedTypes = transformedStepTypes(plan)
		span.SetAttributes(
			attribute.String("optimizer.suggested_strategy", plan.SuggestedStrategy),
			attribute.Float64("optimizer.score", plan.Analysis.OptimizationScore),
		)
	}

	result, err := strat.Execute(runCtx, entry.workflow, entry.wfctx, execution)
	span.End()

	e.resources.Release(id)

	if entry.isCancelled() {
		return
	}

	if err == nil && result != nil && result.Success {
		e.handleSuccess(entry, result)
		return
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = domain.NewTimeoutError(domain.TimeoutScopeExecution, id, execution.Timeout)
	}
	e.handleFailure(entry, item, result, err)
}

func (e *Engine) handleSuccess(entry *activeExecution, result *domain.ExecutionResult) {
	execution := entry.execution
	id := execution.ID

	if err := e.queue.MarkCompleted(id); err != nil {
		e.logger.Debug("queue completion bookkeeping failed", "execution_id", id, "error", err)
	}
	_ = e.scheduler.MarkCompleted(id)
	execution.MarkCompleted()

	e.cache.Put(entry.workflow, entry.wfctx, result, ports.CacheOptions{
		TTL:              e.cacheTTL(entry.opts),
		ExcludeSensitive: entry.opts.ExcludeSensitiveFromCache,
	})

	e.predictor.Reconcile(entry.workflow, result)
	e.recordStepOutcomes(result, entry.tunedTypes)
	e.recorder.RecordExecutionEnd(id, result)
	e.monitor.ObserveResult(result)
	e.monitor.ObserveErrorRate(e.recorder.SystemMetrics().ErrorRate)

	e.finish(entry, result, nil)

	e.logger.Info("execution completed",
		"execution_id", id,
		"workflow_id", execution.WorkflowID,
		"duration", result.Duration,
		"steps", len(result.Steps))
}

func (e *Engine) handleFailure(entry *activeExecution, item *domain.QueueItem, result *domain.ExecutionResult, cause error) {
	execution := entry.execution
	id := execution.ID

	if cause == nil {
		if result != nil && result.Error != "" {
			cause = domain.ClassifyError(errors.New(result.Error))
		} else {
			cause = domain.NewStrategyError(entry.opts.Strategy, execution.WorkflowName, domain.ErrInvalidState)
		}
	} else {
		cause = domain.ClassifyError(cause)
	}

	e.recorder.RecordError(id, cause)

	retried, err := e.queue.MarkFailed(id, cause)
	if err != nil {
		e.logger.Debug("queue failure bookkeeping failed", "execution_id", id, "error", err)
	}
	if retried {
		e.recorder.RecordExecutionRetry(id)
		if err := e.scheduler.MarkPending(id); err != nil {
			e.logger.Debug("retry rescheduling failed", "execution_id", id, "error", err)
		}
		e.logger.Info("execution queued for retry",
			"execution_id", id,
			"attempt", execution.RetryCount,
			"max_retries", item.MaxRetries)
		return
	}

	execution.MarkFailed(cause.Error())
	_ = e.scheduler.MarkFailed(id)

	if result != nil {
		e.predictor.Reconcile(entry.workflow, result)
		e.recordStepOutcomes(result, entry.tunedTypes)
		e.monitor.ObserveResult(result)
	}
	e.recorder.RecordExecutionEnd(id, failureResult(execution, result, cause))
	e.monitor.ObserveErrorRate(e.recorder.SystemMetrics().ErrorRate)

	e.finish(entry, result, cause)

	e.logger.Warn("execution failed",
		"execution_id", id,
		"workflow_id", execution.WorkflowID,
		"retries", execution.RetryCount,
		"error", cause)
}

func (e *Engine) recordStepOutcomes(result *domain.ExecutionResult, tuned map[string]bool) {
	for _, step := range result.Steps {
		e.stepOpt.RecordOutcome(step.Type, tuned[step.Type], step)
	}
}

// transformedStepTypes indexes the step types the optimizer actually
// rewrote, so their outcomes land in the tuned sample set.
func transformedStepTypes(plan *domain.OptimizationPlan) map[string]bool {
	var tuned map[string]bool
	for _, step := range plan.Steps {
		if len(step.AppliedRules) == 0 {
			continue
		}
		if tuned == nil {
			tuned = make(map[string]bool)
		}
		tuned[step.Original.Type] = true
	}
	return tuned
}

func (e *Engine) cacheTTL(opts domain.ExecutionOptions) time.Duration {
	if opts.CacheTTL > 0 {
		return opts.CacheTTL
	}
	e.configMu.RLock()
	defer e.configMu.RUnlock()
	return e.config.Engine.DefaultCacheTTL
}

func failureResult(execution *domain.Execution, result *domain.ExecutionResult, cause error) *domain.ExecutionResult {
	if result != nil {
		return result
	}
	return &domain.ExecutionResult{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Success:     false,
		Duration:    time.Since(execution.StartedAt),
		Error:       cause.Error(),
		CompletedAt: time.Now(),
	}
}
