package engine

import (
	"time"

	"dario.cat/mergo"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

func (e *Engine) GetSystemMetrics() domain.SystemMetrics {
	metrics := e.recorder.SystemMetrics()

	e.mu.RLock()
	metrics.ActiveExecutions = len(e.active)
	e.mu.RUnlock()

	return metrics
}

func (e *Engine) GetHealthStatus() domain.HealthStatus {
	queueStats := e.queue.Statistics()
	schedulerStats := e.scheduler.Statistics()

	components := map[string]bool{
		"queue":     queueStats.Queued < queueStats.MaxSize,
		"scheduler": schedulerStats.Running <= schedulerStats.MaxConcurrent,
		"resources": e.resources.IsHealthy(),
		"engine":    !e.isShutdown(),
	}

	healthy := true
	for _, ok := range components {
		if !ok {
			healthy = false
		}
	}

	return domain.HealthStatus{
		Healthy:    healthy,
		Components: components,
		CheckedAt:  time.Now(),
	}
}

func (e *Engine) GetQueueStatistics() domain.QueueStatistics {
	return e.queue.Statistics()
}

func (e *Engine) GetSchedulerStatistics() domain.SchedulerStatistics {
	return e.scheduler.Statistics()
}

func (e *Engine) GetResourcePoolStatus() domain.ResourcePoolStatus {
	return e.resources.PoolStatus()
}

func (e *Engine) GetResourceEfficiency() domain.ResourceEfficiency {
	return e.resources.Efficiency()
}

func (e *Engine) GetCacheStatistics() domain.CacheStatistics {
	return e.cache.Statistics()
}

func (e *Engine) GetAlerts() []domain.AlertRecord {
	return e.monitor.Alerts()
}

func (e *Engine) SetAlertHook(hook func(domain.AlertRecord)) {
	e.monitor.SetAlertHook(hook)
}

func (e *Engine) GetExecutionRecords(executionID string) []domain.MetricRecord {
	return e.recorder.Records(executionID)
}

func (e *Engine) AnalyzeWorkflow(workflow ports.Workflow, wfctx ports.WorkflowContext) (*domain.OptimizationPlan, error) {
	if wfctx == nil {
		wfctx = domain.NewContext(nil)
	}
	return e.optimizer.Optimize(workflow, wfctx)
}

func (e *Engine) InvalidateCache(workflowID string) int {
	return e.cache.InvalidateByWorkflow(workflowID)
}

// UpdateConfiguration merges the non-zero fields of the update into the
// running configuration. Only engine-level settings (default strategy,
// timeouts, cache TTL) take effect on executions submitted afterwards;
// subsystem pools and limits are fixed at construction.
func (e *Engine) UpdateConfiguration(update domain.Config) error {
	e.configMu.Lock()
	defer e.configMu.Unlock()

	merged := e.config
	if err := mergo.Merge(&merged, update, mergo.WithOverride); err != nil {
		return domain.NewConfigError("update", err)
	}
	if err := merged.Validate(); err != nil {
		return err
	}

	e.config = merged
	e.logger.Info("configuration updated",
		"default_strategy", merged.Engine.DefaultStrategy,
		"default_timeout", merged.Engine.DefaultTimeout,
		"default_cache_ttl", merged.Engine.DefaultCacheTTL)
	return nil
}
