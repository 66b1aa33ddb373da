package loom

import (
	"github.com/loomhq/loom/internal/domain"
)

// Config is the complete engine configuration. Zero values are invalid;
// start from DefaultConfig and adjust with the With* builders or by
// setting fields directly.
type Config = domain.Config

// EngineConfig holds top-level execution settings: default strategy,
// timeouts and the dispatch interval.
type EngineConfig = domain.EngineConfig

// QueueConfig bounds the execution queue and its retry behavior.
type QueueConfig = domain.QueueConfig

// SchedulerConfig bounds concurrent executions and seeds duration
// estimates for dependency planning.
type SchedulerConfig = domain.SchedulerConfig

// ResourceConfig defines the memory, CPU and concurrency pool every
// execution allocates against.
type ResourceConfig = domain.ResourceConfig

// CacheConfig bounds the result cache and its admission thresholds.
type CacheConfig = domain.CacheConfig

// ObservabilityConfig bounds metric retention and alerting.
type ObservabilityConfig = domain.ObservabilityConfig

// AlertThresholds are the limits at which the monitor raises alerts.
type AlertThresholds = domain.AlertThresholds

// PredictorConfig sizes the per-signature history windows used for
// duration and resource prediction.
type PredictorConfig = domain.PredictorConfig

// OptimizerConfig controls how long analysis and step-transform results
// stay cached.
type OptimizerConfig = domain.OptimizerConfig

// DefaultConfig returns a configuration suitable for development and
// moderate production workloads: 1000 queued executions, 10 concurrent,
// a 2GB/400% resource pool and a 500-entry result cache.
func DefaultConfig() *Config {
	return domain.DefaultConfig()
}
