// Package loom provides an embedded workflow execution engine for Go applications.
//
// Loom orchestrates multi-step workflows on a single node: it decides what runs
// now, how much memory/CPU/concurrency budget an execution may consume, how
// results are cached and reused, how failures are retried, and how the engine
// predicts and adapts its own behavior from execution history. It provides:
//   - Priority-ordered queueing with bounded capacity and retry re-enqueue
//   - Dependency-aware scheduling against a fixed resource pool
//   - Content-addressed result caching with TTL and LRU eviction
//   - Execution metrics, stall detection, and threshold alerting
//   - Pluggable execution strategies (basic, batch, smart/adaptive)
//   - Historical duration/resource prediction and workflow analysis
//
// Basic usage:
//
//	engine, err := loom.New(loom.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Shutdown()
//
//	result, err := engine.ExecuteWorkflow(ctx, myWorkflow, loom.NewContext(nil), loom.ExecutionOptions{
//	    Strategy: "smart",
//	    Flags:    map[string]bool{loom.FlagHigh: true},
//	})
package loom

import (
	"github.com/loomhq/loom/internal/adapters/engine"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

// Engine is the workflow execution engine. It owns the queue, scheduler,
// resource pool, cache, observability stores and strategies, and exposes
// a single ExecuteWorkflow entry point plus system-wide introspection.
type Engine = engine.Engine

// Workflow is the capability set an executable workflow must provide.
// Workflow definitions are owned by the caller and read-only to the engine.
type Workflow = ports.Workflow

// Step is a single unit of work within a workflow.
type Step = ports.Step

// WorkflowContext is the mutable key/value bag threaded through every step
// of an execution.
type WorkflowContext = ports.WorkflowContext

// ExecutionStrategy decides the literal order and parallelism of step
// execution within one workflow.
type ExecutionStrategy = ports.ExecutionStrategy

// Execution is one run of a workflow through the engine.
type Execution = domain.Execution

// ExecutionOptions control a single ExecuteWorkflow call: strategy override,
// priority flags, timeout, and cache behavior.
type ExecutionOptions = domain.ExecutionOptions

// ExecutionResult is the outcome of a workflow execution, including
// per-step results and the combined output map.
type ExecutionResult = domain.ExecutionResult

// StepResult is the outcome of a single step inside an execution.
type StepResult = domain.StepResult

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus = domain.ExecutionStatus

// Execution lifecycle states.
const (
	ExecutionStatusRunning   = domain.ExecutionStatusRunning
	ExecutionStatusCompleted = domain.ExecutionStatusCompleted
	ExecutionStatusFailed    = domain.ExecutionStatusFailed
	ExecutionStatusCancelled = domain.ExecutionStatusCancelled
)

// Priority flags recognized on ExecutionOptions.Flags.
const (
	FlagCritical = domain.FlagCritical
	FlagHigh     = domain.FlagHigh
	FlagUrgent   = domain.FlagUrgent
	FlagLow      = domain.FlagLow
)

// WorkflowMetadata identifies a workflow definition.
type WorkflowMetadata = domain.WorkflowMetadata

// StepMetadata describes a step: name, type, parameters, dependencies and
// declared resource needs.
type StepMetadata = domain.StepMetadata

// ResourceRequirements is the resource vector an execution reserves against
// the engine's pool.
type ResourceRequirements = domain.ResourceRequirements

// SystemMetrics aggregates engine-wide counters, error rate and throughput.
type SystemMetrics = domain.SystemMetrics

// HealthStatus reports per-component health of the engine.
type HealthStatus = domain.HealthStatus

// QueueStatistics describes the state of the execution queue.
type QueueStatistics = domain.QueueStatistics

// SchedulerStatistics describes the state of the scheduler and its
// dependency graph.
type SchedulerStatistics = domain.SchedulerStatistics

// ResourcePoolStatus describes current allocations against the pool limits.
type ResourcePoolStatus = domain.ResourcePoolStatus

// CacheStatistics describes cache occupancy, hit rate, evictions and
// rejections.
type CacheStatistics = domain.CacheStatistics

// AlertRecord is a discrete threshold or stall alert raised by the monitor.
type AlertRecord = domain.AlertRecord

// MetricRecord is a single observation recorded for an execution.
type MetricRecord = domain.MetricRecord

// AnalysisResult is the analyzer's cached summary of a workflow.
type AnalysisResult = domain.AnalysisResult

// OptimizationPlan is the optimizer's per-step transform plan plus the
// suggested execution strategy.
type OptimizationPlan = domain.OptimizationPlan

// Error is the engine's typed error carrying a kind and contextual payload.
type Error = domain.Error

// ErrorKind tags an Error with its place in the engine's error taxonomy.
type ErrorKind = domain.ErrorKind

// New creates and starts a workflow execution engine from the given
// configuration. The returned engine runs its dispatch and monitoring
// loops until Shutdown is called.
func New(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return engine.New(*config)
}

// NewContext builds a workflow context pre-populated with the given values.
func NewContext(initial map[string]interface{}) *domain.Context {
	return domain.NewContext(initial)
}
