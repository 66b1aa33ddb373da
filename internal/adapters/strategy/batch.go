package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const (
	maxBatchSize          = 4
	parallelMemoryCeiling = 2048
	parallelCPUCeiling    = 200
)

type batch struct {
	steps   []ports.Step
	indices []int
}

type Batch struct {
	runner stepRunner
	logger *slog.Logger
}

func NewBatch(recorder ports.MetricsRecorder, monitor ports.ExecutionMonitor, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}

	return &Batch{
		runner: stepRunner{recorder: recorder, monitor: monitor},
		logger: logger.With("component", "batch-strategy"),
	}
}

func (s *Batch) Name() string {
	return "batch"
}

func (s *Batch) Execute(ctx context.Context, workflow ports.Workflow, wfctx ports.WorkflowContext, execution *domain.Execution) (*domain.ExecutionResult, error) {
	started := time.Now()
	batches := groupSteps(workflow.Steps())
	results := make([]domain.StepResult, 0, len(workflow.Steps()))

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return buildResult(execution, s.Name(), started, results), domain.NewStrategyError(s.Name(), execution.WorkflowName, domain.ClassifyError(err))
		}

		var batchResults []domain.StepResult
		if canParallelize(b) {
			batchResults = s.runParallel(ctx, b, wfctx, execution)
		} else {
			batchResults = s.runSequential(ctx, b, wfctx, execution)
		}
		results = append(results, batchResults...)

		if failed := firstFailure(batchResults); failed != nil {
			s.logger.Debug("batch failed, aborting workflow",
				"execution_id", execution.ID,
				"step", failed.Name,
				"error", failed.Error)
			break
		}
	}

	return buildResult(execution, s.Name(), started, results), nil
}

func (s *Batch) runParallel(ctx context.Context, b batch, wfctx ports.WorkflowContext, execution *domain.Execution) []domain.StepResult {
	results := make([]domain.StepResult, len(b.steps))

	var wg sync.WaitGroup
	for i := range b.steps {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			result := s.runner.run(ctx, b.steps[slot], wfctx, execution, b.indices[slot])
			result.Parallel = true
			results[slot] = result
		}(i)
	}
	wg.Wait()

	return results
}

func (s *Batch) runSequential(ctx context.Context, b batch, wfctx ports.WorkflowContext, execution *domain.Execution) []domain.StepResult {
	results := make([]domain.StepResult, 0, len(b.steps))
	for i, step := range b.steps {
		result := s.runner.run(ctx, step, wfctx, execution, b.indices[i])
		results = append(results, result)
		if !result.Success {
			break
		}
	}
	return results
}

func groupSteps(steps []ports.Step) []batch {
	batches := make([]batch, 0)
	var current batch
	currentKey := ""

	for index, step := range steps {
		key := similarityKey(step.Metadata())
		if len(current.steps) == 0 || (key == currentKey && len(current.steps) < maxBatchSize) {
			current.steps = append(current.steps, step)
			current.indices = append(current.indices, index)
			currentKey = key
			continue
		}
		batches = append(batches, current)
		current = batch{steps: []ports.Step{step}, indices: []int{index}}
		currentKey = key
	}
	if len(current.steps) > 0 {
		batches = append(batches, current)
	}

	return batches
}

func similarityKey(meta domain.StepMetadata) string {
	return fmt.Sprintf("%s|%s|%s", meta.Type, resourceLevel(stepResources(meta)), complexityBucket(meta))
}

func resourceLevel(req domain.ResourceRequirements) string {
	switch {
	case req.MemoryMB >= 512 || req.CPUPercent >= 50:
		return "high"
	case req.MemoryMB >= 256 || req.CPUPercent >= 30:
		return "medium"
	default:
		return "low"
	}
}

func complexityBucket(meta domain.StepMetadata) string {
	if len(meta.Parameters) > 3 || len(meta.Dependencies) > 1 {
		return "complex"
	}
	return "simple"
}

func canParallelize(b batch) bool {
	if len(b.steps) < 2 {
		return false
	}

	names := make(map[string]bool, len(b.steps))
	exclusive := make(map[string]bool)
	var totalMemory int64
	var totalCPU float64

	for _, step := range b.steps {
		meta := step.Metadata()
		names[meta.Name] = true

		req := stepResources(meta)
		totalMemory += req.MemoryMB
		totalCPU += req.CPUPercent

		if resource, ok := meta.Parameters["exclusive_resource"].(string); ok && resource != "" {
			if exclusive[resource] {
				return false
			}
			exclusive[resource] = true
		}
	}

	for _, step := range b.steps {
		for _, dep := range step.Metadata().Dependencies {
			if names[dep] {
				return false
			}
		}
	}

	return totalMemory <= parallelMemoryCeiling && totalCPU <= parallelCPUCeiling
}

func firstFailure(results []domain.StepResult) *domain.StepResult {
	for i := range results {
		if !results[i].Success {
			return &results[i]
		}
	}
	return nil
}
