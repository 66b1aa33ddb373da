package strategy

import (
	"context"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

var fallbackStepResources = domain.ResourceRequirements{CPUPercent: 20, MemoryMB: 128, DiskMB: 10}

type stepRunner struct {
	recorder ports.MetricsRecorder
	monitor  ports.ExecutionMonitor
}

func (r stepRunner) run(ctx context.Context, step ports.Step, wfctx ports.WorkflowContext, execution *domain.Execution, index int) domain.StepResult {
	meta := step.Metadata()

	if r.recorder != nil {
		r.recorder.RecordStepStart(execution.ID, meta, index)
	}
	if r.monitor != nil {
		r.monitor.Heartbeat(execution.ID)
	}

	started := time.Now()
	output, err := step.Execute(ctx, wfctx)
	duration := time.Since(started)

	result := domain.StepResult{
		Index:    index,
		Name:     meta.Name,
		Type:     meta.Type,
		Duration: duration,
	}

	if err != nil {
		classified := domain.ClassifyError(err)
		result.Status = domain.StepStatusFailed
		result.Error = classified.Error()
	} else {
		result.Status = domain.StepStatusCompleted
		result.Success = true
		result.Output = output
	}

	if r.recorder != nil {
		r.recorder.RecordStepEnd(execution.ID, result)
	}
	if r.monitor != nil {
		r.monitor.Heartbeat(execution.ID)
	}

	return result
}

func buildResult(execution *domain.Execution, strategy string, started time.Time, steps []domain.StepResult) *domain.ExecutionResult {
	result := &domain.ExecutionResult{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Success:     true,
		Duration:    time.Since(started),
		Steps:       steps,
		Output:      make(map[string]interface{}, len(steps)),
		Strategy:    strategy,
		CompletedAt: time.Now(),
	}

	for _, step := range steps {
		if step.Output != nil {
			result.Output[step.Name] = step.Output
		}
		if !step.Success {
			result.Success = false
			result.Error = step.Error
		}
	}

	return result
}

func stepResources(meta domain.StepMetadata) domain.ResourceRequirements {
	if meta.Resources.MemoryMB == 0 && meta.Resources.CPUPercent == 0 {
		return fallbackStepResources
	}
	return meta.Resources
}
