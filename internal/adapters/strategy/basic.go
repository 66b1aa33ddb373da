package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

type Basic struct {
	runner stepRunner
	logger *slog.Logger
}

func NewBasic(recorder ports.MetricsRecorder, monitor ports.ExecutionMonitor, logger *slog.Logger) *Basic {
	if logger == nil {
		logger = slog.Default()
	}

	return &Basic{
		runner: stepRunner{recorder: recorder, monitor: monitor},
		logger: logger.With("component", "basic-strategy"),
	}
}

func (s *Basic) Name() string {
	return "basic"
}

func (s *Basic) Execute(ctx context.Context, workflow ports.Workflow, wfctx ports.WorkflowContext, execution *domain.Execution) (*domain.ExecutionResult, error) {
	started := time.Now()
	steps := workflow.Steps()
	results := make([]domain.StepResult, 0, len(steps))

	for index, step := range steps {
		if err := ctx.Err(); err != nil {
			return buildResult(execution, s.Name(), started, results), domain.NewStrategyError(s.Name(), execution.WorkflowName, domain.ClassifyError(err))
		}

		result := s.runner.run(ctx, step, wfctx, execution, index)
		results = append(results, result)

		if !result.Success {
			s.logger.Debug("step failed, halting workflow",
				"execution_id", execution.ID,
				"step", result.Name,
				"index", index,
				"error", result.Error)
			break
		}
	}

	s.logger.Debug("workflow executed",
		"execution_id", execution.ID,
		"steps", len(results),
		"duration", time.Since(started))

	return buildResult(execution, s.Name(), started, results), nil
}
