package optimizer

import (
	"log/slog"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

type WorkflowOptimizer struct {
	analyzer ports.WorkflowAnalyzer
	steps    ports.StepOptimizer
	logger   *slog.Logger
}

func NewWorkflowOptimizer(analyzer ports.WorkflowAnalyzer, steps ports.StepOptimizer, logger *slog.Logger) *WorkflowOptimizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkflowOptimizer{
		analyzer: analyzer,
		steps:    steps,
		logger:   logger.With("component", "workflow-optimizer"),
	}
}

func (o *WorkflowOptimizer) Optimize(workflow ports.Workflow, wfctx ports.WorkflowContext) (*domain.OptimizationPlan, error) {
	analysis, err := o.analyzer.Analyze(workflow, wfctx)
	if err != nil {
		return nil, err
	}

	steps := workflow.Steps()
	optimized := make([]domain.OptimizedStep, 0, len(steps))
	for _, step := range steps {
		planned, err := o.steps.OptimizeStep(step)
		if err != nil {
			return nil, err
		}
		optimized = append(optimized, *planned)
	}

	plan := &domain.OptimizationPlan{
		WorkflowID:        workflow.Metadata().ID,
		Analysis:          analysis,
		Steps:             optimized,
		SuggestedStrategy: suggestStrategy(analysis, len(steps)),
		CreatedAt:         time.Now(),
	}

	o.logger.Debug("optimization plan built",
		"workflow_id", plan.WorkflowID,
		"strategy", plan.SuggestedStrategy,
		"steps", len(plan.Steps))

	return plan, nil
}

func suggestStrategy(analysis *domain.AnalysisResult, stepCount int) string {
	switch {
	case analysis.ComplexityScore > highComplexityScore:
		return "smart"
	case analysis.ParallelizableSteps >= 2 && stepCount > 1:
		return "batch"
	default:
		return "basic"
	}
}
