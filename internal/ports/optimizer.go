package ports

import (
	"github.com/loomhq/loom/internal/domain"
)

type WorkflowAnalyzer interface {
	Analyze(workflow Workflow, wfctx WorkflowContext) (*domain.AnalysisResult, error)
}

type StepOptimizer interface {
	OptimizeStep(step Step) (*domain.OptimizedStep, error)
	RecordOutcome(stepType string, transformed bool, result domain.StepResult)
}

type WorkflowOptimizer interface {
	Optimize(workflow Workflow, wfctx WorkflowContext) (*domain.OptimizationPlan, error)
}
