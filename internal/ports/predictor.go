package ports

import (
	"time"

	"github.com/loomhq/loom/internal/domain"
)

type ExecutionPredictor interface {
	PredictDuration(workflow Workflow) (time.Duration, float64)
	PredictResources(workflow Workflow) (domain.ResourceRequirements, float64)
	Reconcile(workflow Workflow, result *domain.ExecutionResult)
	ValueScore(workflow Workflow, result *domain.ExecutionResult) float64
}
