package ports

import (
	"context"

	"github.com/loomhq/loom/internal/domain"
)

type ExecutionStrategy interface {
	Name() string
	Execute(ctx context.Context, workflow Workflow, wfctx WorkflowContext, execution *domain.Execution) (*domain.ExecutionResult, error)
}
