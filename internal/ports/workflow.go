package ports

import (
	"context"

	"github.com/loomhq/loom/internal/domain"
)

type Workflow interface {
	Metadata() domain.WorkflowMetadata
	Dependencies() []string
	Steps() []Step
	Execute(ctx context.Context, wfctx WorkflowContext) (map[string]interface{}, error)
}

type Step interface {
	Metadata() domain.StepMetadata
	Execute(ctx context.Context, wfctx WorkflowContext) (interface{}, error)
}

type WorkflowContext interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	GetAll() map[string]interface{}
	GetData(key string) interface{}
}
