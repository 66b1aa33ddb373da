package ports

import (
	"time"

	"github.com/loomhq/loom/internal/domain"
)

type CacheOptions struct {
	TTL              time.Duration
	ExcludeSensitive bool
}

type ExecutionCache interface {
	Get(workflow Workflow, wfctx WorkflowContext) (*domain.ExecutionResult, bool)
	Put(workflow Workflow, wfctx WorkflowContext, result *domain.ExecutionResult, opts CacheOptions) bool
	InvalidateByWorkflow(workflowID string) int
	InvalidateByAge(maxAge time.Duration) int
	Statistics() domain.CacheStatistics
	Purge()
}
