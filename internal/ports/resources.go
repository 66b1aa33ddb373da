package ports

import (
	"context"

	"github.com/loomhq/loom/internal/domain"
)

type ResourceManager interface {
	Allocate(executionID string, requirements domain.ResourceRequirements) (*domain.ResourceAllocation, error)
	Release(executionID string)
	PoolStatus() domain.ResourcePoolStatus
	Efficiency() domain.ResourceEfficiency
	SetViolationHook(hook func(domain.ResourceViolation))
	SetSampleHook(hook func(domain.ResourceSnapshot))
	Start(ctx context.Context)
	Stop()
	IsHealthy() bool
}
