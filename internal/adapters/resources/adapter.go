package resources

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

type Adapter struct {
	config domain.ResourceConfig
	logger *slog.Logger

	mu              sync.RWMutex
	allocations     map[string]*domain.ResourceAllocation
	memoryAllocated int64
	cpuAllocated    float64
	violationHook   func(domain.ResourceViolation)
	sampleHook      func(domain.ResourceSnapshot)
	systemMemoryPct float64
	systemCPUPct    float64

	sampler sampleFunc
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewAdapter(config domain.ResourceConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config:      config,
		logger:      logger.With("component", "resource-manager"),
		allocations: make(map[string]*domain.ResourceAllocation),
		sampler:     sampleHost,
	}
}

func (rm *Adapter) Allocate(executionID string, requirements domain.ResourceRequirements) (*domain.ResourceAllocation, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.allocations[executionID]; ok {
		return nil, domain.NewResourceError("allocation", 1, 0)
	}

	if len(rm.allocations) >= rm.config.MaxConcurrent {
		rm.logger.Info("allocation rejected - concurrency limit", "execution_id", executionID, "active", len(rm.allocations), "max", rm.config.MaxConcurrent)
		return nil, domain.NewResourceError("concurrency", float64(len(rm.allocations)+1), float64(rm.config.MaxConcurrent))
	}

	if rm.memoryAllocated+requirements.MemoryMB > rm.config.MaxMemoryMB {
		available := rm.config.MaxMemoryMB - rm.memoryAllocated
		rm.logger.Info("allocation rejected - memory limit", "execution_id", executionID, "required_mb", requirements.MemoryMB, "available_mb", available)
		return nil, domain.NewResourceError("memory", float64(requirements.MemoryMB), float64(available))
	}

	if rm.cpuAllocated+requirements.CPUPercent > rm.config.MaxCPUPercent {
		available := rm.config.MaxCPUPercent - rm.cpuAllocated
		rm.logger.Info("allocation rejected - cpu limit", "execution_id", executionID, "required_pct", requirements.CPUPercent, "available_pct", available)
		return nil, domain.NewResourceError("cpu", requirements.CPUPercent, available)
	}

	timeout := requirements.Timeout
	if timeout <= 0 {
		timeout = rm.config.DefaultTimeout
	}

	allocation := &domain.ResourceAllocation{
		ExecutionID: executionID,
		MemoryMB:    requirements.MemoryMB,
		CPUPercent:  requirements.CPUPercent,
		Timeout:     timeout,
		AllocatedAt: time.Now(),
	}

	rm.allocations[executionID] = allocation
	rm.memoryAllocated += requirements.MemoryMB
	rm.cpuAllocated += requirements.CPUPercent

	rm.logger.Debug("resources allocated",
		"execution_id", executionID,
		"memory_mb", requirements.MemoryMB,
		"cpu_pct", requirements.CPUPercent,
		"total_memory_mb", rm.memoryAllocated,
		"active_allocations", len(rm.allocations))

	return allocation, nil
}

func (rm *Adapter) Release(executionID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	allocation, ok := rm.allocations[executionID]
	if !ok {
		rm.logger.Debug("release skipped - no allocation", "execution_id", executionID)
		return
	}

	delete(rm.allocations, executionID)
	rm.memoryAllocated -= allocation.MemoryMB
	rm.cpuAllocated -= allocation.CPUPercent

	rm.logger.Debug("resources released",
		"execution_id", executionID,
		"memory_mb", allocation.MemoryMB,
		"total_memory_mb", rm.memoryAllocated,
		"active_allocations", len(rm.allocations))
}

func (rm *Adapter) PoolStatus() domain.ResourcePoolStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return domain.ResourcePoolStatus{
		MemoryLimitMB:     rm.config.MaxMemoryMB,
		MemoryAllocatedMB: rm.memoryAllocated,
		CPULimit:          rm.config.MaxCPUPercent,
		CPUAllocated:      rm.cpuAllocated,
		MaxConcurrent:     rm.config.MaxConcurrent,
		ActiveAllocations: len(rm.allocations),
		SystemMemoryPct:   rm.systemMemoryPct,
		SystemCPUPct:      rm.systemCPUPct,
	}
}

func (rm *Adapter) Efficiency() domain.ResourceEfficiency {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	efficiency := domain.ResourceEfficiency{
		MemoryUtilization: float64(rm.memoryAllocated) / float64(rm.config.MaxMemoryMB),
		CPUUtilization:    rm.cpuAllocated / rm.config.MaxCPUPercent,
	}

	if rm.systemMemoryPct > 0 {
		efficiency.AllocatedVsSystemMemory = efficiency.MemoryUtilization * 100 / rm.systemMemoryPct
	}
	if rm.systemCPUPct > 0 {
		efficiency.AllocatedVsSystemCPU = efficiency.CPUUtilization * 100 / rm.systemCPUPct
	}
	return efficiency
}

func (rm *Adapter) SetViolationHook(hook func(domain.ResourceViolation)) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.violationHook = hook
}

func (rm *Adapter) SetSampleHook(hook func(domain.ResourceSnapshot)) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.sampleHook = hook
}

func (rm *Adapter) IsHealthy() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if rm.memoryAllocated < 0 || rm.memoryAllocated > rm.config.MaxMemoryMB {
		return false
	}
	if rm.cpuAllocated < 0 || rm.cpuAllocated > rm.config.MaxCPUPercent {
		return false
	}
	return len(rm.allocations) <= rm.config.MaxConcurrent
}
