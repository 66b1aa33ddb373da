package resources

import (
	"context"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

type sampleFunc func() (memoryPct, cpuPct float64, err error)

func sampleHost() (float64, float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		return vm.UsedPercent, 0, err
	}

	cpuPct := 0.0
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	return vm.UsedPercent, cpuPct, nil
}

func (rm *Adapter) Start(ctx context.Context) {
	monitorCtx, cancel := context.WithCancel(ctx)

	rm.mu.Lock()
	rm.cancel = cancel
	rm.mu.Unlock()

	rm.wg.Add(1)
	go rm.monitorLoop(monitorCtx)

	rm.logger.Debug("resource monitor started", "interval", rm.config.MonitorInterval)
}

func (rm *Adapter) Stop() {
	rm.mu.Lock()
	cancel := rm.cancel
	rm.cancel = nil
	rm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	rm.wg.Wait()
}

func (rm *Adapter) monitorLoop(ctx context.Context) {
	defer rm.wg.Done()

	ticker := time.NewTicker(rm.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.sample()
		}
	}
}

func (rm *Adapter) sample() {
	memoryPct, cpuPct, err := rm.sampler()
	if err != nil {
		rm.logger.Warn("host sampling failed", "error", err)
		return
	}

	rm.mu.Lock()
	rm.systemMemoryPct = memoryPct
	rm.systemCPUPct = cpuPct
	allocatedMemoryRatio := float64(rm.memoryAllocated) / float64(rm.config.MaxMemoryMB)
	allocatedCPURatio := rm.cpuAllocated / rm.config.MaxCPUPercent
	snapshot := domain.ResourceSnapshot{
		AllocatedMemoryMB:   rm.memoryAllocated,
		AllocatedCPU:        rm.cpuAllocated,
		SystemMemoryUsedPct: memoryPct,
		SystemCPUUsedPct:    cpuPct,
	}
	hook := rm.violationHook
	sampleHook := rm.sampleHook
	threshold := rm.config.ViolationThreshold
	rm.mu.Unlock()

	if sampleHook != nil {
		sampleHook(snapshot)
	}

	checks := []struct {
		resourceType string
		usedPct      float64
	}{
		{"pool_memory", allocatedMemoryRatio * 100},
		{"pool_cpu", allocatedCPURatio * 100},
		{"system_memory", memoryPct},
		{"system_cpu", cpuPct},
	}

	for _, check := range checks {
		if check.usedPct <= threshold*100 {
			continue
		}

		violation := domain.ResourceViolation{
			ResourceType: check.resourceType,
			UsedPct:      check.usedPct,
			Threshold:    threshold * 100,
			DetectedAt:   time.Now(),
		}

		rm.logger.Warn("resource violation detected",
			"resource_type", violation.ResourceType,
			"used_pct", violation.UsedPct,
			"threshold_pct", violation.Threshold)

		if hook != nil {
			hook(violation)
		}
	}
}
