package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const predictionConfidenceFloor = 0.5

var defaultMemoryByStepType = map[string]int64{
	"analysis":   256,
	"testing":    512,
	"refactor":   384,
	"deployment": 512,
}

const (
	defaultMemoryPerStepMB = 128
	cpuPerStepPercent      = 25
	diskPerStepMB          = 10
)

type Adapter struct {
	config    domain.SchedulerConfig
	resources ports.ResourceManager
	predictor ports.ExecutionPredictor
	logger    *slog.Logger

	mu        sync.RWMutex
	scheduled map[string]*domain.ScheduledExecution
	graph     *dependencyGraph
	sequence  int64
}

func NewAdapter(config domain.SchedulerConfig, resources ports.ResourceManager, predictor ports.ExecutionPredictor, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config:    config,
		resources: resources,
		predictor: predictor,
		logger:    logger.With("component", "execution-scheduler"),
		scheduled: make(map[string]*domain.ScheduledExecution),
		graph:     newDependencyGraph(),
	}
}

func (s *Adapter) Schedule(execution *domain.Execution, workflow ports.Workflow) (*domain.ScheduledExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dependencies := workflow.Dependencies()

	var missing []string
	for _, dep := range dependencies {
		if _, ok := s.scheduled[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		s.logger.Warn("scheduling rejected - unknown dependencies", "execution_id", execution.ID, "missing", missing)
		return nil, domain.NewSchedulerError(execution.ID, "unsatisfied dependencies", domain.NewDependencyError(execution.ID, missing, false))
	}

	if s.graph.wouldCycle(execution.ID, dependencies) {
		s.logger.Warn("scheduling rejected - circular dependency", "execution_id", execution.ID, "dependencies", dependencies)
		return nil, domain.NewSchedulerError(execution.ID, "circular dependency", domain.NewDependencyError(execution.ID, dependencies, true))
	}

	requirements := s.estimateResources(workflow)
	pool := s.resources.PoolStatus()
	if requirements.MemoryMB > pool.MemoryLimitMB {
		return nil, domain.NewSchedulerError(execution.ID, "resources unavailable",
			domain.NewResourceError("memory", float64(requirements.MemoryMB), float64(pool.MemoryLimitMB)))
	}
	if requirements.CPUPercent > pool.CPULimit {
		return nil, domain.NewSchedulerError(execution.ID, "resources unavailable",
			domain.NewResourceError("cpu", requirements.CPUPercent, pool.CPULimit))
	}

	s.sequence++
	scheduled := &domain.ScheduledExecution{
		ExecutionID:       execution.ID,
		WorkflowID:        execution.WorkflowID,
		Priority:          domain.ComputePriority(execution.Flags),
		EstimatedDuration: s.estimateDuration(workflow),
		Requirements:      requirements,
		Dependencies:      dependencies,
		Status:            domain.ScheduledStatusPending,
		ScheduledAt:       time.Now(),
		Sequence:          s.sequence,
	}

	s.scheduled[execution.ID] = scheduled
	s.graph.add(execution.ID, dependencies)

	s.logger.Debug("execution scheduled",
		"execution_id", execution.ID,
		"priority", scheduled.Priority,
		"estimated_duration", scheduled.EstimatedDuration,
		"memory_mb", requirements.MemoryMB,
		"dependencies", len(dependencies))

	return scheduled, nil
}

func (s *Adapter) ReadyExecutions() []*domain.ScheduledExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool := s.resources.PoolStatus()
	availableMemory := pool.MemoryLimitMB - pool.MemoryAllocatedMB
	availableCPU := pool.CPULimit - pool.CPUAllocated

	running := 0
	for _, se := range s.scheduled {
		if se.Status == domain.ScheduledStatusRunning {
			running++
		}
	}

	var ready []*domain.ScheduledExecution
	for _, se := range s.scheduled {
		if se.Status != domain.ScheduledStatusPending {
			continue
		}
		if !s.dependenciesCompleted(se.ExecutionID) {
			continue
		}
		if se.Requirements.MemoryMB > availableMemory || se.Requirements.CPUPercent > availableCPU {
			continue
		}
		ready = append(ready, se)
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].Sequence < ready[j].Sequence
	})

	slots := s.config.MaxConcurrentExecutions - running
	if slots < 0 {
		slots = 0
	}
	if len(ready) > slots {
		ready = ready[:slots]
	}

	return ready
}

func (s *Adapter) MarkRunning(executionID string) error {
	return s.transition(executionID, domain.ScheduledStatusRunning, false)
}

func (s *Adapter) MarkPending(executionID string) error {
	return s.transition(executionID, domain.ScheduledStatusPending, false)
}

func (s *Adapter) MarkCompleted(executionID string) error {
	return s.transition(executionID, domain.ScheduledStatusCompleted, true)
}

func (s *Adapter) MarkFailed(executionID string) error {
	return s.transition(executionID, domain.ScheduledStatusFailed, true)
}

func (s *Adapter) Cancel(executionID string) error {
	return s.transition(executionID, domain.ScheduledStatusCancelled, true)
}

func (s *Adapter) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, se := range s.scheduled {
		if !terminalStatus(se.Status) {
			continue
		}
		if s.hasActiveDependents(id) {
			continue
		}
		s.graph.remove(id)
		delete(s.scheduled, id)
		removed++
	}

	if removed > 0 {
		s.logger.Debug("pruned terminal executions", "removed", removed, "remaining", len(s.scheduled))
	}
	return removed
}

func (s *Adapter) hasActiveDependents(executionID string) bool {
	for _, dependent := range s.graph.dependents(executionID) {
		if se, ok := s.scheduled[dependent]; ok && !terminalStatus(se.Status) {
			return true
		}
	}
	return false
}

func terminalStatus(status domain.ScheduledExecutionStatus) bool {
	switch status {
	case domain.ScheduledStatusCompleted, domain.ScheduledStatusFailed, domain.ScheduledStatusCancelled:
		return true
	}
	return false
}

func (s *Adapter) Statistics() domain.SchedulerStatistics {
	s.mu.RLock()
	stats := domain.SchedulerStatistics{
		Scheduled:     len(s.scheduled),
		GraphEdges:    s.graph.edgeCount(),
		MaxConcurrent: s.config.MaxConcurrentExecutions,
	}
	for _, se := range s.scheduled {
		switch se.Status {
		case domain.ScheduledStatusPending:
			stats.Pending++
		case domain.ScheduledStatusRunning:
			stats.Running++
		case domain.ScheduledStatusCompleted:
			stats.Completed++
		case domain.ScheduledStatusFailed:
			stats.Failed++
		case domain.ScheduledStatusCancelled:
			stats.Cancelled++
		}
	}
	s.mu.RUnlock()

	stats.Ready = len(s.ReadyExecutions())
	return stats
}

func (s *Adapter) transition(executionID string, status domain.ScheduledExecutionStatus, pruneEdges bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	se, ok := s.scheduled[executionID]
	if !ok {
		return domain.NewSchedulerError(executionID, "not scheduled", domain.ErrNotFound)
	}

	se.Status = status
	if pruneEdges && status != domain.ScheduledStatusCompleted {
		s.graph.remove(executionID)
	}

	s.logger.Debug("scheduled execution transitioned", "execution_id", executionID, "status", status)
	return nil
}

func (s *Adapter) dependenciesCompleted(executionID string) bool {
	for _, dep := range s.graph.dependencies(executionID) {
		depExec, ok := s.scheduled[dep]
		if !ok || depExec.Status != domain.ScheduledStatusCompleted {
			return false
		}
	}
	return true
}

func (s *Adapter) estimateDuration(workflow ports.Workflow) time.Duration {
	if s.predictor != nil {
		if predicted, confidence := s.predictor.PredictDuration(workflow); confidence >= predictionConfidenceFloor {
			return predicted
		}
	}

	var total time.Duration
	for _, step := range workflow.Steps() {
		stepType := step.Metadata().Type
		if d, ok := s.config.StepDurationByType[stepType]; ok {
			total += d
		} else {
			total += s.config.BaseStepDuration
		}
	}
	if total == 0 {
		total = s.config.BaseStepDuration
	}
	return total
}

func (s *Adapter) estimateResources(workflow ports.Workflow) domain.ResourceRequirements {
	if s.predictor != nil {
		if predicted, confidence := s.predictor.PredictResources(workflow); confidence >= predictionConfidenceFloor {
			return predicted
		}
	}

	requirements := domain.ResourceRequirements{}
	for _, step := range workflow.Steps() {
		meta := step.Metadata()

		memory := meta.Resources.MemoryMB
		if memory == 0 {
			if typed, ok := defaultMemoryByStepType[meta.Type]; ok {
				memory = typed
			} else {
				memory = defaultMemoryPerStepMB
			}
		}
		if memory > requirements.MemoryMB {
			requirements.MemoryMB = memory
		}

		cpu := meta.Resources.CPUPercent
		if cpu == 0 {
			cpu = cpuPerStepPercent
		}
		if cpu > requirements.CPUPercent {
			requirements.CPUPercent = cpu
		}

		requirements.DiskMB += diskPerStepMB
	}

	if requirements.MemoryMB == 0 {
		requirements.MemoryMB = defaultMemoryPerStepMB
	}
	if requirements.CPUPercent == 0 {
		requirements.CPUPercent = cpuPerStepPercent
	}
	return requirements
}
