package predictor

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const (
	maxConfidence      = 0.95
	valuableDuration   = 30 * time.Second
	valuableFrequency  = 10
	valuableResultSize = 4096
)

var baselineResources = map[string]domain.ResourceRequirements{
	"analysis":   {CPUPercent: 25, MemoryMB: 256, DiskMB: 10},
	"testing":    {CPUPercent: 40, MemoryMB: 512, DiskMB: 50},
	"refactor":   {CPUPercent: 30, MemoryMB: 384, DiskMB: 20},
	"deployment": {CPUPercent: 35, MemoryMB: 512, DiskMB: 100},
}

var defaultStepResources = domain.ResourceRequirements{CPUPercent: 20, MemoryMB: 128, DiskMB: 10}

type observation struct {
	duration time.Duration
	success  bool
	seenAt   time.Time
}

type signatureHistory struct {
	observations []observation
}

func (h *signatureHistory) averageDuration() time.Duration {
	if len(h.observations) == 0 {
		return 0
	}
	var total time.Duration
	for _, o := range h.observations {
		total += o.duration
	}
	return total / time.Duration(len(h.observations))
}

type Adapter struct {
	config domain.PredictorConfig
	logger *slog.Logger

	mu         sync.RWMutex
	signatures map[string]*signatureHistory
	stepStats  map[string]*domain.StepTypeStats
}

func NewAdapter(config domain.PredictorConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config:     config,
		logger:     logger.With("component", "execution-predictor"),
		signatures: make(map[string]*signatureHistory),
		stepStats:  make(map[string]*domain.StepTypeStats),
	}
}

func (p *Adapter) PredictDuration(workflow ports.Workflow) (time.Duration, float64) {
	sig := Signature(workflow)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if history, ok := p.signatures[sig]; ok && len(history.observations) >= p.config.MinSamples {
		return history.averageDuration(), p.confidence(len(history.observations))
	}

	var total time.Duration
	known := 0
	steps := workflow.Steps()
	for _, step := range steps {
		stats, ok := p.stepStats[step.Metadata().Type]
		if !ok || stats.Samples < p.config.MinSamples {
			continue
		}
		total += stats.AverageDuration
		known++
	}
	if known == 0 || known < len(steps) {
		return 0, 0
	}

	return total, p.confidence(p.minStepSamples(steps)) * 0.8
}

func (p *Adapter) PredictResources(workflow ports.Workflow) (domain.ResourceRequirements, float64) {
	var estimate domain.ResourceRequirements
	for _, step := range workflow.Steps() {
		meta := step.Metadata()
		base := meta.Resources
		if base.MemoryMB == 0 && base.CPUPercent == 0 {
			var ok bool
			base, ok = baselineResources[meta.Type]
			if !ok {
				base = defaultStepResources
			}
		}
		estimate.MemoryMB += base.MemoryMB
		estimate.CPUPercent += base.CPUPercent
		estimate.DiskMB += base.DiskMB
	}

	sig := Signature(workflow)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if history, ok := p.signatures[sig]; ok && len(history.observations) >= p.config.MinSamples {
		return estimate, p.confidence(len(history.observations))
	}
	return estimate, 0.3
}

func (p *Adapter) Reconcile(workflow ports.Workflow, result *domain.ExecutionResult) {
	if result == nil || result.FromCache {
		return
	}

	sig := Signature(workflow)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	history, ok := p.signatures[sig]
	if !ok {
		history = &signatureHistory{}
		p.signatures[sig] = history
	}
	history.observations = append(history.observations, observation{
		duration: result.Duration,
		success:  result.Success,
		seenAt:   now,
	})
	if len(history.observations) > p.config.WindowSize {
		history.observations = history.observations[len(history.observations)-p.config.WindowSize:]
	}

	for _, step := range result.Steps {
		stats, ok := p.stepStats[step.Type]
		if !ok {
			stats = &domain.StepTypeStats{StepType: step.Type}
			p.stepStats[step.Type] = stats
		}
		total := stats.AverageDuration*time.Duration(stats.Samples) + step.Duration
		stats.Samples++
		stats.AverageDuration = total / time.Duration(stats.Samples)
		if step.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		stats.LastUpdated = now
	}

	p.logger.Debug("prediction reconciled",
		"signature", sig,
		"duration", result.Duration,
		"success", result.Success,
		"observations", len(history.observations))
}

func (p *Adapter) ValueScore(workflow ports.Workflow, result *domain.ExecutionResult) float64 {
	if result == nil || !result.Success {
		return 0
	}

	durationScore := float64(result.Duration) / float64(valuableDuration)
	if durationScore > 1 {
		durationScore = 1
	}

	p.mu.RLock()
	observations := 0
	if history, ok := p.signatures[Signature(workflow)]; ok {
		observations = len(history.observations)
	}
	p.mu.RUnlock()

	frequencyScore := float64(observations) / valuableFrequency
	if frequencyScore > 1 {
		frequencyScore = 1
	}

	sizeScore := 0.0
	if serialized, err := json.Marshal(result.Output); err == nil {
		sizeScore = float64(len(serialized)) / valuableResultSize
		if sizeScore > 1 {
			sizeScore = 1
		}
	}

	return durationScore*0.5 + frequencyScore*0.3 + sizeScore*0.2
}

func (p *Adapter) StepTypeStatistics() map[string]domain.StepTypeStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]domain.StepTypeStats, len(p.stepStats))
	for stepType, stats := range p.stepStats {
		out[stepType] = *stats
	}
	return out
}

func (p *Adapter) confidence(samples int) float64 {
	if samples < p.config.MinSamples {
		return float64(samples) / float64(p.config.WindowSize)
	}
	c := 0.5 + 0.5*float64(samples)/float64(p.config.WindowSize)
	if c > maxConfidence {
		c = maxConfidence
	}
	return c
}

func (p *Adapter) minStepSamples(steps []ports.Step) int {
	min := p.config.WindowSize
	for _, step := range steps {
		if stats, ok := p.stepStats[step.Metadata().Type]; ok && stats.Samples < min {
			min = stats.Samples
		}
	}
	return min
}

func Signature(workflow ports.Workflow) string {
	steps := workflow.Steps()
	types := make([]string, 0, len(steps))
	for _, step := range steps {
		types = append(types, step.Metadata().Type)
	}
	meta := workflow.Metadata()
	return meta.Type + ":" + strings.Join(types, ">")
}
