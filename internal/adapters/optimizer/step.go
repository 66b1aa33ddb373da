package optimizer

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const heavyStepMemoryMB = 512

type transformRule struct {
	name  string
	apply func(meta *domain.StepMetadata, optimized *domain.OptimizedStep) bool
}

var transformRules = []transformRule{
	{name: "parameter-tuning", apply: tuneParameters},
	{name: "strategy-hinting", apply: hintStrategy},
	{name: "resource-right-sizing", apply: rightSizeResources},
}

type outcomeStats struct {
	runs     int
	failures int
	total    time.Duration
}

func (s *outcomeStats) average() time.Duration {
	if s.runs == 0 {
		return 0
	}
	return s.total / time.Duration(s.runs)
}

type StepOptimizer struct {
	config domain.OptimizerConfig
	logger *slog.Logger

	mu       sync.Mutex
	cache    map[string]*domain.OptimizedStep
	baseline map[string]*outcomeStats
	tuned    map[string]*outcomeStats
}

func NewStepOptimizer(config domain.OptimizerConfig, logger *slog.Logger) *StepOptimizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &StepOptimizer{
		config:   config,
		logger:   logger.With("component", "step-optimizer"),
		cache:    make(map[string]*domain.OptimizedStep),
		baseline: make(map[string]*outcomeStats),
		tuned:    make(map[string]*outcomeStats),
	}
}

func (o *StepOptimizer) OptimizeStep(step ports.Step) (*domain.OptimizedStep, error) {
	if step == nil {
		return nil, domain.NewValidationError("step", "cannot optimize nil step")
	}

	original := step.Metadata()
	cacheKey := stepCacheKey(original)

	o.mu.Lock()
	if cached, ok := o.cache[cacheKey]; ok && time.Since(cached.OptimizedAt) < o.config.StepTransformTTL {
		o.mu.Unlock()
		return cached, nil
	}
	regressed := o.transformRegressed(original.Type)
	o.mu.Unlock()

	optimized := &domain.OptimizedStep{
		Original:    original,
		Transformed: cloneStepMetadata(original),
		OptimizedAt: time.Now(),
	}

	if !regressed {
		for _, rule := range transformRules {
			if rule.apply(&optimized.Transformed, optimized) {
				optimized.AppliedRules = append(optimized.AppliedRules, rule.name)
			}
		}
	}

	o.mu.Lock()
	if gain, improved := o.measuredGain(original.Type); improved {
		optimized.Improved = true
		optimized.Gain = gain
	}
	if len(o.cache) >= cacheSweepThreshold {
		for key, entry := range o.cache {
			if time.Since(entry.OptimizedAt) >= o.config.StepTransformTTL {
				delete(o.cache, key)
			}
		}
	}
	o.cache[cacheKey] = optimized
	o.mu.Unlock()

	o.logger.Debug("step optimized",
		"step", original.Name,
		"type", original.Type,
		"rules", optimized.AppliedRules,
		"improved", optimized.Improved)

	return optimized, nil
}

func (o *StepOptimizer) RecordOutcome(stepType string, transformed bool, result domain.StepResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	bucket := o.baseline
	if transformed {
		bucket = o.tuned
	}
	stats, ok := bucket[stepType]
	if !ok {
		stats = &outcomeStats{}
		bucket[stepType] = stats
	}
	stats.runs++
	stats.total += result.Duration
	if !result.Success {
		stats.failures++
	}
}

// OutcomeSamples reports how many outcomes have been recorded for a
// step type, split by whether the step ran in its transformed shape.
func (o *StepOptimizer) OutcomeSamples(stepType string) (baseline, tuned int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stats, ok := o.baseline[stepType]; ok {
		baseline = stats.runs
	}
	if stats, ok := o.tuned[stepType]; ok {
		tuned = stats.runs
	}
	return baseline, tuned
}

func (o *StepOptimizer) measuredGain(stepType string) (time.Duration, bool) {
	base, baseOK := o.baseline[stepType]
	tuned, tunedOK := o.tuned[stepType]
	if !baseOK || !tunedOK || base.runs == 0 || tuned.runs == 0 {
		return 0, false
	}
	gain := base.average() - tuned.average()
	return gain, gain > 0
}

func (o *StepOptimizer) transformRegressed(stepType string) bool {
	base, baseOK := o.baseline[stepType]
	tuned, tunedOK := o.tuned[stepType]
	if !baseOK || !tunedOK || base.runs == 0 || tuned.runs == 0 {
		return false
	}
	if tuned.failures > 0 && base.failures == 0 {
		return true
	}
	return tuned.average() > base.average()
}

func tuneParameters(meta *domain.StepMetadata, optimized *domain.OptimizedStep) bool {
	if meta.Type != "testing" {
		return false
	}
	if meta.Parameters == nil {
		meta.Parameters = make(map[string]interface{})
	}
	if _, ok := meta.Parameters["fail_fast"]; ok {
		return false
	}
	meta.Parameters["fail_fast"] = true
	return true
}

func hintStrategy(meta *domain.StepMetadata, optimized *domain.OptimizedStep) bool {
	if meta.Resources.MemoryMB >= heavyStepMemoryMB || meta.Resources.CPUPercent >= 50 {
		optimized.StrategyHint = "sequential"
		return true
	}
	if len(meta.Dependencies) == 0 {
		optimized.StrategyHint = "parallel"
		return true
	}
	return false
}

func rightSizeResources(meta *domain.StepMetadata, optimized *domain.OptimizedStep) bool {
	if meta.Resources.MemoryMB != 0 || meta.Resources.CPUPercent != 0 {
		return false
	}
	base, ok := baselineStepResources[meta.Type]
	if !ok {
		return false
	}
	meta.Resources = base
	return true
}

var baselineStepResources = map[string]domain.ResourceRequirements{
	"analysis":   {CPUPercent: 25, MemoryMB: 256, DiskMB: 10},
	"testing":    {CPUPercent: 40, MemoryMB: 512, DiskMB: 50},
	"refactor":   {CPUPercent: 30, MemoryMB: 384, DiskMB: 20},
	"deployment": {CPUPercent: 35, MemoryMB: 512, DiskMB: 100},
}

func cloneStepMetadata(meta domain.StepMetadata) domain.StepMetadata {
	clone := meta
	if meta.Parameters != nil {
		clone.Parameters = make(map[string]interface{}, len(meta.Parameters))
		for k, v := range meta.Parameters {
			clone.Parameters[k] = v
		}
	}
	if meta.Dependencies != nil {
		clone.Dependencies = append([]string(nil), meta.Dependencies...)
	}
	return clone
}

func stepCacheKey(meta domain.StepMetadata) string {
	serialized, err := json.Marshal(meta)
	if err != nil {
		return meta.Name + ":" + meta.Type
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}
