package optimizer

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const (
	highComplexityScore   = 70
	heavyMemoryEstimateMB = 1024
	slowWorkflowDuration  = 5 * time.Minute
	cacheSweepThreshold   = 256
)

type analysisRule struct {
	kind     domain.RecommendationKind
	priority int
	apply    func(a *Analyzer, workflow ports.Workflow, result *domain.AnalysisResult)
}

var analysisRules = []analysisRule{
	{kind: domain.RecommendationComplexity, priority: 10, apply: (*Analyzer).applyComplexityRule},
	{kind: domain.RecommendationParallelization, priority: 8, apply: (*Analyzer).applyParallelizationRule},
	{kind: domain.RecommendationResource, priority: 6, apply: (*Analyzer).applyResourceRule},
	{kind: domain.RecommendationPerformance, priority: 4, apply: (*Analyzer).applyPerformanceRule},
	{kind: domain.RecommendationStrategy, priority: 2, apply: (*Analyzer).applyStrategyRule},
}

type Analyzer struct {
	config    domain.OptimizerConfig
	predictor ports.ExecutionPredictor
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*domain.AnalysisResult
}

func NewAnalyzer(config domain.OptimizerConfig, predictor ports.ExecutionPredictor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		config:    config,
		predictor: predictor,
		logger:    logger.With("component", "workflow-analyzer"),
		cache:     make(map[string]*domain.AnalysisResult),
	}
}

func (a *Analyzer) Analyze(workflow ports.Workflow, wfctx ports.WorkflowContext) (*domain.AnalysisResult, error) {
	if workflow == nil {
		return nil, domain.NewValidationError("workflow", "cannot analyze nil workflow")
	}

	meta := workflow.Metadata()
	contextHash := hashContext(meta, wfctx)
	cacheKey := meta.ID + ":" + contextHash

	a.mu.Lock()
	if cached, ok := a.cache[cacheKey]; ok && !cached.Expired(a.config.AnalysisTTL) {
		a.mu.Unlock()
		a.logger.Debug("analysis served from cache", "workflow_id", meta.ID)
		return cached, nil
	}
	a.mu.Unlock()

	result := &domain.AnalysisResult{
		WorkflowID:  meta.ID,
		ContextHash: contextHash,
		AnalyzedAt:  time.Now(),
	}

	for _, rule := range analysisRules {
		rule.apply(a, workflow, result)
	}

	sort.SliceStable(result.Recommendations, func(i, j int) bool {
		return result.Recommendations[i].Priority > result.Recommendations[j].Priority
	})

	a.mu.Lock()
	if len(a.cache) >= cacheSweepThreshold {
		for key, entry := range a.cache {
			if entry.Expired(a.config.AnalysisTTL) {
				delete(a.cache, key)
			}
		}
	}
	a.cache[cacheKey] = result
	a.mu.Unlock()

	a.logger.Debug("workflow analyzed",
		"workflow_id", meta.ID,
		"complexity", result.ComplexityScore,
		"parallelizable", result.ParallelizableSteps,
		"optimization_score", result.OptimizationScore,
		"recommendations", len(result.Recommendations))

	return result, nil
}

func (a *Analyzer) applyComplexityRule(workflow ports.Workflow, result *domain.AnalysisResult) {
	steps := workflow.Steps()
	types := make(map[string]bool)
	intensive := 0
	for _, step := range steps {
		meta := step.Metadata()
		types[meta.Type] = true
		if meta.Resources.MemoryMB >= 512 || meta.Resources.CPUPercent >= 50 {
			intensive++
		}
	}

	score := float64(len(steps)) * 10
	score += float64(len(types)) * 5
	if len(steps) > 0 {
		score += float64(intensive) / float64(len(steps)) * 30
	}
	if score > 100 {
		score = 100
	}
	result.ComplexityScore = score

	if score > highComplexityScore {
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Kind:     domain.RecommendationComplexity,
			Priority: 10,
			Message:  "workflow complexity is high; consider splitting it into smaller workflows",
			Impact:   (score - highComplexityScore) / 100,
		})
	}
}

func (a *Analyzer) applyParallelizationRule(workflow ports.Workflow, result *domain.AnalysisResult) {
	parallelizable := 0
	for _, step := range workflow.Steps() {
		if len(step.Metadata().Dependencies) == 0 {
			parallelizable++
		}
	}
	result.ParallelizableSteps = parallelizable

	if parallelizable >= 2 {
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Kind:     domain.RecommendationParallelization,
			Priority: 8,
			Message:  "independent steps detected; the batch strategy can run them in parallel",
			Impact:   float64(parallelizable) / float64(len(workflow.Steps())),
		})
	}
}

func (a *Analyzer) applyResourceRule(workflow ports.Workflow, result *domain.AnalysisResult) {
	estimate, _ := a.predictor.PredictResources(workflow)
	result.ResourceEstimate = estimate

	if estimate.MemoryMB > heavyMemoryEstimateMB {
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Kind:     domain.RecommendationResource,
			Priority: 6,
			Message:  "estimated memory exceeds 1GB; right-size step resource declarations",
			Impact:   float64(estimate.MemoryMB-heavyMemoryEstimateMB) / float64(heavyMemoryEstimateMB),
		})
	}
}

func (a *Analyzer) applyPerformanceRule(workflow ports.Workflow, result *domain.AnalysisResult) {
	duration, confidence := a.predictor.PredictDuration(workflow)
	result.EstimatedDuration = duration

	if confidence >= 0.5 && duration > slowWorkflowDuration {
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Kind:     domain.RecommendationPerformance,
			Priority: 4,
			Message:  "historical runs are slow; results are strong cache candidates",
			Impact:   float64(duration) / float64(slowWorkflowDuration) / 10,
		})
	}
}

func (a *Analyzer) applyStrategyRule(workflow ports.Workflow, result *domain.AnalysisResult) {
	steps := workflow.Steps()

	score := 0.0
	if len(steps) > 0 {
		score += float64(result.ParallelizableSteps) / float64(len(steps)) * 50
	}
	score += (100 - result.ComplexityScore) * 0.3
	score += float64(len(result.Recommendations)) * 5
	if score > 100 {
		score = 100
	}
	result.OptimizationScore = score

	if result.ComplexityScore > highComplexityScore {
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Kind:     domain.RecommendationStrategy,
			Priority: 2,
			Message:  "complex workflow; the smart strategy can adapt execution from history",
			Impact:   result.ComplexityScore / 200,
		})
	}
}

func hashContext(meta domain.WorkflowMetadata, wfctx ports.WorkflowContext) string {
	payload := map[string]interface{}{
		"id":      meta.ID,
		"version": meta.Version,
	}
	if wfctx != nil {
		for _, key := range []string{"project_id", "environment", "mode", "version"} {
			if value, ok := wfctx.Get(key); ok {
				payload[key] = value
			}
		}
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return meta.ID
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}
