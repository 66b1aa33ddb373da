package domain

import (
	"time"
)

type RecommendationKind string

const (
	RecommendationComplexity      RecommendationKind = "complexity"
	RecommendationParallelization RecommendationKind = "parallelization"
	RecommendationResource        RecommendationKind = "resource"
	RecommendationPerformance     RecommendationKind = "performance"
	RecommendationStrategy        RecommendationKind = "strategy"
)

type Recommendation struct {
	Kind     RecommendationKind `json:"kind"`
	Priority int                `json:"priority"`
	Message  string             `json:"message"`
	Impact   float64            `json:"impact"`
}

type AnalysisResult struct {
	WorkflowID          string               `json:"workflow_id"`
	ContextHash         string               `json:"context_hash"`
	ComplexityScore     float64              `json:"complexity_score"`
	ParallelizableSteps int                  `json:"parallelizable_steps"`
	ResourceEstimate    ResourceRequirements `json:"resource_estimate"`
	EstimatedDuration   time.Duration        `json:"estimated_duration"`
	Recommendations     []Recommendation     `json:"recommendations"`
	OptimizationScore   float64              `json:"optimization_score"`
	AnalyzedAt          time.Time            `json:"analyzed_at"`
}

func (r *AnalysisResult) Expired(ttl time.Duration) bool {
	return time.Since(r.AnalyzedAt) >= ttl
}

type OptimizedStep struct {
	Original     StepMetadata  `json:"original"`
	Transformed  StepMetadata  `json:"transformed"`
	StrategyHint string        `json:"strategy_hint,omitempty"`
	AppliedRules []string      `json:"applied_rules"`
	OptimizedAt  time.Time     `json:"optimized_at"`
	Improved     bool          `json:"improved"`
	Gain         time.Duration `json:"gain,omitempty"`
}

type OptimizationPlan struct {
	WorkflowID        string          `json:"workflow_id"`
	Analysis          *AnalysisResult `json:"analysis"`
	Steps             []OptimizedStep `json:"steps"`
	SuggestedStrategy string          `json:"suggested_strategy"`
	CreatedAt         time.Time       `json:"created_at"`
}

type StepTypeStats struct {
	StepType        string        `json:"step_type"`
	Samples         int           `json:"samples"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	AverageDuration time.Duration `json:"average_duration"`
	LastUpdated     time.Time     `json:"last_updated"`
}

type PatternRecord struct {
	Signature     string                      `json:"signature"`
	Observations  int                         `json:"observations"`
	StrategyStats map[string]*StrategyOutcome `json:"strategy_stats"`
	LastSeen      time.Time                   `json:"last_seen"`
}

type StrategyOutcome struct {
	Runs            int           `json:"runs"`
	Successes       int           `json:"successes"`
	AverageDuration time.Duration `json:"average_duration"`
}

func (o *StrategyOutcome) SuccessRate() float64 {
	if o.Runs == 0 {
		return 0
	}
	return float64(o.Successes) / float64(o.Runs)
}
