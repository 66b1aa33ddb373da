package strategy

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const (
	selectionConfidence = 0.7
	minPatternRuns      = 3
	lowComplexityScore  = 30
)

type Smart struct {
	basic  ports.ExecutionStrategy
	batch  ports.ExecutionStrategy
	logger *slog.Logger

	mu        sync.Mutex
	patterns  map[string]*domain.PatternRecord
	stepStats map[string]*domain.StepTypeStats
}

func NewSmart(basic, batch ports.ExecutionStrategy, logger *slog.Logger) *Smart {
	if logger == nil {
		logger = slog.Default()
	}

	return &Smart{
		basic:     basic,
		batch:     batch,
		logger:    logger.With("component", "smart-strategy"),
		patterns:  make(map[string]*domain.PatternRecord),
		stepStats: make(map[string]*domain.StepTypeStats),
	}
}

func (s *Smart) Name() string {
	return "smart"
}

func (s *Smart) Execute(ctx context.Context, workflow ports.Workflow, wfctx ports.WorkflowContext, execution *domain.Execution) (*domain.ExecutionResult, error) {
	signature := patternSignature(workflow)
	chosen := s.selectStrategy(workflow, signature)

	s.logger.Debug("strategy selected",
		"execution_id", execution.ID,
		"signature", signature,
		"chosen", chosen.Name())

	result, err := chosen.Execute(ctx, workflow, wfctx, execution)
	if result != nil {
		s.learn(signature, chosen.Name(), result)
		result.Strategy = s.Name()
	}
	return result, err
}

func (s *Smart) selectStrategy(workflow ports.Workflow, signature string) ports.ExecutionStrategy {
	s.mu.Lock()
	pattern, seen := s.patterns[signature]
	var best string
	var bestRate float64
	if seen && pattern.Observations >= minPatternRuns {
		for name, outcome := range pattern.StrategyStats {
			if outcome.Runs == 0 {
				continue
			}
			rate := outcome.SuccessRate()
			if rate > bestRate || (rate == bestRate && best != "" && outcome.AverageDuration < pattern.StrategyStats[best].AverageDuration) {
				best = name
				bestRate = rate
			}
		}
	}
	s.mu.Unlock()

	if best != "" && bestRate >= selectionConfidence {
		return s.byName(best)
	}

	complexity := complexityScore(workflow)
	independent := independentSteps(workflow)

	if complexity >= lowComplexityScore && independent >= 2 {
		return s.batch
	}
	return s.basic
}

func (s *Smart) learn(signature, strategy string, result *domain.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern, ok := s.patterns[signature]
	if !ok {
		pattern = &domain.PatternRecord{
			Signature:     signature,
			StrategyStats: make(map[string]*domain.StrategyOutcome),
		}
		s.patterns[signature] = pattern
	}
	pattern.Observations++
	pattern.LastSeen = time.Now()

	outcome, ok := pattern.StrategyStats[strategy]
	if !ok {
		outcome = &domain.StrategyOutcome{}
		pattern.StrategyStats[strategy] = outcome
	}
	total := outcome.AverageDuration*time.Duration(outcome.Runs) + result.Duration
	outcome.Runs++
	outcome.AverageDuration = total / time.Duration(outcome.Runs)
	if result.Success {
		outcome.Successes++
	}

	for _, step := range result.Steps {
		stats, ok := s.stepStats[step.Type]
		if !ok {
			stats = &domain.StepTypeStats{StepType: step.Type}
			s.stepStats[step.Type] = stats
		}
		stepTotal := stats.AverageDuration*time.Duration(stats.Samples) + step.Duration
		stats.Samples++
		stats.AverageDuration = stepTotal / time.Duration(stats.Samples)
		if step.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		stats.LastUpdated = time.Now()
	}
}

func (s *Smart) byName(name string) ports.ExecutionStrategy {
	if name == s.batch.Name() {
		return s.batch
	}
	return s.basic
}

func (s *Smart) Patterns() map[string]domain.PatternRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.PatternRecord, len(s.patterns))
	for signature, pattern := range s.patterns {
		out[signature] = *pattern
	}
	return out
}

func complexityScore(workflow ports.Workflow) float64 {
	steps := workflow.Steps()
	if len(steps) == 0 {
		return 0
	}

	types := make(map[string]bool)
	intensive := 0
	for _, step := range steps {
		meta := step.Metadata()
		types[meta.Type] = true
		req := stepResources(meta)
		if req.MemoryMB >= 512 || req.CPUPercent >= 50 {
			intensive++
		}
	}

	score := float64(len(steps))*10 + float64(len(types))*5
	score += float64(intensive) / float64(len(steps)) * 30
	if score > 100 {
		score = 100
	}
	return score
}

func independentSteps(workflow ports.Workflow) int {
	count := 0
	for _, step := range workflow.Steps() {
		if len(step.Metadata().Dependencies) == 0 {
			count++
		}
	}
	return count
}

func patternSignature(workflow ports.Workflow) string {
	steps := workflow.Steps()
	types := make([]string, 0, len(steps))
	for _, step := range steps {
		types = append(types, step.Metadata().Type)
	}
	return strings.Join(types, ">")
}
