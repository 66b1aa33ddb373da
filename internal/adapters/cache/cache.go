package cache

import (
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const minValueScore = 0.1

type entry struct {
	fingerprint string
	workflowID  string
	result      *domain.ExecutionResult
	storedAt    time.Time
	ttl         time.Duration
	size        int
	complexity  int
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

type Adapter struct {
	config    domain.CacheConfig
	predictor ports.ExecutionPredictor
	logger    *slog.Logger

	mu       sync.Mutex
	store    *lru.Cache[string, *entry]
	suppress bool

	hits        int64
	misses      int64
	evictions   int64
	rejections  int64
	invalidated int64
}

func NewAdapter(config domain.CacheConfig, predictor ports.ExecutionPredictor, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapter := &Adapter{
		config:    config,
		predictor: predictor,
		logger:    logger.With("component", "execution-cache"),
	}

	store, err := lru.NewWithEvict[string, *entry](config.MaxEntries, adapter.onEvict)
	if err != nil {
		return nil, domain.NewCacheError("init", err)
	}
	adapter.store = store

	return adapter, nil
}

func (c *Adapter) onEvict(fingerprint string, _ *entry) {
	if c.suppress {
		return
	}
	c.evictions++
	c.logger.Debug("cache entry evicted", "fingerprint", fingerprint)
}

func (c *Adapter) Get(workflow ports.Workflow, wfctx ports.WorkflowContext) (*domain.ExecutionResult, bool) {
	fp, err := fingerprint(workflow, wfctx, false)
	if err != nil {
		c.logger.Warn("fingerprint failed", "workflow_id", workflow.Metadata().ID, "error", err)
		return nil, false
	}
	return c.lookup(fp, workflow, wfctx)
}

func (c *Adapter) lookup(fp string, workflow ports.Workflow, wfctx ports.WorkflowContext) (*domain.ExecutionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(fp)
	if !ok {
		if excluded, err := fingerprint(workflow, wfctx, true); err == nil && excluded != fp {
			e, ok = c.store.Get(excluded)
		}
	}
	if !ok {
		c.misses++
		return nil, false
	}

	if e.expired(time.Now()) {
		c.suppress = true
		c.store.Remove(e.fingerprint)
		c.suppress = false
		c.misses++
		c.logger.Debug("cache entry expired", "fingerprint", e.fingerprint, "age", time.Since(e.storedAt))
		return nil, false
	}

	c.hits++
	c.logger.Debug("cache hit", "fingerprint", e.fingerprint, "workflow_id", e.workflowID)
	return e.result, true
}

func (c *Adapter) Put(workflow ports.Workflow, wfctx ports.WorkflowContext, result *domain.ExecutionResult, opts ports.CacheOptions) bool {
	meta := workflow.Metadata()

	if result == nil || !result.Success {
		c.reject("failed result", meta.ID)
		return false
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		c.reject("unserializable result", meta.ID)
		return false
	}
	if len(serialized) < c.config.MinResultSize {
		c.reject("result below minimum size", meta.ID)
		return false
	}

	complexity := resultComplexity(result)
	if complexity < c.config.MinComplexity {
		c.reject("result below minimum complexity", meta.ID)
		return false
	}

	if c.predictor != nil {
		if score := c.predictor.ValueScore(workflow, result); score < minValueScore {
			c.reject("result below value score", meta.ID)
			return false
		}
	}

	fp, err := fingerprint(workflow, wfctx, opts.ExcludeSensitive)
	if err != nil {
		c.reject("fingerprint failed", meta.ID)
		return false
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	c.store.Add(fp, &entry{
		fingerprint: fp,
		workflowID:  meta.ID,
		result:      result,
		storedAt:    time.Now(),
		ttl:         ttl,
		size:        len(serialized),
		complexity:  complexity,
	})
	c.mu.Unlock()

	c.logger.Debug("result cached", "fingerprint", fp, "workflow_id", meta.ID, "ttl", ttl, "size_bytes", len(serialized))
	return true
}

func (c *Adapter) InvalidateByWorkflow(workflowID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	c.suppress = true
	for _, key := range c.store.Keys() {
		if e, ok := c.store.Peek(key); ok && e.workflowID == workflowID {
			c.store.Remove(key)
			removed++
		}
	}
	c.suppress = false
	c.invalidated += int64(removed)

	c.logger.Debug("cache invalidated by workflow", "workflow_id", workflowID, "removed", removed)
	return removed
}

func (c *Adapter) InvalidateByAge(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	c.suppress = true
	for _, key := range c.store.Keys() {
		if e, ok := c.store.Peek(key); ok && now.Sub(e.storedAt) >= maxAge {
			c.store.Remove(key)
			removed++
		}
	}
	c.suppress = false
	c.invalidated += int64(removed)

	c.logger.Debug("cache invalidated by age", "max_age", maxAge, "removed", removed)
	return removed
}

func (c *Adapter) Statistics() domain.CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := domain.CacheStatistics{
		Entries:     c.store.Len(),
		MaxEntries:  c.config.MaxEntries,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Rejections:  c.rejections,
		Invalidated: c.invalidated,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (c *Adapter) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.suppress = true
	c.store.Purge()
	c.suppress = false
}

func (c *Adapter) reject(reason, workflowID string) {
	c.mu.Lock()
	c.rejections++
	c.mu.Unlock()
	c.logger.Debug("cache admission rejected", "reason", reason, "workflow_id", workflowID)
}

func resultComplexity(result *domain.ExecutionResult) int {
	complexity := len(result.Steps)
	complexity += len(result.Output)
	for _, step := range result.Steps {
		if step.Output != nil {
			complexity++
		}
	}
	return complexity
}
