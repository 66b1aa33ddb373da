package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomhq/loom/internal/adapters/cache"
	"github.com/loomhq/loom/internal/adapters/observability"
	"github.com/loomhq/loom/internal/adapters/optimizer"
	"github.com/loomhq/loom/internal/adapters/predictor"
	"github.com/loomhq/loom/internal/adapters/queue"
	"github.com/loomhq/loom/internal/adapters/resources"
	"github.com/loomhq/loom/internal/adapters/scheduler"
	"github.com/loomhq/loom/internal/adapters/strategy"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

const tracerName = "github.com/loomhq/loom"

type outcome struct {
	result *domain.ExecutionResult
	err    error
}

type activeExecution struct {
	execution  *domain.Execution
	workflow   ports.Workflow
	wfctx      ports.WorkflowContext
	opts       domain.ExecutionOptions
	tunedTypes map[string]bool

	done chan outcome
	once sync.Once

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
}

func (a *activeExecution) setCancel(cancel context.CancelFunc) {
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
}

func (a *activeExecution) markCancelled() context.CancelFunc {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled = true
	return a.cancel
}

func (a *activeExecution) isCancelled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled
}

func (a *activeExecution) deliver(result *domain.ExecutionResult, err error) {
	a.once.Do(func() {
		a.done <- outcome{result: result, err: err}
	})
}

// Engine wires the queue, scheduler, resource pool, cache, observability
// and strategies behind a single ExecuteWorkflow entry point.
type Engine struct {
	logger *slog.Logger
	tracer trace.Tracer

	queue      ports.ExecutionQueue
	scheduler  ports.ExecutionScheduler
	resources  ports.ResourceManager
	cache      ports.ExecutionCache
	recorder   ports.MetricsRecorder
	monitor    ports.ExecutionMonitor
	predictor  ports.ExecutionPredictor
	optimizer  ports.WorkflowOptimizer
	stepOpt    ports.StepOptimizer
	strategies map[string]ports.ExecutionStrategy

	configMu sync.RWMutex
	config   domain.Config

	mu         sync.RWMutex
	active     map[string]*activeExecution
	statuses   map[string]domain.ExecutionStatus
	statusIDs  []string
	statusCap  int
	shutdown   bool
	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

func New(config domain.Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := observability.NewRecorder(config.Observability, logger)
	monitor := observability.NewMonitor(config.Observability, logger)
	pool := resources.NewAdapter(config.Resources, logger)
	predict := predictor.NewAdapter(config.Predictor, logger)
	sched := scheduler.NewAdapter(config.Scheduler, pool, predict, logger)
	q := queue.NewAdapter(config.Queue, logger)

	store, err := cache.NewAdapter(config.Cache, predict, logger)
	if err != nil {
		return nil, err
	}

	analyzer := optimizer.NewAnalyzer(config.Optimizer, predict, logger)
	stepOptimizer := optimizer.NewStepOptimizer(config.Optimizer, logger)
	workflowOptimizer := optimizer.NewWorkflowOptimizer(analyzer, stepOptimizer, logger)

	basic := strategy.NewBasic(recorder, monitor, logger)
	batch := strategy.NewBatch(recorder, monitor, logger)
	smart := strategy.NewSmart(basic, batch, logger)

	rootCtx, rootCancel := context.WithCancel(context.Background())

	e := &Engine{
		logger:    logger.With("component", "engine"),
		tracer:    otel.Tracer(tracerName),
		config:    config,
		queue:     q,
		scheduler: sched,
		resources: pool,
		cache:     store,
		recorder:  recorder,
		monitor:   monitor,
		predictor: predict,
		optimizer: workflowOptimizer,
		stepOpt:   stepOptimizer,
		strategies: map[string]ports.ExecutionStrategy{
			basic.Name(): basic,
			batch.Name(): batch,
			smart.Name(): smart,
		},
		active:     make(map[string]*activeExecution),
		statuses:   make(map[string]domain.ExecutionStatus),
		statusCap:  config.Queue.MaxSize,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}

	pool.SetViolationHook(monitor.ObserveViolation)
	pool.SetSampleHook(monitor.ObserveResources)
	pool.Start(rootCtx)
	monitor.Start(rootCtx)

	e.wg.Add(2)
	go e.dispatchLoop()
	go e.pruneLoop()

	e.logger.Info("engine started",
		"default_strategy", config.Engine.DefaultStrategy,
		"max_concurrent", config.Scheduler.MaxConcurrentExecutions,
		"queue_size", config.Queue.MaxSize)

	return e, nil
}

func (e *Engine) ExecuteWorkflow(ctx context.Context, workflow ports.Workflow, wfctx ports.WorkflowContext, opts domain.ExecutionOptions) (*domain.ExecutionResult, error) {
	if workflow == nil {
		return nil, domain.NewValidationError("workflow", "workflow is nil")
	}
	if len(workflow.Steps()) == 0 {
		return nil, domain.NewValidationError("workflow", "workflow has no steps")
	}
	if e.isShutdown() {
		return nil, domain.ErrAlreadyShutdown
	}

	meta := workflow.Metadata()
	ctx, span := e.tracer.Start(ctx, "loom.execute_workflow", trace.WithAttributes(
		attribute.String("workflow.id", meta.ID),
		attribute.String("workflow.name", meta.Name),
		attribute.Int("workflow.steps", len(workflow.Steps())),
	))
	defer span.End()

	if wfctx == nil {
		wfctx = domain.NewContext(nil)
	}

	if !opts.SkipCache {
		if cached, ok := e.cache.Get(workflow, wfctx); ok {
			span.SetAttributes(attribute.Bool("loom.cache_hit", true))
			served := *cached
			served.FromCache = true
			e.recorder.RecordCacheHit(served.ExecutionID)
			e.logger.Debug("execution served from cache", "workflow_id", meta.ID)
			return &served, nil
		}
		e.recorder.RecordCacheMiss()
	}

	execution := &domain.Execution{
		ID:           uuid.NewString(),
		WorkflowID:   meta.ID,
		WorkflowName: meta.Name,
		Status:       domain.ExecutionStatusRunning,
		Flags:        opts.Flags,
		Timeout:      e.executionTimeout(opts),
		StartedAt:    time.Now(),
	}
	span.SetAttributes(attribute.String("execution.id", execution.ID))

	if _, err := e.scheduler.Schedule(execution, workflow); err != nil {
		span.SetStatus(codes.Error, "scheduling rejected")
		return nil, err
	}
	if err := e.queue.Enqueue(execution); err != nil {
		_ = e.scheduler.Cancel(execution.ID)
		span.SetStatus(codes.Error, "queue rejected")
		return nil, err
	}

	entry := &activeExecution{
		execution: execution,
		workflow:  workflow,
		wfctx:     wfctx,
		opts:      opts,
		done:      make(chan outcome, 1),
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		e.queue.Remove(execution.ID)
		_ = e.scheduler.Cancel(execution.ID)
		return nil, domain.ErrAlreadyShutdown
	}
	e.active[execution.ID] = entry
	e.mu.Unlock()

	e.monitor.Track(execution)
	e.recorder.RecordExecutionStart(execution)

	select {
	case out := <-entry.done:
		if out.err != nil {
			span.SetStatus(codes.Error, out.err.Error())
		}
		return out.result, out.err
	case <-ctx.Done():
		e.CancelExecution(execution.ID)
		out := <-entry.done
		span.SetStatus(codes.Error, "caller cancelled")
		return out.result, out.err
	}
}

func (e *Engine) CancelExecution(executionID string) bool {
	e.mu.Lock()
	entry, ok := e.active[executionID]
	e.mu.Unlock()
	if !ok {
		return false
	}

	if cancel := entry.markCancelled(); cancel != nil {
		cancel()
	}

	e.queue.Remove(executionID)
	_ = e.scheduler.Cancel(executionID)
	e.resources.Release(executionID)

	entry.execution.MarkCancelled()
	e.recorder.RecordExecutionCancelled(executionID)
	e.finish(entry, nil, domain.NewQueueError(executionID, "execution cancelled", domain.ErrCancelled))

	e.logger.Info("execution cancelled", "execution_id", executionID)
	return true
}

func (e *Engine) GetActiveExecutions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) GetExecutionStatus(executionID string) (domain.ExecutionStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if entry, ok := e.active[executionID]; ok {
		return entry.execution.Status, nil
	}
	if status, ok := e.statuses[executionID]; ok {
		return status, nil
	}
	return "", domain.NewQueueError(executionID, "unknown execution", domain.ErrNotFound)
}

func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return domain.ErrAlreadyShutdown
	}
	e.shutdown = true
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.CancelExecution(id)
	}

	e.rootCancel()
	e.wg.Wait()
	e.monitor.Stop()
	e.resources.Stop()
	e.cache.Purge()

	e.mu.Lock()
	e.active = make(map[string]*activeExecution)
	e.statuses = make(map[string]domain.ExecutionStatus)
	e.statusIDs = nil
	e.mu.Unlock()

	e.logger.Info("engine shut down")
	return nil
}

func (e *Engine) isShutdown() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shutdown
}

func (e *Engine) executionTimeout(opts domain.ExecutionOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	e.configMu.RLock()
	defer e.configMu.RUnlock()
	return e.config.Engine.DefaultTimeout
}

func (e *Engine) strategyFor(name string) ports.ExecutionStrategy {
	if name == "" {
		e.configMu.RLock()
		name = e.config.Engine.DefaultStrategy
		e.configMu.RUnlock()
	}
	if s, ok := e.strategies[name]; ok {
		return s
	}
	return e.strategies["basic"]
}

func (e *Engine) finish(entry *activeExecution, result *domain.ExecutionResult, err error) {
	id := entry.execution.ID

	e.mu.Lock()
	if _, ok := e.active[id]; ok {
		delete(e.active, id)
		e.statuses[id] = entry.execution.Status
		e.statusIDs = append(e.statusIDs, id)
		if len(e.statusIDs) > e.statusCap {
			oldest := e.statusIDs[0]
			e.statusIDs = e.statusIDs[1:]
			delete(e.statuses, oldest)
		}
	}
	e.mu.Unlock()

	e.monitor.Untrack(id)
	entry.deliver(result, err)
}
