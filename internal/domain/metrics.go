package domain

import (
	"sync/atomic"
	"time"
)

type Counters struct {
	ExecutionsStarted    int64 `json:"executions_started"`
	ExecutionsCompleted  int64 `json:"executions_completed"`
	ExecutionsFailed     int64 `json:"executions_failed"`
	ExecutionsCancelled  int64 `json:"executions_cancelled"`
	ExecutionsRetried    int64 `json:"executions_retried"`
	StepsExecuted        int64 `json:"steps_executed"`
	StepsSucceeded       int64 `json:"steps_succeeded"`
	StepsFailed          int64 `json:"steps_failed"`
	CacheHits            int64 `json:"cache_hits"`
	CacheMisses          int64 `json:"cache_misses"`
	TotalExecutionTimeNs int64 `json:"total_execution_time_ns"`
	ExecutionCount       int64 `json:"execution_count"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) IncrementExecutionsStarted() {
	atomic.AddInt64(&c.ExecutionsStarted, 1)
}

func (c *Counters) IncrementExecutionsCompleted() {
	atomic.AddInt64(&c.ExecutionsCompleted, 1)
}

func (c *Counters) IncrementExecutionsFailed() {
	atomic.AddInt64(&c.ExecutionsFailed, 1)
}

func (c *Counters) IncrementExecutionsCancelled() {
	atomic.AddInt64(&c.ExecutionsCancelled, 1)
}

func (c *Counters) IncrementExecutionsRetried() {
	atomic.AddInt64(&c.ExecutionsRetried, 1)
}

func (c *Counters) IncrementStepsExecuted() {
	atomic.AddInt64(&c.StepsExecuted, 1)
}

func (c *Counters) IncrementStepsSucceeded() {
	atomic.AddInt64(&c.StepsSucceeded, 1)
}

func (c *Counters) IncrementStepsFailed() {
	atomic.AddInt64(&c.StepsFailed, 1)
}

func (c *Counters) IncrementCacheHits() {
	atomic.AddInt64(&c.CacheHits, 1)
}

func (c *Counters) IncrementCacheMisses() {
	atomic.AddInt64(&c.CacheMisses, 1)
}

func (c *Counters) AddExecutionTime(duration time.Duration) {
	atomic.AddInt64(&c.TotalExecutionTimeNs, int64(duration))
	atomic.AddInt64(&c.ExecutionCount, 1)
}

func (c *Counters) AverageExecutionTime() time.Duration {
	totalNs := atomic.LoadInt64(&c.TotalExecutionTimeNs)
	count := atomic.LoadInt64(&c.ExecutionCount)
	if count == 0 {
		return 0
	}
	return time.Duration(totalNs / count)
}

func (c *Counters) Snapshot() Counters {
	return Counters{
		ExecutionsStarted:    atomic.LoadInt64(&c.ExecutionsStarted),
		ExecutionsCompleted:  atomic.LoadInt64(&c.ExecutionsCompleted),
		ExecutionsFailed:     atomic.LoadInt64(&c.ExecutionsFailed),
		ExecutionsCancelled:  atomic.LoadInt64(&c.ExecutionsCancelled),
		ExecutionsRetried:    atomic.LoadInt64(&c.ExecutionsRetried),
		StepsExecuted:        atomic.LoadInt64(&c.StepsExecuted),
		StepsSucceeded:       atomic.LoadInt64(&c.StepsSucceeded),
		StepsFailed:          atomic.LoadInt64(&c.StepsFailed),
		CacheHits:            atomic.LoadInt64(&c.CacheHits),
		CacheMisses:          atomic.LoadInt64(&c.CacheMisses),
		TotalExecutionTimeNs: atomic.LoadInt64(&c.TotalExecutionTimeNs),
		ExecutionCount:       atomic.LoadInt64(&c.ExecutionCount),
	}
}

func (c *Counters) Reset() {
	atomic.StoreInt64(&c.ExecutionsStarted, 0)
	atomic.StoreInt64(&c.ExecutionsCompleted, 0)
	atomic.StoreInt64(&c.ExecutionsFailed, 0)
	atomic.StoreInt64(&c.ExecutionsCancelled, 0)
	atomic.StoreInt64(&c.ExecutionsRetried, 0)
	atomic.StoreInt64(&c.StepsExecuted, 0)
	atomic.StoreInt64(&c.StepsSucceeded, 0)
	atomic.StoreInt64(&c.StepsFailed, 0)
	atomic.StoreInt64(&c.CacheHits, 0)
	atomic.StoreInt64(&c.CacheMisses, 0)
	atomic.StoreInt64(&c.TotalExecutionTimeNs, 0)
	atomic.StoreInt64(&c.ExecutionCount, 0)
}

type MetricRecordType string

const (
	MetricExecutionStart MetricRecordType = "execution_start"
	MetricExecutionEnd   MetricRecordType = "execution_end"
	MetricStepStart      MetricRecordType = "step_start"
	MetricStepEnd        MetricRecordType = "step_end"
	MetricCacheHit       MetricRecordType = "cache_hit"
	MetricError          MetricRecordType = "error"
)

type MetricRecord struct {
	Type        MetricRecordType `json:"type"`
	ExecutionID string           `json:"execution_id"`
	Workflow    string           `json:"workflow,omitempty"`
	StepName    string           `json:"step_name,omitempty"`
	StepIndex   int              `json:"step_index,omitempty"`
	Success     bool             `json:"success"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Error       string           `json:"error,omitempty"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

type ResourceSnapshot struct {
	AllocatedMemoryMB   int64   `json:"allocated_memory_mb"`
	AllocatedCPU        float64 `json:"allocated_cpu"`
	SystemMemoryUsedPct float64 `json:"system_memory_used_pct"`
	SystemCPUUsedPct    float64 `json:"system_cpu_used_pct"`
}

type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

type AlertType string

const (
	AlertExecutionTime     AlertType = "execution_time"
	AlertMemoryUsage       AlertType = "memory_usage"
	AlertCPUUsage          AlertType = "cpu_usage"
	AlertErrorRate         AlertType = "error_rate"
	AlertStall             AlertType = "stall"
	AlertResourceViolation AlertType = "resource_violation"
)

type AlertRecord struct {
	Type        AlertType     `json:"type"`
	Severity    AlertSeverity `json:"severity"`
	ExecutionID string        `json:"execution_id,omitempty"`
	Message     string        `json:"message"`
	Value       float64       `json:"value"`
	Threshold   float64       `json:"threshold"`
	RaisedAt    time.Time     `json:"raised_at"`
}

type SystemMetrics struct {
	Counters             Counters      `json:"counters"`
	ErrorRate            float64       `json:"error_rate"`
	ThroughputPerMinute  int           `json:"throughput_per_minute"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	ActiveExecutions     int           `json:"active_executions"`
	RecordCount          int           `json:"record_count"`
	CollectedAt          time.Time     `json:"collected_at"`
}

type QueueStatistics struct {
	Queued        int   `json:"queued"`
	Processing    int   `json:"processing"`
	Completed     int   `json:"completed"`
	Failed        int   `json:"failed"`
	MaxSize       int   `json:"max_size"`
	TotalEnqueued int64 `json:"total_enqueued"`
	TotalRetried  int64 `json:"total_retried"`
	TotalRejected int64 `json:"total_rejected"`
}

type SchedulerStatistics struct {
	Scheduled     int `json:"scheduled"`
	Pending       int `json:"pending"`
	Running       int `json:"running"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Cancelled     int `json:"cancelled"`
	Ready         int `json:"ready"`
	GraphEdges    int `json:"graph_edges"`
	MaxConcurrent int `json:"max_concurrent"`
}

type ResourcePoolStatus struct {
	MemoryLimitMB     int64   `json:"memory_limit_mb"`
	MemoryAllocatedMB int64   `json:"memory_allocated_mb"`
	CPULimit          float64 `json:"cpu_limit"`
	CPUAllocated      float64 `json:"cpu_allocated"`
	MaxConcurrent     int     `json:"max_concurrent"`
	ActiveAllocations int     `json:"active_allocations"`
	SystemMemoryPct   float64 `json:"system_memory_pct"`
	SystemCPUPct      float64 `json:"system_cpu_pct"`
}

type ResourceEfficiency struct {
	MemoryUtilization       float64 `json:"memory_utilization"`
	CPUUtilization          float64 `json:"cpu_utilization"`
	AllocatedVsSystemMemory float64 `json:"allocated_vs_system_memory"`
	AllocatedVsSystemCPU    float64 `json:"allocated_vs_system_cpu"`
}

type ResourceViolation struct {
	ResourceType string    `json:"resource_type"`
	UsedPct      float64   `json:"used_pct"`
	Threshold    float64   `json:"threshold"`
	DetectedAt   time.Time `json:"detected_at"`
}

type CacheStatistics struct {
	Entries     int     `json:"entries"`
	MaxEntries  int     `json:"max_entries"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Rejections  int64   `json:"rejections"`
	Invalidated int64   `json:"invalidated"`
	HitRate     float64 `json:"hit_rate"`
}

type HealthStatus struct {
	Healthy    bool            `json:"healthy"`
	Components map[string]bool `json:"components"`
	CheckedAt  time.Time       `json:"checked_at"`
}
