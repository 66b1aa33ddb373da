package domain

import (
	"time"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

type Execution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	WorkflowName string          `json:"workflow_name"`
	Status       ExecutionStatus `json:"status"`
	Flags        map[string]bool `json:"flags,omitempty"`
	Timeout      time.Duration   `json:"timeout"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	RetryCount   int             `json:"retry_count"`
	Error        string          `json:"error,omitempty"`
}

func (e *Execution) MarkCompleted() {
	now := time.Now()
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
}

func (e *Execution) MarkFailed(reason string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
	e.Error = reason
}

func (e *Execution) MarkCancelled() {
	now := time.Now()
	e.Status = ExecutionStatusCancelled
	e.CompletedAt = &now
}

func (e *Execution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

const (
	FlagCritical = "critical"
	FlagHigh     = "high"
	FlagUrgent   = "urgent"
	FlagLow      = "low"
)

const basePriority = 5

func ComputePriority(flags map[string]bool) int {
	priority := basePriority

	if flags[FlagCritical] {
		priority += 10
	}
	if flags[FlagHigh] {
		priority += 5
	}
	if flags[FlagUrgent] {
		priority += 3
	}
	if flags[FlagLow] {
		priority -= 2
	}

	if priority < 1 {
		priority = 1
	}
	return priority
}

type ExecutionOptions struct {
	Strategy                  string          `json:"strategy,omitempty"`
	Flags                     map[string]bool `json:"flags,omitempty"`
	Timeout                   time.Duration   `json:"timeout,omitempty"`
	CacheTTL                  time.Duration   `json:"cache_ttl,omitempty"`
	SkipCache                 bool            `json:"skip_cache,omitempty"`
	ExcludeSensitiveFromCache bool            `json:"exclude_sensitive_from_cache,omitempty"`
}

type ResourceRequirements struct {
	CPUPercent float64       `json:"cpu_percent"`
	MemoryMB   int64         `json:"memory_mb"`
	DiskMB     int64         `json:"disk_mb"`
	Timeout    time.Duration `json:"timeout"`
}

type ScheduledExecutionStatus string

const (
	ScheduledStatusPending   ScheduledExecutionStatus = "pending"
	ScheduledStatusRunning   ScheduledExecutionStatus = "running"
	ScheduledStatusCompleted ScheduledExecutionStatus = "completed"
	ScheduledStatusFailed    ScheduledExecutionStatus = "failed"
	ScheduledStatusCancelled ScheduledExecutionStatus = "cancelled"
)

type ScheduledExecution struct {
	ExecutionID       string                   `json:"execution_id"`
	WorkflowID        string                   `json:"workflow_id"`
	Priority          int                      `json:"priority"`
	EstimatedDuration time.Duration            `json:"estimated_duration"`
	Requirements      ResourceRequirements     `json:"requirements"`
	Dependencies      []string                 `json:"dependencies,omitempty"`
	Constraints       map[string]interface{}   `json:"constraints,omitempty"`
	Status            ScheduledExecutionStatus `json:"status"`
	ScheduledAt       time.Time                `json:"scheduled_at"`
	Sequence          int64                    `json:"sequence"`
}

type QueueItemState string

const (
	QueueItemQueued     QueueItemState = "queued"
	QueueItemProcessing QueueItemState = "processing"
	QueueItemCompleted  QueueItemState = "completed"
	QueueItemFailed     QueueItemState = "failed"
)

type QueueItem struct {
	Execution     *Execution     `json:"execution"`
	Priority      int            `json:"priority"`
	Sequence      int64          `json:"sequence"`
	State         QueueItemState `json:"state"`
	MaxRetries    int            `json:"max_retries"`
	EnqueuedAt    time.Time      `json:"enqueued_at"`
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	LastError     string         `json:"last_error,omitempty"`
}

type ResourceAllocation struct {
	ExecutionID string        `json:"execution_id"`
	MemoryMB    int64         `json:"memory_mb"`
	CPUPercent  float64       `json:"cpu_percent"`
	Timeout     time.Duration `json:"timeout"`
	AllocatedAt time.Time     `json:"allocated_at"`
}

type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

type StepResult struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Status   StepStatus    `json:"status"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Output   interface{}   `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Parallel bool          `json:"parallel"`
}

type ExecutionResult struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration"`
	Steps       []StepResult           `json:"steps"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Strategy    string                 `json:"strategy"`
	FromCache   bool                   `json:"from_cache"`
	CompletedAt time.Time              `json:"completed_at"`
}

func (r *ExecutionResult) FailedStep() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StepStatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

type WorkflowMetadata struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

type StepMetadata struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty"`
	Resources    ResourceRequirements   `json:"resources"`
}
