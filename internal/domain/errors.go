package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorKind int

const (
	ErrorKindStrategyExecution ErrorKind = iota
	ErrorKindStepExecution
	ErrorKindTimeout
	ErrorKindResource
	ErrorKindDependency
	ErrorKindValidation
	ErrorKindOptimization
	ErrorKindCache
	ErrorKindMonitoring
	ErrorKindQueue
	ErrorKindScheduler
	ErrorKindContext
	ErrorKindResult
	ErrorKindExternalService
	ErrorKindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindStrategyExecution:
		return "strategy_execution"
	case ErrorKindStepExecution:
		return "step_execution"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindResource:
		return "resource"
	case ErrorKindDependency:
		return "dependency"
	case ErrorKindValidation:
		return "validation"
	case ErrorKindOptimization:
		return "optimization"
	case ErrorKindCache:
		return "cache"
	case ErrorKindMonitoring:
		return "monitoring"
	case ErrorKindQueue:
		return "queue"
	case ErrorKindScheduler:
		return "scheduler"
	case ErrorKindContext:
		return "context"
	case ErrorKindResult:
		return "result"
	case ErrorKindExternalService:
		return "external_service"
	case ErrorKindConfiguration:
		return "configuration"
	}
	return "unknown"
}

type TimeoutScope string

const (
	TimeoutScopeExecution TimeoutScope = "execution"
	TimeoutScopeStep      TimeoutScope = "step"
	TimeoutScopeResource  TimeoutScope = "resource"
)

type Error struct {
	Kind         ErrorKind
	Message      string
	ExecutionID  string
	Workflow     string
	StepIndex    int
	StepName     string
	Retryable    bool
	Attempt      int
	MaxAttempts  int
	ResourceType string
	Required     float64
	Available    float64
	Scope        TimeoutScope
	Field        string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrNotFound        = errors.New("execution not found")
	ErrQueueFull       = errors.New("queue at capacity")
	ErrCapacityLimit   = errors.New("capacity limit reached")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrAlreadyShutdown = errors.New("engine already shut down")
	ErrCancelled       = errors.New("execution cancelled")
)

func NewStrategyError(strategy, workflow string, err error) *Error {
	return &Error{
		Kind:     ErrorKindStrategyExecution,
		Message:  fmt.Sprintf("strategy %s failed for workflow %s", strategy, workflow),
		Workflow: workflow,
		Err:      err,
	}
}

func NewStepError(workflow, stepName string, stepIndex, attempt, maxAttempts int, err error) *Error {
	return &Error{
		Kind:        ErrorKindStepExecution,
		Message:     fmt.Sprintf("step %s (index %d) failed", stepName, stepIndex),
		Workflow:    workflow,
		StepIndex:   stepIndex,
		StepName:    stepName,
		Retryable:   attempt < maxAttempts,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Err:         err,
	}
}

func NewTimeoutError(scope TimeoutScope, executionID string, limit time.Duration) *Error {
	return &Error{
		Kind:        ErrorKindTimeout,
		Message:     fmt.Sprintf("%s timeout after %s", scope, limit),
		ExecutionID: executionID,
		Scope:       scope,
	}
}

func NewResourceError(resourceType string, required, available float64) *Error {
	return &Error{
		Kind:         ErrorKindResource,
		Message:      fmt.Sprintf("insufficient %s: required %.2f, available %.2f", resourceType, required, available),
		ResourceType: resourceType,
		Required:     required,
		Available:    available,
		Err:          ErrCapacityLimit,
	}
}

func NewDependencyError(executionID string, missing []string, circular bool) *Error {
	message := fmt.Sprintf("unsatisfied dependencies: %s", strings.Join(missing, ", "))
	if circular {
		message = fmt.Sprintf("circular dependency involving: %s", strings.Join(missing, ", "))
	}
	return &Error{
		Kind:        ErrorKindDependency,
		Message:     message,
		ExecutionID: executionID,
	}
}

func NewValidationError(field, message string) *Error {
	return &Error{
		Kind:    ErrorKindValidation,
		Message: message,
		Field:   field,
		Err:     ErrInvalidConfig,
	}
}

func NewOptimizationError(workflow string, err error) *Error {
	return &Error{
		Kind:     ErrorKindOptimization,
		Message:  fmt.Sprintf("optimization failed for workflow %s", workflow),
		Workflow: workflow,
		Err:      err,
	}
}

func NewCacheError(op string, err error) *Error {
	return &Error{
		Kind:    ErrorKindCache,
		Message: fmt.Sprintf("cache %s failed", op),
		Err:     err,
	}
}

func NewMonitoringError(op string, err error) *Error {
	return &Error{
		Kind:    ErrorKindMonitoring,
		Message: fmt.Sprintf("monitoring %s failed", op),
		Err:     err,
	}
}

func NewQueueError(executionID, message string, err error) *Error {
	return &Error{
		Kind:        ErrorKindQueue,
		Message:     message,
		ExecutionID: executionID,
		Err:         err,
	}
}

func NewSchedulerError(executionID, message string, err error) *Error {
	return &Error{
		Kind:        ErrorKindScheduler,
		Message:     message,
		ExecutionID: executionID,
		Err:         err,
	}
}

func NewContextError(key string, err error) *Error {
	return &Error{
		Kind:    ErrorKindContext,
		Message: fmt.Sprintf("context access failed for key %s", key),
		Field:   key,
		Err:     err,
	}
}

func NewResultError(executionID string, err error) *Error {
	return &Error{
		Kind:        ErrorKindResult,
		Message:     "invalid execution result",
		ExecutionID: executionID,
		Err:         err,
	}
}

func NewExternalServiceError(service string, attempt, maxAttempts int, err error) *Error {
	return &Error{
		Kind:        ErrorKindExternalService,
		Message:     fmt.Sprintf("external service %s failed", service),
		Retryable:   attempt < maxAttempts,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Err:         err,
	}
}

func NewConfigError(field string, err error) *Error {
	return &Error{
		Kind:    ErrorKindConfiguration,
		Message: fmt.Sprintf("invalid configuration field %s", field),
		Field:   field,
		Err:     err,
	}
}

func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func IsResourceError(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrorKindResource
}

func IsTimeoutError(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrorKindTimeout
}

func IsDependencyError(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrorKindDependency
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func ClassifyError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	message := err.Error()
	lower := strings.ToLower(message)

	kind := ErrorKindStrategyExecution
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		kind = ErrorKindTimeout
	case strings.Contains(lower, "memory") || strings.Contains(lower, "cpu") || strings.Contains(lower, "resource"):
		kind = ErrorKindResource
	case strings.Contains(lower, "dependency") || strings.Contains(lower, "circular"):
		kind = ErrorKindDependency
	case strings.Contains(lower, "validation") || strings.Contains(lower, "invalid"):
		kind = ErrorKindValidation
	case strings.Contains(lower, "cache"):
		kind = ErrorKindCache
	case strings.Contains(lower, "queue"):
		kind = ErrorKindQueue
	case strings.Contains(lower, "schedul"):
		kind = ErrorKindScheduler
	case strings.Contains(lower, "connection") || strings.Contains(lower, "unavailable") || strings.Contains(lower, "service"):
		kind = ErrorKindExternalService
	case strings.Contains(lower, "step"):
		kind = ErrorKindStepExecution
	}

	return &Error{Kind: kind, Message: message, Err: err}
}
