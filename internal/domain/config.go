package domain

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Logger *slog.Logger `json:"-" yaml:"-"`

	Engine        EngineConfig        `json:"engine" yaml:"engine"`
	Queue         QueueConfig         `json:"queue" yaml:"queue"`
	Scheduler     SchedulerConfig     `json:"scheduler" yaml:"scheduler"`
	Resources     ResourceConfig      `json:"resources" yaml:"resources"`
	Cache         CacheConfig         `json:"cache" yaml:"cache"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Predictor     PredictorConfig     `json:"predictor" yaml:"predictor"`
	Optimizer     OptimizerConfig     `json:"optimizer" yaml:"optimizer"`
}

type EngineConfig struct {
	DefaultStrategy  string        `json:"default_strategy" yaml:"default_strategy" validate:"oneof=basic batch smart"`
	DefaultTimeout   time.Duration `json:"default_timeout" yaml:"default_timeout" validate:"gt=0"`
	DefaultCacheTTL  time.Duration `json:"default_cache_ttl" yaml:"default_cache_ttl" validate:"gt=0"`
	DispatchInterval time.Duration `json:"dispatch_interval" yaml:"dispatch_interval" validate:"gt=0"`
}

type QueueConfig struct {
	MaxSize    int           `json:"max_size" yaml:"max_size" validate:"gt=0"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
}

type SchedulerConfig struct {
	MaxConcurrentExecutions int                      `json:"max_concurrent_executions" yaml:"max_concurrent_executions" validate:"gt=0"`
	BaseStepDuration        time.Duration            `json:"base_step_duration" yaml:"base_step_duration" validate:"gt=0"`
	StepDurationByType      map[string]time.Duration `json:"step_duration_by_type,omitempty" yaml:"step_duration_by_type,omitempty"`
}

type ResourceConfig struct {
	MaxMemoryMB        int64         `json:"max_memory_mb" yaml:"max_memory_mb" validate:"gt=0"`
	MaxCPUPercent      float64       `json:"max_cpu_percent" yaml:"max_cpu_percent" validate:"gt=0"`
	MaxConcurrent      int           `json:"max_concurrent" yaml:"max_concurrent" validate:"gt=0"`
	DefaultTimeout     time.Duration `json:"default_timeout" yaml:"default_timeout" validate:"gt=0"`
	MonitorInterval    time.Duration `json:"monitor_interval" yaml:"monitor_interval" validate:"gt=0"`
	ViolationThreshold float64       `json:"violation_threshold" yaml:"violation_threshold" validate:"gt=0,lte=1"`
}

type CacheConfig struct {
	MaxEntries    int           `json:"max_entries" yaml:"max_entries" validate:"gt=0"`
	DefaultTTL    time.Duration `json:"default_ttl" yaml:"default_ttl" validate:"gt=0"`
	MinResultSize int           `json:"min_result_size" yaml:"min_result_size" validate:"gte=0"`
	MinComplexity int           `json:"min_complexity" yaml:"min_complexity" validate:"gte=0"`
}

type ObservabilityConfig struct {
	RetentionWindow time.Duration   `json:"retention_window" yaml:"retention_window" validate:"gt=0"`
	MaxRecords      int             `json:"max_records" yaml:"max_records" validate:"gt=0"`
	MaxAlerts       int             `json:"max_alerts" yaml:"max_alerts" validate:"gt=0"`
	StallThreshold  time.Duration   `json:"stall_threshold" yaml:"stall_threshold" validate:"gt=0"`
	PruneInterval   time.Duration   `json:"prune_interval" yaml:"prune_interval" validate:"gt=0"`
	Thresholds      AlertThresholds `json:"thresholds" yaml:"thresholds"`
}

type AlertThresholds struct {
	MaxExecutionTime time.Duration `json:"max_execution_time" yaml:"max_execution_time" validate:"gt=0"`
	MaxMemoryPercent float64       `json:"max_memory_percent" yaml:"max_memory_percent" validate:"gt=0,lte=100"`
	MaxCPUPercent    float64       `json:"max_cpu_percent" yaml:"max_cpu_percent" validate:"gt=0,lte=100"`
	MaxErrorRate     float64       `json:"max_error_rate" yaml:"max_error_rate" validate:"gt=0,lte=1"`
}

type PredictorConfig struct {
	WindowSize int `json:"window_size" yaml:"window_size" validate:"gt=0"`
	MinSamples int `json:"min_samples" yaml:"min_samples" validate:"gt=0"`
}

type OptimizerConfig struct {
	AnalysisTTL      time.Duration `json:"analysis_ttl" yaml:"analysis_ttl" validate:"gt=0"`
	StepTransformTTL time.Duration `json:"step_transform_ttl" yaml:"step_transform_ttl" validate:"gt=0"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DefaultStrategy:  "basic",
			DefaultTimeout:   5 * time.Minute,
			DefaultCacheTTL:  15 * time.Minute,
			DispatchInterval: 50 * time.Millisecond,
		},
		Queue: QueueConfig{
			MaxSize:    1000,
			MaxRetries: 3,
			RetryDelay: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentExecutions: 10,
			BaseStepDuration:        30 * time.Second,
			StepDurationByType: map[string]time.Duration{
				"analysis":   45 * time.Second,
				"testing":    90 * time.Second,
				"refactor":   60 * time.Second,
				"deployment": 120 * time.Second,
			},
		},
		Resources: ResourceConfig{
			MaxMemoryMB:        2048,
			MaxCPUPercent:      400,
			MaxConcurrent:      10,
			DefaultTimeout:     5 * time.Minute,
			MonitorInterval:    10 * time.Second,
			ViolationThreshold: 0.9,
		},
		Cache: CacheConfig{
			MaxEntries:    500,
			DefaultTTL:    15 * time.Minute,
			MinResultSize: 64,
			MinComplexity: 2,
		},
		Observability: ObservabilityConfig{
			RetentionWindow: time.Hour,
			MaxRecords:      10000,
			MaxAlerts:       100,
			StallThreshold:  5 * time.Minute,
			PruneInterval:   time.Minute,
			Thresholds: AlertThresholds{
				MaxExecutionTime: 10 * time.Minute,
				MaxMemoryPercent: 90,
				MaxCPUPercent:    90,
				MaxErrorRate:     0.25,
			},
		},
		Predictor: PredictorConfig{
			WindowSize: 50,
			MinSamples: 3,
		},
		Optimizer: OptimizerConfig{
			AnalysisTTL:      time.Hour,
			StepTransformTTL: 30 * time.Minute,
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if ok := asValidationErrors(err, &invalid); ok && len(invalid) > 0 {
			first := invalid[0]
			return NewConfigError(first.Namespace(), ErrInvalidConfig)
		}
		return NewConfigError("config", err)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if errs, ok := err.(validator.ValidationErrors); ok {
		*target = errs
		return true
	}
	return false
}

func (c *Config) WithQueueLimits(maxSize, maxRetries int, retryDelay time.Duration) *Config {
	c.Queue.MaxSize = maxSize
	c.Queue.MaxRetries = maxRetries
	c.Queue.RetryDelay = retryDelay
	return c
}

func (c *Config) WithResourceLimits(maxMemoryMB int64, maxCPUPercent float64, maxConcurrent int) *Config {
	c.Resources.MaxMemoryMB = maxMemoryMB
	c.Resources.MaxCPUPercent = maxCPUPercent
	c.Resources.MaxConcurrent = maxConcurrent
	return c
}

func (c *Config) WithCacheSettings(maxEntries int, defaultTTL time.Duration) *Config {
	c.Cache.MaxEntries = maxEntries
	c.Cache.DefaultTTL = defaultTTL
	return c
}

func (c *Config) WithEngineSettings(defaultStrategy string, defaultTimeout time.Duration) *Config {
	c.Engine.DefaultStrategy = defaultStrategy
	c.Engine.DefaultTimeout = defaultTimeout
	return c
}
