package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

type trackedExecution struct {
	execution *domain.Execution
	trackedAt time.Time
	lastBeat  time.Time
	stalled   bool
}

type Monitor struct {
	config domain.ObservabilityConfig
	logger *slog.Logger

	mu     sync.RWMutex
	active map[string]*trackedExecution
	alerts []domain.AlertRecord
	hook   func(domain.AlertRecord)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(config domain.ObservabilityConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		config: config,
		logger: logger.With("component", "execution-monitor"),
		active: make(map[string]*trackedExecution),
	}
}

func (m *Monitor) Track(execution *domain.Execution) {
	if execution == nil {
		return
	}

	now := time.Now()

	m.mu.Lock()
	m.active[execution.ID] = &trackedExecution{
		execution: execution,
		trackedAt: now,
		lastBeat:  now,
	}
	m.mu.Unlock()

	m.logger.Debug("tracking execution", "execution_id", execution.ID, "workflow", execution.WorkflowName)
}

func (m *Monitor) Heartbeat(executionID string) {
	m.mu.Lock()
	if tracked, ok := m.active[executionID]; ok {
		tracked.lastBeat = time.Now()
		tracked.stalled = false
	}
	m.mu.Unlock()
}

func (m *Monitor) Untrack(executionID string) {
	m.mu.Lock()
	delete(m.active, executionID)
	m.mu.Unlock()
}

func (m *Monitor) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

func (m *Monitor) Alerts() []domain.AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]domain.AlertRecord, len(m.alerts))
	copy(alerts, m.alerts)
	return alerts
}

func (m *Monitor) SetAlertHook(hook func(domain.AlertRecord)) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

func (m *Monitor) ObserveResult(result *domain.ExecutionResult) {
	if result == nil {
		return
	}

	limit := m.config.Thresholds.MaxExecutionTime
	if limit > 0 && result.Duration > limit {
		m.raise(domain.AlertRecord{
			Type:        domain.AlertExecutionTime,
			Severity:    domain.AlertSeverityWarning,
			ExecutionID: result.ExecutionID,
			Message:     fmt.Sprintf("execution %s ran for %s, limit %s", result.ExecutionID, result.Duration, limit),
			Value:       result.Duration.Seconds(),
			Threshold:   limit.Seconds(),
			RaisedAt:    time.Now(),
		})
	}
}

func (m *Monitor) ObserveResources(snapshot domain.ResourceSnapshot) {
	if limit := m.config.Thresholds.MaxMemoryPercent; limit > 0 && snapshot.SystemMemoryUsedPct > limit {
		m.raise(domain.AlertRecord{
			Type:      domain.AlertMemoryUsage,
			Severity:  domain.AlertSeverityCritical,
			Message:   fmt.Sprintf("system memory at %.1f%%, limit %.1f%%", snapshot.SystemMemoryUsedPct, limit),
			Value:     snapshot.SystemMemoryUsedPct,
			Threshold: limit,
			RaisedAt:  time.Now(),
		})
	}

	if limit := m.config.Thresholds.MaxCPUPercent; limit > 0 && snapshot.SystemCPUUsedPct > limit {
		m.raise(domain.AlertRecord{
			Type:      domain.AlertCPUUsage,
			Severity:  domain.AlertSeverityCritical,
			Message:   fmt.Sprintf("system cpu at %.1f%%, limit %.1f%%", snapshot.SystemCPUUsedPct, limit),
			Value:     snapshot.SystemCPUUsedPct,
			Threshold: limit,
			RaisedAt:  time.Now(),
		})
	}
}

func (m *Monitor) ObserveViolation(violation domain.ResourceViolation) {
	m.raise(domain.AlertRecord{
		Type:      domain.AlertResourceViolation,
		Severity:  domain.AlertSeverityCritical,
		Message:   fmt.Sprintf("%s utilization at %.1f%%, threshold %.1f%%", violation.ResourceType, violation.UsedPct, violation.Threshold),
		Value:     violation.UsedPct,
		Threshold: violation.Threshold,
		RaisedAt:  violation.DetectedAt,
	})
}

func (m *Monitor) ObserveErrorRate(rate float64) {
	limit := m.config.Thresholds.MaxErrorRate
	if limit > 0 && rate > limit {
		m.raise(domain.AlertRecord{
			Type:      domain.AlertErrorRate,
			Severity:  domain.AlertSeverityCritical,
			Message:   fmt.Sprintf("error rate %.2f above limit %.2f", rate, limit),
			Value:     rate,
			Threshold: limit,
			RaisedAt:  time.Now(),
		})
	}
}

func (m *Monitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.watchLoop(runCtx)

	m.logger.Debug("execution monitor started", "stall_threshold", m.config.StallThreshold)
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) watchLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkStalls()
		}
	}
}

func (m *Monitor) checkStalls() {
	now := time.Now()
	stalled := make([]domain.AlertRecord, 0)

	m.mu.Lock()
	for id, tracked := range m.active {
		silence := now.Sub(tracked.lastBeat)
		if silence <= m.config.StallThreshold || tracked.stalled {
			continue
		}
		tracked.stalled = true
		stalled = append(stalled, domain.AlertRecord{
			Type:        domain.AlertStall,
			Severity:    domain.AlertSeverityWarning,
			ExecutionID: id,
			Message:     fmt.Sprintf("execution %s silent for %s", id, silence.Round(time.Second)),
			Value:       silence.Seconds(),
			Threshold:   m.config.StallThreshold.Seconds(),
			RaisedAt:    now,
		})
	}
	m.mu.Unlock()

	for _, alert := range stalled {
		m.raise(alert)
	}
}

func (m *Monitor) raise(alert domain.AlertRecord) {
	m.mu.Lock()
	if len(m.alerts) >= m.config.MaxAlerts {
		overflow := len(m.alerts) - m.config.MaxAlerts + 1
		m.alerts = m.alerts[overflow:]
	}
	m.alerts = append(m.alerts, alert)
	hook := m.hook
	m.mu.Unlock()

	m.logger.Warn("alert raised",
		"type", alert.Type,
		"severity", alert.Severity,
		"execution_id", alert.ExecutionID,
		"value", alert.Value,
		"threshold", alert.Threshold)

	if hook != nil {
		hook(alert)
	}
}
