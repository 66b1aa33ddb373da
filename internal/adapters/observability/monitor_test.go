package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

func monitorConfig() domain.ObservabilityConfig {
	config := domain.DefaultConfig().Observability
	config.MaxAlerts = 5
	return config
}

func TestMonitor_TrackUntrack(t *testing.T) {
	m := NewMonitor(monitorConfig(), nil)

	m.Track(&domain.Execution{ID: "exec-1"})
	m.Track(&domain.Execution{ID: "exec-2"})

	if len(m.Active()) != 2 {
		t.Fatalf("expected 2 active, got %d", len(m.Active()))
	}

	m.Untrack("exec-1")

	active := m.Active()
	if len(active) != 1 || active[0] != "exec-2" {
		t.Errorf("expected only exec-2 active, got %v", active)
	}
}

func TestMonitor_StallDetection(t *testing.T) {
	config := monitorConfig()
	config.StallThreshold = 20 * time.Millisecond
	m := NewMonitor(config, nil)

	m.Track(&domain.Execution{ID: "exec-stalled"})
	time.Sleep(30 * time.Millisecond)
	m.checkStalls()

	alerts := m.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 stall alert, got %d", len(alerts))
	}
	if alerts[0].Type != domain.AlertStall || alerts[0].ExecutionID != "exec-stalled" {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}

	m.checkStalls()
	if len(m.Alerts()) != 1 {
		t.Error("stall must alert once until the next heartbeat")
	}

	m.Heartbeat("exec-stalled")
	time.Sleep(30 * time.Millisecond)
	m.checkStalls()
	if len(m.Alerts()) != 2 {
		t.Error("expected a fresh stall alert after heartbeat reset")
	}
}

func TestMonitor_HeartbeatPreventsStall(t *testing.T) {
	config := monitorConfig()
	config.StallThreshold = 40 * time.Millisecond
	m := NewMonitor(config, nil)

	m.Track(&domain.Execution{ID: "exec-1"})
	time.Sleep(25 * time.Millisecond)
	m.Heartbeat("exec-1")
	time.Sleep(25 * time.Millisecond)
	m.checkStalls()

	if len(m.Alerts()) != 0 {
		t.Errorf("expected no stall alerts, got %v", m.Alerts())
	}
}

func TestMonitor_ThresholdAlerts(t *testing.T) {
	m := NewMonitor(monitorConfig(), nil)

	m.ObserveResult(&domain.ExecutionResult{ExecutionID: "exec-slow", Duration: 11 * time.Minute})
	m.ObserveResources(domain.ResourceSnapshot{SystemMemoryUsedPct: 95, SystemCPUUsedPct: 50})
	m.ObserveErrorRate(0.5)
	m.ObserveErrorRate(0.1)

	alerts := m.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}

	types := map[domain.AlertType]bool{}
	for _, alert := range alerts {
		types[alert.Type] = true
	}
	for _, want := range []domain.AlertType{domain.AlertExecutionTime, domain.AlertMemoryUsage, domain.AlertErrorRate} {
		if !types[want] {
			t.Errorf("missing alert type %s", want)
		}
	}
}

func TestMonitor_AlertHookAndBound(t *testing.T) {
	m := NewMonitor(monitorConfig(), nil)

	var mu sync.Mutex
	hooked := 0
	m.SetAlertHook(func(domain.AlertRecord) {
		mu.Lock()
		hooked++
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		m.ObserveErrorRate(0.9)
	}

	if len(m.Alerts()) != 5 {
		t.Errorf("expected alert history bounded at 5, got %d", len(m.Alerts()))
	}

	mu.Lock()
	defer mu.Unlock()
	if hooked != 10 {
		t.Errorf("expected hook fired 10 times, got %d", hooked)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	config := monitorConfig()
	config.PruneInterval = 10 * time.Millisecond
	config.StallThreshold = 15 * time.Millisecond
	m := NewMonitor(config, nil)

	m.Track(&domain.Execution{ID: "exec-1"})
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.After(500 * time.Millisecond)
	for {
		if len(m.Alerts()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected watch loop to raise a stall alert")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m.Stop()
}
