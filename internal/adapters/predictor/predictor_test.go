package predictor

import (
	"testing"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/testutil"
)

func predictorConfig() domain.PredictorConfig {
	return domain.PredictorConfig{WindowSize: 10, MinSamples: 3}
}

func sampleWorkflow() *testutil.Workflow {
	return testutil.NewWorkflow("wf-1", "pipeline",
		testutil.NewStep("analyze", "analysis"),
		testutil.NewStep("verify", "testing"),
	)
}

func resultWithDuration(duration time.Duration) *domain.ExecutionResult {
	half := duration / 2
	return &domain.ExecutionResult{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Success:     true,
		Duration:    duration,
		Steps: []domain.StepResult{
			{Index: 0, Name: "analyze", Type: "analysis", Success: true, Duration: half},
			{Index: 1, Name: "verify", Type: "testing", Success: true, Duration: half},
		},
		Output:      map[string]interface{}{"analyze": "done", "verify": "passed"},
		CompletedAt: time.Now(),
	}
}

func TestAdapter_NoHistoryNoConfidence(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)

	duration, confidence := p.PredictDuration(sampleWorkflow())
	if duration != 0 || confidence != 0 {
		t.Errorf("expected zero prediction without history, got %s/%f", duration, confidence)
	}
}

func TestAdapter_LearnsSignatureDuration(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)
	wf := sampleWorkflow()

	for _, d := range []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second} {
		p.Reconcile(wf, resultWithDuration(d))
	}

	duration, confidence := p.PredictDuration(wf)
	if duration != 20*time.Second {
		t.Errorf("expected 20s mean, got %s", duration)
	}
	if confidence < 0.5 {
		t.Errorf("expected confidence >= 0.5 after min samples, got %f", confidence)
	}
}

func TestAdapter_WindowBoundsHistory(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)
	wf := sampleWorkflow()

	for i := 0; i < 20; i++ {
		p.Reconcile(wf, resultWithDuration(time.Minute))
	}
	for i := 0; i < 10; i++ {
		p.Reconcile(wf, resultWithDuration(10*time.Second))
	}

	duration, _ := p.PredictDuration(wf)
	if duration != 10*time.Second {
		t.Errorf("expected old samples aged out of the window, got %s", duration)
	}
}

func TestAdapter_CachedResultsNotReconciled(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)
	wf := sampleWorkflow()

	cached := resultWithDuration(time.Second)
	cached.FromCache = true
	for i := 0; i < 5; i++ {
		p.Reconcile(wf, cached)
	}

	if _, confidence := p.PredictDuration(wf); confidence != 0 {
		t.Error("cache hits must not feed the history")
	}
}

func TestAdapter_PredictResourcesFromStepTypes(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)

	estimate, confidence := p.PredictResources(sampleWorkflow())
	if estimate.MemoryMB != 256+512 {
		t.Errorf("expected 768MB estimate, got %d", estimate.MemoryMB)
	}
	if estimate.CPUPercent != 25+40 {
		t.Errorf("expected 65%% cpu estimate, got %f", estimate.CPUPercent)
	}
	if confidence >= 0.5 {
		t.Errorf("expected low confidence without history, got %f", confidence)
	}
}

func TestAdapter_PredictResourcesHonorsDeclared(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)

	wf := testutil.NewWorkflow("wf-1", "pipeline",
		testutil.NewStep("analyze", "analysis").WithResources(1024, 50),
	)

	estimate, _ := p.PredictResources(wf)
	if estimate.MemoryMB != 1024 || estimate.CPUPercent != 50 {
		t.Errorf("declared step resources must win over baselines, got %+v", estimate)
	}
}

func TestAdapter_ValueScore(t *testing.T) {
	p := NewAdapter(predictorConfig(), nil)
	wf := sampleWorkflow()

	failed := resultWithDuration(time.Minute)
	failed.Success = false
	if score := p.ValueScore(wf, failed); score != 0 {
		t.Errorf("failed results are worthless to cache, got %f", score)
	}

	slow := p.ValueScore(wf, resultWithDuration(time.Minute))
	fast := p.ValueScore(wf, resultWithDuration(10*time.Millisecond))
	if slow <= fast {
		t.Errorf("expensive results must score higher: slow=%f fast=%f", slow, fast)
	}

	for i := 0; i < 10; i++ {
		p.Reconcile(wf, resultWithDuration(time.Minute))
	}
	repeated := p.ValueScore(wf, resultWithDuration(time.Minute))
	if repeated <= slow {
		t.Errorf("frequently seen workflows must score higher: repeated=%f first=%f", repeated, slow)
	}
}

func TestSignature_OrderedStepTypes(t *testing.T) {
	a := Signature(sampleWorkflow())
	b := Signature(testutil.NewWorkflow("wf-2", "other",
		testutil.NewStep("check", "testing"),
		testutil.NewStep("scan", "analysis"),
	))

	if a == b {
		t.Error("signatures must distinguish step-type order")
	}
}
