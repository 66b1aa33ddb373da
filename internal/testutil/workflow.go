package testutil

import (
	"context"
	"time"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

type Step struct {
	Meta        domain.StepMetadata
	Delay       time.Duration
	Err         error
	Result      interface{}
	ExecuteFunc func(ctx context.Context, wfctx ports.WorkflowContext) (interface{}, error)
	Executions  int
}

func NewStep(name, stepType string) *Step {
	return &Step{
		Meta: domain.StepMetadata{
			Name: name,
			Type: stepType,
		},
		Result: name + "-output",
	}
}

func (s *Step) WithResources(memoryMB int64, cpuPercent float64) *Step {
	s.Meta.Resources.MemoryMB = memoryMB
	s.Meta.Resources.CPUPercent = cpuPercent
	return s
}

func (s *Step) WithDependencies(names ...string) *Step {
	s.Meta.Dependencies = names
	return s
}

func (s *Step) WithParameters(params map[string]interface{}) *Step {
	s.Meta.Parameters = params
	return s
}

func (s *Step) WithError(err error) *Step {
	s.Err = err
	return s
}

func (s *Step) Metadata() domain.StepMetadata {
	return s.Meta
}

func (s *Step) Execute(ctx context.Context, wfctx ports.WorkflowContext) (interface{}, error) {
	s.Executions++

	if s.ExecuteFunc != nil {
		return s.ExecuteFunc(ctx, wfctx)
	}

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}

type Workflow struct {
	Meta      domain.WorkflowMetadata
	Deps      []string
	StepList  []ports.Step
	Completed int
}

func NewWorkflow(id, name string, steps ...ports.Step) *Workflow {
	return &Workflow{
		Meta: domain.WorkflowMetadata{
			ID:      id,
			Name:    name,
			Version: "1.0.0",
			Type:    "test",
		},
		StepList: steps,
	}
}

func (w *Workflow) WithDependencies(ids ...string) *Workflow {
	w.Deps = ids
	return w
}

func (w *Workflow) Metadata() domain.WorkflowMetadata {
	return w.Meta
}

func (w *Workflow) Dependencies() []string {
	return w.Deps
}

func (w *Workflow) Steps() []ports.Step {
	return w.StepList
}

func (w *Workflow) Execute(ctx context.Context, wfctx ports.WorkflowContext) (map[string]interface{}, error) {
	output := make(map[string]interface{})
	for _, step := range w.StepList {
		result, err := step.Execute(ctx, wfctx)
		if err != nil {
			return output, err
		}
		output[step.Metadata().Name] = result
	}
	w.Completed++
	return output, nil
}
