package cache

import (
	"crypto/sha256"
	"encoding/hex"

	json "github.com/goccy/go-json"
	"github.com/loomhq/loom/internal/ports"
)

var fingerprintKeys = []string{
	"project_id",
	"user_id",
	"environment",
	"mode",
	"version",
	"config",
	"settings",
	"parameters",
}

var sensitiveKeys = map[string]bool{
	"config":     true,
	"settings":   true,
	"parameters": true,
}

type fingerprintPayload struct {
	WorkflowID string                 `json:"workflow_id"`
	Name       string                 `json:"name"`
	Version    string                 `json:"version"`
	Type       string                 `json:"type"`
	StepCount  int                    `json:"step_count"`
	StepTypes  []string               `json:"step_types"`
	Context    map[string]interface{} `json:"context"`
}

func fingerprint(workflow ports.Workflow, wfctx ports.WorkflowContext, excludeSensitive bool) (string, error) {
	meta := workflow.Metadata()
	steps := workflow.Steps()

	stepTypes := make([]string, 0, len(steps))
	for _, step := range steps {
		stepTypes = append(stepTypes, step.Metadata().Type)
	}

	contextSubset := make(map[string]interface{})
	if wfctx != nil {
		for _, key := range fingerprintKeys {
			if excludeSensitive && sensitiveKeys[key] {
				continue
			}
			if value, ok := wfctx.Get(key); ok {
				contextSubset[key] = value
			}
		}
	}

	payload := fingerprintPayload{
		WorkflowID: meta.ID,
		Name:       meta.Name,
		Version:    meta.Version,
		Type:       meta.Type,
		StepCount:  len(steps),
		StepTypes:  stepTypes,
		Context:    contextSubset,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
