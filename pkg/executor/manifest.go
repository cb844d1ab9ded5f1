package executor

import (
	"encoding/json"
	"os"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

// StepsSummary counts step results by status across an entire run.
type StepsSummary struct {
	Total   int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RunManifest records a completed run's metadata, independent of the
// full ExecutionResult — a compact record meant to be written once per
// run for later auditing or chaining.
type RunManifest struct {
	RunID        string       `json:"run_id"`
	PipelineName string       `json:"pipeline_name"`
	StartedAt    string       `json:"started_at"`
	EndedAt      string       `json:"ended_at"`
	Success      bool         `json:"success"`
	Duration     float64      `json:"duration"`
	StepsSummary StepsSummary `json:"steps_summary"`
	Variables    map[string]string `json:"variables,omitempty"`
}

// BuildManifest summarizes a completed ExecutionResult into a
// RunManifest.
func BuildManifest(runID, pipelineName, startedAt, endedAt string, result *pipeline.ExecutionResult) *RunManifest {
	summary := StepsSummary{}
	for _, stage := range result.Stages {
		for _, job := range stage.Jobs {
			for _, step := range job.Steps {
				summary.Total++
				switch step.Status {
				case pipeline.StatusSucceeded, pipeline.StatusSucceededWithIssues:
					summary.Succeeded++
				case pipeline.StatusFailed:
					summary.Failed++
				case pipeline.StatusSkipped:
					summary.Skipped++
				}
			}
		}
	}

	return &RunManifest{
		RunID:        runID,
		PipelineName: pipelineName,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		Success:      result.Success,
		Duration:     result.Duration,
		StepsSummary: summary,
		Variables:    result.Variables,
	}
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(path string, m *RunManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
