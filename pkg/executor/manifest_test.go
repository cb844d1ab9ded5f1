package executor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

func TestBuildManifestCountsStepsByStatus(t *testing.T) {
	result := &pipeline.ExecutionResult{
		Success: true,
		Stages: []pipeline.StageResult{
			{Name: "Build", Jobs: []pipeline.JobResult{
				{Name: "x", Steps: []pipeline.StepResult{
					{Status: pipeline.StatusSucceeded},
					{Status: pipeline.StatusFailed},
					{Status: pipeline.StatusSkipped},
					{Status: pipeline.StatusSucceededWithIssues},
				}},
			}},
		},
	}

	m := BuildManifest("run-1", "p", "t0", "t1", result)

	if m.StepsSummary.Total != 4 {
		t.Fatalf("got total %d, want 4", m.StepsSummary.Total)
	}
	if m.StepsSummary.Succeeded != 2 {
		t.Fatalf("got succeeded %d, want 2", m.StepsSummary.Succeeded)
	}
	if m.StepsSummary.Failed != 1 || m.StepsSummary.Skipped != 1 {
		t.Fatalf("got %+v", m.StepsSummary)
	}
	if m.RunID != "run-1" || m.PipelineName != "p" {
		t.Fatalf("got %+v", m)
	}
}

func TestWriteManifestWritesValidJSON(t *testing.T) {
	m := &RunManifest{RunID: "run-2", PipelineName: "p", Success: true}
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded RunManifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.RunID != "run-2" {
		t.Fatalf("got run id %q", decoded.RunID)
	}
}
