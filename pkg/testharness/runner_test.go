package testharness

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScenario(t *testing.T, dir, pipelineName, pipelineYAML, testYAML string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, pipelineName+".yml"), []byte(pipelineYAML), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, pipelineName+".test.yml"), []byte(testYAML), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
}

func TestDiscoverScenariosPairsPipelineAndTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "deploy", "steps:\n  - script: echo hi\n", "expectedSuccess: true\n")
	// A lone pipeline file with no sibling test should not be discovered.
	if err := os.WriteFile(filepath.Join(dir, "other.yml"), []byte("steps: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	scenarios, err := DiscoverScenarios(dir)
	if err != nil {
		t.Fatalf("DiscoverScenarios: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "deploy" {
		t.Fatalf("got %+v", scenarios)
	}
}

func TestRunAllPassesWhenPipelineMatchesExpectations(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "build", `
steps:
  - name: a
    script: echo hi
`, `
expectedSuccess: true
expectedSteps:
  __default.__default.a: Succeeded
`)

	r := &Runner{}
	out, err := r.RunAll(dir, false)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if out.Summary.Total != 1 {
		t.Fatalf("got summary %+v", out.Summary)
	}
	if out.Scenarios[0].Status != "passed" {
		t.Fatalf("got scenario %+v", out.Scenarios[0])
	}
}

func TestRunAllFailsOnMismatchedExpectation(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "build", `
steps:
  - name: a
    script: exit 1
`, `
expectedSuccess: true
`)

	r := &Runner{}
	out, err := r.RunAll(dir, false)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if out.Scenarios[0].Status != "failed" {
		t.Fatalf("got scenario %+v", out.Scenarios[0])
	}
}

func TestRunScenarioNotFound(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "build", "steps: []\n", "expectedSuccess: true\n")

	r := &Runner{}
	if _, err := r.RunScenario(dir, "missing"); err == nil {
		t.Fatal("expected error for unknown scenario name")
	}
}
