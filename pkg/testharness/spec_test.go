package testharness

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSpecParsesFullScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deploy.test.yml")
	content := `
name: deploy succeeds
parameters:
  target: prod
variables:
  seeded: value
expectedSuccess: true
expectedStages:
  Build: Succeeded
expectedJobs:
  Build.x: Succeeded
expectedSteps:
  Build.x.a: Succeeded
expectedVariables:
  greeting: hello
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if spec.Name != "deploy succeeds" {
		t.Errorf("got name %q", spec.Name)
	}
	if spec.Parameters["target"] != "prod" {
		t.Errorf("got parameters %+v", spec.Parameters)
	}
	if spec.Variables["seeded"] != "value" {
		t.Errorf("got variables %+v", spec.Variables)
	}
	if spec.ExpectedSuccess == nil || !*spec.ExpectedSuccess {
		t.Errorf("got expectedSuccess %+v", spec.ExpectedSuccess)
	}
	if spec.ExpectedStages["Build"] != "Succeeded" {
		t.Errorf("got expectedStages %+v", spec.ExpectedStages)
	}
	if spec.ExpectedJobs["Build.x"] != "Succeeded" {
		t.Errorf("got expectedJobs %+v", spec.ExpectedJobs)
	}
	if spec.ExpectedSteps["Build.x.a"] != "Succeeded" {
		t.Errorf("got expectedSteps %+v", spec.ExpectedSteps)
	}
	if spec.ExpectedVars["greeting"] != "hello" {
		t.Errorf("got expectedVariables %+v", spec.ExpectedVars)
	}
}

func TestLoadSpecMissingFile(t *testing.T) {
	if _, err := LoadSpec(filepath.Join(t.TempDir(), "missing.test.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
