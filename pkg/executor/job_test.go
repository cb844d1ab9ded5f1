package executor

import (
	"context"
	"testing"

	"github.com/azlocal/pipeline/pkg/graph"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/task"
)

func jobInstanceNone() graph.JobInstance { return graph.JobInstance{} }

func testConfig() Config {
	return Config{WorkingDir: ".", MaxParallelJobs: 4, DefaultStepTimeoutMinutes: 5}
}

func TestRunJobInstanceRunsStepsInOrderAndSkipsAfterFailure(t *testing.T) {
	rctx := newTestRctx()
	emitter := NewEmitter(nil, nil)
	job := pipeline.Job{Job: "x", Steps: []pipeline.Step{
		{Name: "a", Script: "exit 1"},
		{Name: "b", Script: "echo should be skipped"},
		{Name: "c", Script: "echo cleanup", Condition: "always()"},
	}}

	res := runJobInstance(context.Background(), rctx, emitter, "Build", job, jobInstanceNone(), testConfig(), nil, task.NewCache(t.TempDir()))

	if res.Steps[0].Status != pipeline.StatusFailed {
		t.Fatalf("step a: got %v, want Failed", res.Steps[0].Status)
	}
	if res.Steps[1].Status != pipeline.StatusSkipped {
		t.Fatalf("step b: got %v, want Skipped", res.Steps[1].Status)
	}
	if res.Steps[2].Status != pipeline.StatusSucceeded {
		t.Fatalf("step c: got %v, want Succeeded (always())", res.Steps[2].Status)
	}
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("job status: got %v, want Failed", res.Status)
	}
}

func TestRunJobInstanceContinueOnErrorDowngradesStatus(t *testing.T) {
	rctx := newTestRctx()
	emitter := NewEmitter(nil, nil)
	job := pipeline.Job{Job: "x", Steps: []pipeline.Step{
		{Name: "a", Script: "exit 1", ContinueOnError: true},
		{Name: "b", Script: "echo still runs"},
	}}

	res := runJobInstance(context.Background(), rctx, emitter, "Build", job, jobInstanceNone(), testConfig(), nil, task.NewCache(t.TempDir()))

	if res.Steps[1].Status != pipeline.StatusSucceeded {
		t.Fatalf("step b: got %v, want Succeeded (should_run preserved)", res.Steps[1].Status)
	}
	if res.Status != pipeline.StatusSucceededWithIssues {
		t.Fatalf("job status: got %v, want SucceededWithIssues", res.Status)
	}
}

func TestCheckJobDependenciesSkipsOnFailedDependency(t *testing.T) {
	rctx := newTestRctx()
	rctx.RecordDependency("Build.build", pipeline.StatusFailed, nil)
	job := pipeline.Job{Job: "deploy", DependsOn: "build"}
	job2 := []pipeline.Job{{Job: "build"}, job}
	pipeline.ResolveJobDeps(&pipeline.Stage{Stage: "Build", Jobs: job2})

	skip, reason := checkJobDependencies(rctx, "Build", job2[1])
	if !skip {
		t.Fatalf("expected skip, got reason %q", reason)
	}
}

func TestAggregateJobInstancesFailsIfAnyInstanceFails(t *testing.T) {
	instances := []pipeline.JobResult{
		{Status: pipeline.StatusSucceeded},
		{Status: pipeline.StatusFailed},
		{Status: pipeline.StatusSucceededWithIssues},
	}
	got := aggregateJobInstances(instances)
	if got.Status != pipeline.StatusFailed {
		t.Fatalf("got %v, want Failed", got.Status)
	}
}

func TestParseContainerSpecAcceptsBareImageString(t *testing.T) {
	spec, ok := parseContainerSpec("build", "golang:1.22")
	if !ok {
		t.Fatal("expected ok")
	}
	if spec.Image != "golang:1.22" {
		t.Fatalf("got image %q", spec.Image)
	}
	if spec.PullPolicy != "IfNotPresent" {
		t.Fatalf("got pull policy %q, want default", spec.PullPolicy)
	}
}

func TestParseContainerSpecAcceptsMapForm(t *testing.T) {
	raw := map[string]interface{}{
		"image":      "postgres:15",
		"pullPolicy": "Always",
		"env":        map[string]interface{}{"POSTGRES_PASSWORD": "secret"},
		"ports":      []interface{}{"5432:5432"},
	}
	spec, ok := parseContainerSpec("db", raw)
	if !ok {
		t.Fatal("expected ok")
	}
	if spec.Image != "postgres:15" || spec.PullPolicy != "Always" {
		t.Fatalf("got %+v", spec)
	}
	if spec.Env["POSTGRES_PASSWORD"] != "secret" {
		t.Fatalf("got env %v", spec.Env)
	}
	if len(spec.Ports) != 1 || spec.Ports[0] != "5432:5432" {
		t.Fatalf("got ports %v", spec.Ports)
	}
}

func TestParseContainerSpecRejectsMissingImage(t *testing.T) {
	if _, ok := parseContainerSpec("x", map[string]interface{}{}); ok {
		t.Fatal("expected not ok for missing image")
	}
	if _, ok := parseContainerSpec("x", nil); ok {
		t.Fatal("expected not ok for nil")
	}
}
