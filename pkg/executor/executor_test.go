package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

func runTestConfig() Config {
	return Config{WorkingDir: ".", MaxParallelStages: 2, MaxParallelJobs: 2, DefaultStepTimeoutMinutes: 5}
}

func TestRunSingleStageSucceeds(t *testing.T) {
	doc := &pipeline.Document{
		Name: "demo",
		Stages: []pipeline.Stage{
			{Stage: "Build", Jobs: []pipeline.Job{
				{Job: "x", Steps: []pipeline.Step{{Name: "a", Script: "echo hi"}}},
			}},
		},
	}

	var events []Event
	cfg := runTestConfig()
	cfg.Sink = func(e Event) { events = append(events, e) }

	result, err := Run(context.Background(), doc, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("got success=false, stages=%+v", result.Stages)
	}
	if len(result.Stages) != 1 || result.Stages[0].Status != pipeline.StatusSucceeded {
		t.Fatalf("got stages %+v", result.Stages)
	}

	sawPipelineStarted, sawPipelineCompleted := false, false
	for _, e := range events {
		switch e.Kind {
		case EventPipelineStarted:
			sawPipelineStarted = true
		case EventPipelineCompleted:
			sawPipelineCompleted = true
		}
	}
	if !sawPipelineStarted || !sawPipelineCompleted {
		t.Fatalf("missing pipeline lifecycle events: %+v", events)
	}
}

func TestRunDependentStageSkipsAfterFailedDependency(t *testing.T) {
	doc := &pipeline.Document{
		Name: "demo",
		Stages: []pipeline.Stage{
			{Stage: "Build", Jobs: []pipeline.Job{
				{Job: "x", Steps: []pipeline.Step{{Name: "a", Script: "exit 1"}}},
			}},
			{Stage: "Deploy", DependsOn: "Build", Jobs: []pipeline.Job{
				{Job: "y", Steps: []pipeline.Step{{Name: "b", Script: "echo should not run"}}},
			}},
		},
	}

	result, err := Run(context.Background(), doc, runTestConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("expected overall failure")
	}

	var deploy *pipeline.StageResult
	for i := range result.Stages {
		if result.Stages[i].Name == "Deploy" {
			deploy = &result.Stages[i]
		}
	}
	if deploy == nil {
		t.Fatal("missing Deploy stage result")
	}
	if deploy.Status != pipeline.StatusSkipped {
		t.Fatalf("got Deploy status %v, want Skipped", deploy.Status)
	}
}

func TestRunNormalizesBareStepsDocument(t *testing.T) {
	doc := &pipeline.Document{
		Steps: []pipeline.Step{{Name: "only", Script: "echo hi"}},
	}

	result, err := Run(context.Background(), doc, runTestConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("got success=false: %+v", result.Stages)
	}
	if len(result.Stages) != 1 || len(result.Stages[0].Jobs) != 1 {
		t.Fatalf("got stages %+v", result.Stages)
	}
}

func TestRunVariableSetInOneStepVisibleToNext(t *testing.T) {
	doc := &pipeline.Document{
		Stages: []pipeline.Stage{
			{Stage: "Build", Jobs: []pipeline.Job{
				{Job: "x", Steps: []pipeline.Step{
					{Name: "set", Script: "echo '##vso[task.setvariable variable=greeting]hello'"},
					{Name: "use", Script: "echo $(greeting)"},
				}},
			}},
		},
	}

	result, err := Run(context.Background(), doc, runTestConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	step1 := result.Stages[0].Jobs[0].Steps[1]
	if !strings.Contains(step1.Output, "hello") {
		t.Fatalf("expected output to contain the variable value %q, got %+v", "hello", step1)
	}
}
