package executor

import (
	"testing"

	"github.com/azlocal/pipeline/pkg/secrets"
)

func TestEmitterRedactsStepOutput(t *testing.T) {
	var got []Event
	redactor := secrets.NewRedactor()
	redactor.Register("s3cr3t")
	e := NewEmitter(func(ev Event) { got = append(got, ev) }, redactor)

	e.StepOutput("Build", "x", "Run", 0, "token is s3cr3t", false)

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Output != "token is ***" {
		t.Fatalf("got %q, want redacted output", got[0].Output)
	}
}

func TestEmitterVariableSetBlanksSecretValue(t *testing.T) {
	var got []Event
	e := NewEmitter(func(ev Event) { got = append(got, ev) }, nil)

	e.VariableSet("Build", "x", "password", "hunter2", false, true)

	if got[0].VariableValue != "" {
		t.Fatalf("got %q, want blanked value for secret", got[0].VariableValue)
	}
	if !got[0].IsSecret {
		t.Fatal("expected IsSecret true")
	}
}

func TestEmitterNilSinkDiscardsEvents(t *testing.T) {
	e := NewEmitter(nil, nil)
	e.PipelineStarted("p", 1) // must not panic
}

func TestEmitterPipelineLifecycle(t *testing.T) {
	var kinds []EventKind
	e := NewEmitter(func(ev Event) { kinds = append(kinds, ev.Kind) }, nil)

	e.PipelineStarted("p", 2)
	e.StageStarted("Build", "Build", 1)
	e.StageCompleted("Build", "Succeeded", 1.5)
	e.PipelineCompleted("p", true, 3.0)

	want := []EventKind{EventPipelineStarted, EventStageStarted, EventStageCompleted, EventPipelineCompleted}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}
