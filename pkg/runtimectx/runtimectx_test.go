package runtimectx

import (
	"testing"

	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/value"
)

func TestPushScopeLiteral(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "env", Value: "prod"}}, value.Null)
	v, ok := c.Variables().Get("env")
	if !ok || v.StringValue() != "prod" {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestPushScopeCompileTimeExpression(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "x", Value: "${{ 1 }}"}}, value.Null)
	v, _ := c.Variables().Get("x")
	c.PushScope([]pipeline.Variable{{Name: "y", Value: "${{ variables.x }}"}}, value.Null)
	y, _ := c.Variables().Get("y")
	if v.NumberValue() != 1 || y.NumberValue() != 1 {
		t.Fatalf("got x=%v y=%v", v, y)
	}
}

func TestPushScopeRuntimeExpression(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "x", Value: "$[ eq(1, 1) ]"}}, value.Null)
	v, _ := c.Variables().Get("x")
	if !v.BoolValue() {
		t.Fatalf("got %v, want true", v)
	}
}

func TestPushScopeEvalFailureFallsBackToLiteral(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "x", Value: "${{ 1 + }}"}}, value.Null)
	v, _ := c.Variables().Get("x")
	if v.StringValue() != "${{ 1 + }}" {
		t.Fatalf("got %q, want raw string fallback", v.StringValue())
	}
}

func TestPopScopeRestoresParent(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "a", Value: "1"}}, value.Null)
	c.PushScope([]pipeline.Variable{{Name: "b", Value: "2"}}, value.Null)
	c.PopScope()
	if _, ok := c.Variables().Get("b"); ok {
		t.Fatal("expected b to be gone after pop")
	}
	if v, ok := c.Variables().Get("a"); !ok || v.StringValue() != "1" {
		t.Fatalf("expected a to survive pop, got %v", v)
	}
}

func TestEvalConditionEmptyIsTrue(t *testing.T) {
	c := New("demo", "/work", nil)
	ok, err := c.EvalCondition("", value.Null)
	if err != nil || !ok {
		t.Fatalf("got %v, %v, want true, nil", ok, err)
	}
}

func TestEvalConditionAlwaysLiteral(t *testing.T) {
	c := New("demo", "/work", nil)
	ok, err := c.EvalCondition("always()", value.Null)
	if err != nil || !ok {
		t.Fatalf("got %v, %v", ok, err)
	}
}

func TestRecordStepAndDependencyLookup(t *testing.T) {
	c := New("demo", "/work", nil)
	c.RecordStep("build", pipeline.StatusSucceeded, map[string]string{"version": "1.0.0"})
	ok, err := c.EvalCondition("eq(steps.build.outputs.version, '1.0.0')", value.Null)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected condition referencing recorded step output to be true")
	}
}

func TestSubstituteMacrosResolvesVariable(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "version", Value: "1.0.0"}}, value.Null)
	got := c.SubstituteMacros("deploy $(version)", value.Null)
	if got != "deploy 1.0.0" {
		t.Fatalf("got %q", got)
	}
}

func TestVariablesSnapshot(t *testing.T) {
	c := New("demo", "/work", nil)
	c.PushScope([]pipeline.Variable{{Name: "a", Value: "1"}, {Name: "b", Value: "two"}}, value.Null)
	snap := c.VariablesSnapshot()
	if snap["a"] != "1" || snap["b"] != "two" {
		t.Fatalf("got %v", snap)
	}
}
