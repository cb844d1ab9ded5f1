package graph

import (
	"reflect"
	"testing"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

func TestBuildStageGraphLevels(t *testing.T) {
	doc := &pipeline.Document{Stages: []pipeline.Stage{
		{Stage: "Build", Jobs: []pipeline.Job{{Job: "x"}}},
		{Stage: "UnitTest", DependsOn: "Build", Jobs: []pipeline.Job{{Job: "x"}}},
		{Stage: "IntegrationTest", DependsOn: "Build", Jobs: []pipeline.Job{{Job: "x"}}},
		{Stage: "Deploy", DependsOn: []interface{}{"UnitTest", "IntegrationTest"}, Jobs: []pipeline.Job{{Job: "x"}}},
	}}
	pipeline.ResolveStageDeps(doc)
	g, err := BuildStageGraph(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	levels := g.ParallelStages()
	want := [][]string{{"Build"}, {"UnitTest", "IntegrationTest"}, {"Deploy"}}
	if !reflect.DeepEqual(levels, want) {
		t.Fatalf("got %v, want %v", levels, want)
	}
}

func TestBuildStageGraphUnknownDependency(t *testing.T) {
	doc := &pipeline.Document{Stages: []pipeline.Stage{
		{Stage: "Deploy", DependsOn: "Nope", Jobs: []pipeline.Job{{Job: "x"}}},
	}}
	pipeline.ResolveStageDeps(doc)
	_, err := BuildStageGraph(doc)
	if err == nil {
		t.Fatal("expected unknown dependency error")
	}
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != ErrUnknownDependency {
		t.Fatalf("got %#v, want ErrUnknownDependency", err)
	}
}

func TestBuildStageGraphCycle(t *testing.T) {
	doc := &pipeline.Document{Stages: []pipeline.Stage{
		{Stage: "A", DependsOn: "B", Jobs: []pipeline.Job{{Job: "x"}}},
		{Stage: "B", DependsOn: "A", Jobs: []pipeline.Job{{Job: "x"}}},
	}}
	pipeline.ResolveStageDeps(doc)
	_, err := BuildStageGraph(doc)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != ErrCycle {
		t.Fatalf("got %#v, want ErrCycle", err)
	}
}

func TestTopologicalOrderRespectsDeps(t *testing.T) {
	doc := &pipeline.Document{Stages: []pipeline.Stage{
		{Stage: "Build", Jobs: []pipeline.Job{{Job: "x"}}},
		{Stage: "Test", DependsOn: "Build", Jobs: []pipeline.Job{{Job: "x"}}},
	}}
	pipeline.ResolveStageDeps(doc)
	g, err := BuildStageGraph(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := g.TopologicalOrder()
	if !reflect.DeepEqual(order, []string{"Build", "Test"}) {
		t.Fatalf("got %v, want [Build Test]", order)
	}
}
