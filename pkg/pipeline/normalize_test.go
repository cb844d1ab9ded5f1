package pipeline

import "testing"

func TestNormalizeBareSteps(t *testing.T) {
	doc := &Document{Steps: []Step{{Script: "echo hi"}}}
	Normalize(doc)
	if len(doc.Stages) != 1 || doc.Stages[0].Stage != defaultName {
		t.Fatalf("got %+v", doc.Stages)
	}
	if len(doc.Stages[0].Jobs) != 1 || doc.Stages[0].Jobs[0].Job != defaultName {
		t.Fatalf("got %+v", doc.Stages[0].Jobs)
	}
	if len(doc.Stages[0].Jobs[0].Steps) != 1 {
		t.Fatalf("expected steps preserved")
	}
}

func TestNormalizeBareJobs(t *testing.T) {
	doc := &Document{Jobs: []Job{{Job: "build"}}}
	Normalize(doc)
	if len(doc.Stages) != 1 || doc.Stages[0].Stage != defaultName {
		t.Fatalf("got %+v", doc.Stages)
	}
	if doc.Stages[0].Jobs[0].Job != "build" {
		t.Fatalf("got %+v", doc.Stages[0].Jobs)
	}
}

func TestNormalizeAlreadyStaged(t *testing.T) {
	doc := &Document{Stages: []Stage{{Stage: "a"}}}
	Normalize(doc)
	if len(doc.Stages) != 1 || doc.Stages[0].Stage != "a" {
		t.Fatalf("normalize should not touch an already-staged document")
	}
}

func TestClassifyDependsOnDefault(t *testing.T) {
	d := ClassifyDependsOn(nil, 1, []string{"a", "b"})
	if d.Kind != DependsOnDefault || len(d.Names) != 1 || d.Names[0] != "a" {
		t.Fatalf("got %+v, want Default depending on previous sibling", d)
	}
	d = ClassifyDependsOn(nil, 0, []string{"a"})
	if d.Kind != DependsOnNone {
		t.Fatalf("got %+v, want None for index 0", d)
	}
}

func TestClassifyDependsOnSingleAndMultiple(t *testing.T) {
	d := ClassifyDependsOn("build", 1, []string{"build", "test"})
	if d.Kind != DependsOnSingle || d.Names[0] != "build" {
		t.Fatalf("got %+v", d)
	}
	d = ClassifyDependsOn([]interface{}{"a", "b"}, 2, []string{"a", "b", "c"})
	if d.Kind != DependsOnMultiple || len(d.Names) != 2 {
		t.Fatalf("got %+v", d)
	}
}

func TestResolveStageDepsPopulatesDeps(t *testing.T) {
	doc := &Document{Stages: []Stage{
		{Stage: "Build"},
		{Stage: "Test"},
	}}
	ResolveStageDeps(doc)
	if doc.Stages[1].Deps().Kind != DependsOnDefault {
		t.Fatalf("got %+v, want Default dep on Build", doc.Stages[1].Deps())
	}
}
