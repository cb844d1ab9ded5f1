package pipeline

import "testing"

func TestValidateDomainEmptyPipeline(t *testing.T) {
	doc := &Document{}
	errs := ValidateDomain(doc)
	if len(errs) != 1 || errs[0].Message == "" {
		t.Fatalf("got %+v, want single 'must have stages...' error", errs)
	}
}

func TestValidateDomainDuplicateStageID(t *testing.T) {
	doc := &Document{Stages: []Stage{
		{Stage: "Build", Jobs: []Job{{Job: "a"}}},
		{Stage: "Build", Jobs: []Job{{Job: "b"}}},
	}}
	errs := ValidateDomain(doc)
	found := false
	for _, e := range errs {
		if e.Message == `duplicate stage id "Build"` {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %+v, want duplicate stage id error", errs)
	}
}

func TestValidateDomainUnknownStageDependency(t *testing.T) {
	doc := &Document{Stages: []Stage{
		{Stage: "Deploy", DependsOn: "Nonexistent", Jobs: []Job{{Job: "a"}}},
	}}
	errs := ValidateDomain(doc)
	found := false
	for _, e := range errs {
		if e.Message == `unknown stage dependency "Nonexistent"` {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %+v, want unknown dependency error", errs)
	}
}

func TestValidateDomainStageCycle(t *testing.T) {
	doc := &Document{Stages: []Stage{
		{Stage: "A", DependsOn: "B", Jobs: []Job{{Job: "a"}}},
		{Stage: "B", DependsOn: "A", Jobs: []Job{{Job: "b"}}},
	}}
	errs := ValidateDomain(doc)
	found := false
	for _, e := range errs {
		if e.Message == "dependency cycle detected among stages" {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %+v, want cycle error", errs)
	}
}

func TestValidateSchedulesRejectsBadCron(t *testing.T) {
	doc := &Document{
		Stages:    []Stage{{Stage: "a", Jobs: []Job{{Job: "x"}}}},
		Schedules: []Schedule{{Cron: "not a cron expression"}},
	}
	errs := ValidateSchedules(doc)
	if len(errs) != 1 {
		t.Fatalf("got %+v, want one cron validation error", errs)
	}
}

func TestValidateSchedulesAcceptsGoodCron(t *testing.T) {
	doc := &Document{Schedules: []Schedule{{Cron: "0 0 * * *"}}}
	if errs := ValidateSchedules(doc); len(errs) != 0 {
		t.Fatalf("got %+v, want no errors for valid cron", errs)
	}
}
