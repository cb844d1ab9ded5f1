package testharness

import (
	"fmt"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

// Evaluate checks a scenario's expectations against an observed
// ExecutionResult and returns one AssertionResult per expectation.
func Evaluate(spec *Spec, result *pipeline.ExecutionResult) []AssertionResult {
	var out []AssertionResult

	if spec.ExpectedSuccess != nil {
		out = append(out, assertBool("success", "", *spec.ExpectedSuccess, result.Success))
	}
	for name, want := range spec.ExpectedStages {
		got, found := findStage(result, name)
		out = append(out, assertStatus("stage", name, want, got, found))
	}
	for key, want := range spec.ExpectedJobs {
		got, found := findJob(result, key)
		out = append(out, assertStatus("job", key, want, got, found))
	}
	for key, want := range spec.ExpectedSteps {
		got, found := findStep(result, key)
		out = append(out, assertStatus("step", key, want, got, found))
	}
	for name, want := range spec.ExpectedVars {
		got, found := result.Variables[name]
		out = append(out, AssertionResult{
			Type:     "variable",
			Key:      name,
			Expected: want,
			Actual:   got,
			Passed:   found && got == want,
			Message:  varMessage(name, want, got, found),
		})
	}
	return out
}

func assertBool(kind, key string, want, got bool) AssertionResult {
	return AssertionResult{
		Type:     kind,
		Key:      key,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Passed:   want == got,
		Message:  fmt.Sprintf("%s: expected %v, got %v", kind, want, got),
	}
}

func assertStatus(kind, key, want, got string, found bool) AssertionResult {
	passed := found && got == want
	msg := fmt.Sprintf("%s %q: expected status %q, got %q", kind, key, want, got)
	if !found {
		msg = fmt.Sprintf("%s %q: not found in run result", kind, key)
	}
	return AssertionResult{Type: kind, Key: key, Expected: want, Actual: got, Passed: passed, Message: msg}
}

func varMessage(name, want, got string, found bool) string {
	if !found {
		return fmt.Sprintf("variable %q: not set in final state", name)
	}
	return fmt.Sprintf("variable %q: expected %q, got %q", name, want, got)
}

func findStage(result *pipeline.ExecutionResult, name string) (string, bool) {
	for _, s := range result.Stages {
		if s.Name == name {
			return string(s.Status), true
		}
	}
	return "", false
}

func findJob(result *pipeline.ExecutionResult, key string) (string, bool) {
	stageName, jobName, ok := splitDotted(key)
	if !ok {
		return "", false
	}
	for _, s := range result.Stages {
		if s.Name != stageName {
			continue
		}
		for _, j := range s.Jobs {
			if j.Name == jobName {
				return string(j.Status), true
			}
		}
	}
	return "", false
}

func findStep(result *pipeline.ExecutionResult, key string) (string, bool) {
	stageName, rest, ok := splitDotted(key)
	if !ok {
		return "", false
	}
	jobName, stepName, ok := splitDotted(rest)
	if !ok {
		return "", false
	}
	for _, s := range result.Stages {
		if s.Name != stageName {
			continue
		}
		for _, j := range s.Jobs {
			if j.Name != jobName {
				continue
			}
			for _, st := range j.Steps {
				if st.Name == stepName {
					return string(st.Status), true
				}
			}
		}
	}
	return "", false
}

// splitDotted splits "a.b[.c...]" into its head and remaining tail.
func splitDotted(key string) (head, rest string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
