package testharness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/azlocal/pipeline/pkg/executor"
	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/template"
	"github.com/azlocal/pipeline/pkg/value"
)

// Runner discovers and executes scenario tests for pipeline definitions.
type Runner struct {
	Timeout time.Duration // per-scenario timeout, zero means none
}

// ScenarioInfo describes a discovered *.test.yml file and the pipeline
// YAML it applies to.
type ScenarioInfo struct {
	Name         string // scenario file base name without ".test.yml", e.g. "deploy"
	PipelinePath string
	TestPath     string
}

// DiscoverScenarios walks root for "*.test.yml" files and pairs each
// with its sibling pipeline definition, named by stripping the
// ".test.yml" suffix and trying ".yml" then ".yaml".
func DiscoverScenarios(root string) ([]ScenarioInfo, error) {
	var scenarios []ScenarioInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".test.yml") {
			return nil
		}
		base := strings.TrimSuffix(path, ".test.yml")
		pipelinePath := base + ".yml"
		if _, statErr := os.Stat(pipelinePath); statErr != nil {
			pipelinePath = base + ".yaml"
			if _, statErr := os.Stat(pipelinePath); statErr != nil {
				return nil // no matching pipeline file, not a scenario
			}
		}
		scenarios = append(scenarios, ScenarioInfo{
			Name:         strings.TrimSuffix(filepath.Base(path), ".test.yml"),
			PipelinePath: pipelinePath,
			TestPath:     path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios: %w", err)
	}
	return scenarios, nil
}

// RunAll discovers and executes every scenario under root.
func (r *Runner) RunAll(root string, failFast bool) (*Output, error) {
	scenarios, err := DiscoverScenarios(root)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	for _, s := range scenarios {
		result := r.runScenario(s)
		out.Scenarios = append(out.Scenarios, result)

		switch result.Status {
		case "passed":
			out.Summary.Passed++
		case "failed":
			out.Summary.Failed++
		case "error":
			out.Summary.Errors++
		}
		out.Summary.Total++

		if failFast && result.Status != "passed" {
			break
		}
	}
	return out, nil
}

// RunScenario executes the single scenario named by its *.test.yml
// base name (without the .test.yml suffix), discovered under root.
func (r *Runner) RunScenario(root, name string) (*Result, error) {
	scenarios, err := DiscoverScenarios(root)
	if err != nil {
		return nil, err
	}
	for _, s := range scenarios {
		if s.Name == name {
			result := r.runScenario(s)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found under %s", name, root)
}

func (r *Runner) runScenario(info ScenarioInfo) Result {
	start := time.Now()
	result := Result{
		ScenarioName: info.Name,
		ScenarioPath: info.TestPath,
	}

	spec, err := LoadSpec(info.TestPath)
	if err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("load scenario: %v", err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}
	if spec.Name != "" {
		result.ScenarioName = spec.Name
	}

	execResult, pipelineName, err := r.execute(info.PipelinePath, spec)
	if err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("run pipeline: %v", err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}
	result.PipelineName = pipelineName

	result.Assertions = Evaluate(spec, execResult)
	if HasFailures(result.Assertions) {
		result.Status = "failed"
	} else {
		result.Status = "passed"
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (r *Runner) execute(pipelinePath string, spec *Spec) (*pipeline.ExecutionResult, string, error) {
	repoRoot := filepath.Dir(pipelinePath)
	eng := template.NewEngine(repoRoot, nil)

	baseCtx := &expression.Context{
		Variables:    value.NewObject(),
		Parameters:   value.NewObject(),
		Pipeline:     value.NewObject(),
		Stage:        value.Null,
		Job:          value.Null,
		Steps:        value.NewObject(),
		Dependencies: value.NewObject(),
		Env:          value.NewObject(),
		Resources:    value.NewObject(),
	}

	doc, err := eng.ResolveDocument(filepath.Base(pipelinePath), spec.Parameters, baseCtx)
	if err != nil {
		return nil, "", fmt.Errorf("resolve document: %w", err)
	}

	cfg := executor.Config{
		WorkingDir:        repoRoot,
		MaxParallelStages: 1,
		MaxParallelJobs:   1,
		Variables:         spec.Variables,
		Parameters:        spec.Parameters,
	}

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	result, err := executor.Run(ctx, doc, cfg)
	if err != nil {
		return nil, doc.Name, fmt.Errorf("execute: %w", err)
	}
	return result, doc.Name, nil
}
