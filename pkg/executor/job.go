package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/azlocal/pipeline/pkg/graph"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/runners"
	"github.com/azlocal/pipeline/pkg/runtimectx"
	"github.com/azlocal/pipeline/pkg/secrets"
	"github.com/azlocal/pipeline/pkg/task"
	"github.com/azlocal/pipeline/pkg/value"
)

// runJobLevel executes every job in one parallel level of a stage's job
// graph concurrently, bounded by cfg.MaxParallelJobs.
func runJobLevel(ctx context.Context, rctx *runtimectx.Context, emitter *Emitter, stage *pipeline.Stage, names []string, cfg Config, redactor *secrets.Redactor, jobCache *task.Cache) ([]pipeline.JobResult, error) {
	results := make([]pipeline.JobResult, len(names))
	sem := newSemaphore(cfg.MaxParallelJobs)
	g, gctx := errgroup.WithContext(ctx)

	byName := make(map[string]*pipeline.Job, len(stage.Jobs))
	for i := range stage.Jobs {
		byName[stage.Jobs[i].Name()] = &stage.Jobs[i]
	}

	for i, name := range names {
		i, name := i, name
		job := byName[name]
		g.Go(func() error {
			sem.acquire()
			defer sem.release()
			results[i] = runJob(gctx, rctx, emitter, stage.Stage, *job, cfg, redactor, jobCache)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runJob runs every matrix/parallel instance of one job declaration
// concurrently, bounded by the strategy's maxParallel (or
// cfg.MaxParallelJobs when that is unset), and folds the instance
// results into a single JobResult recorded against the job's base
// name.
func runJob(ctx context.Context, rctx *runtimectx.Context, emitter *Emitter, stageName string, job pipeline.Job, cfg Config, redactor *secrets.Redactor, jobCache *task.Cache) pipeline.JobResult {
	name := job.Name()
	jctx := rctx.Fork("", name)
	start := time.Now()

	depKey := dependencyKey(stageName, name)
	if skip, reason := checkJobDependencies(jctx, stageName, job); skip {
		emitter.JobSkipped(stageName, name, reason)
		rctx.RecordDependency(depKey, pipeline.StatusSkipped, nil)
		return pipeline.JobResult{Name: name, Status: pipeline.StatusSkipped, Duration: time.Since(start).Seconds()}
	}

	ok, err := jctx.EvalCondition(job.Condition, value.Null)
	if err != nil {
		emitter.Error(fmt.Sprintf("job %q condition: %v", name, err), stageName, name, -1)
		rctx.RecordDependency(depKey, pipeline.StatusFailed, nil)
		return pipeline.JobResult{Name: name, Status: pipeline.StatusFailed, Duration: time.Since(start).Seconds()}
	}
	if !ok {
		emitter.JobSkipped(stageName, name, "condition false")
		rctx.RecordDependency(depKey, pipeline.StatusSkipped, nil)
		return pipeline.JobResult{Name: name, Status: pipeline.StatusSkipped, Duration: time.Since(start).Seconds()}
	}

	instances := graph.ExpandStrategy(job.Strategy)
	if len(instances) == 0 {
		emitter.JobSkipped(stageName, name, "expression-form matrix is not supported by the local executor")
		rctx.RecordDependency(depKey, pipeline.StatusSkipped, nil)
		return pipeline.JobResult{Name: name, Status: pipeline.StatusSkipped, Duration: time.Since(start).Seconds()}
	}

	maxParallel := cfg.MaxParallelJobs
	if job.Strategy != nil && job.Strategy.MaxParallel > 0 {
		maxParallel = job.Strategy.MaxParallel
	}

	var (
		instanceResults = make([]pipeline.JobResult, len(instances))
		sem             = newSemaphore(maxParallel)
		g, gctx         = errgroup.WithContext(ctx)
	)
	for i, inst := range instances {
		i, inst := i, inst
		g.Go(func() error {
			sem.acquire()
			defer sem.release()
			instanceResults[i] = runJobInstance(gctx, rctx, emitter, stageName, job, inst, cfg, redactor, jobCache)
			return nil
		})
	}
	_ = g.Wait()

	agg := aggregateJobInstances(instanceResults)
	agg.Name = name
	agg.Duration = time.Since(start).Seconds()

	outputs := map[string]string{}
	for _, r := range instanceResults {
		for _, s := range r.Steps {
			for k, v := range s.Outputs {
				outputs[k] = v
			}
		}
	}
	rctx.RecordDependency(depKey, agg.Status, outputs)
	emitter.JobCompleted(stageName, name, "", string(agg.Status), agg.Duration)
	return agg
}

// runJobInstance runs one matrix/parallel expansion of a job: its own
// variable scope, container/service lifecycle, and sequential steps.
func runJobInstance(ctx context.Context, parent *runtimectx.Context, emitter *Emitter, stageName string, job pipeline.Job, inst graph.JobInstance, cfg Config, redactor *secrets.Redactor, jobCache *task.Cache) pipeline.JobResult {
	name := job.Name()
	jctx := parent.Fork("", name)
	jctx.PushScope(job.Variables, value.Null)
	defer jctx.PopScope()

	for k, v := range inst.Variables {
		jctx.SetVariable(k, value.String(v))
	}

	start := time.Now()
	totalSteps := len(job.Steps)
	emitter.JobStarted(stageName, name, job.DisplayName, inst.MatrixInstance, totalSteps)

	var container *runners.Container
	if cfg.EnableContainers {
		if spec, ok := parseContainerSpec(name, job.Container); ok {
			c, err := runners.Create(ctx, spec, cfg.WorkingDir)
			if err != nil {
				emitter.Error(fmt.Sprintf("job %q container: %v", name, err), stageName, name, -1)
				return pipeline.JobResult{Name: name, MatrixInstance: inst.MatrixInstance, Status: pipeline.StatusFailed, Duration: time.Since(start).Seconds()}
			}
			if err := c.Start(ctx); err != nil {
				emitter.Error(fmt.Sprintf("job %q container start: %v", name, err), stageName, name, -1)
				c.Stop(ctx)
				return pipeline.JobResult{Name: name, MatrixInstance: inst.MatrixInstance, Status: pipeline.StatusFailed, Duration: time.Since(start).Seconds()}
			}
			container = c
			defer c.Stop(ctx)
		}
		for svcName, raw := range job.Services {
			spec, ok := parseContainerSpec(svcName, raw)
			if !ok {
				continue
			}
			if err := runners.StartService(ctx, spec); err != nil {
				emitter.Error(fmt.Sprintf("job %q service %q: %v", name, svcName, err), stageName, name, -1)
				continue
			}
			defer runners.StopService(ctx, spec.Name)
		}
	}

	sc := stepContext{
		stage:     stageName,
		job:       name,
		env:       cfg.Variables,
		container: container,
		taskCache: jobCache,
		redactor:  redactor,
		cfg:       cfg,
	}

	steps := make([]pipeline.StepResult, totalSteps)
	shouldRun := true
	jobStatus := pipeline.StatusSucceeded
	for i, step := range job.Steps {
		sc.index = i
		res := runStep(ctx, jctx, emitter, sc, step, shouldRun)
		steps[i] = res
		jctx.RecordStep(stepRecordName(step), res.Status, res.Outputs)

		if res.Status == pipeline.StatusFailed {
			if continueOnError(jctx, step.ContinueOnError) {
				shouldRun = true
				if jobStatus != pipeline.StatusFailed {
					jobStatus = pipeline.StatusSucceededWithIssues
				}
			} else {
				shouldRun = false
				jobStatus = pipeline.StatusFailed
			}
		} else if res.Status == pipeline.StatusSucceededWithIssues && jobStatus != pipeline.StatusFailed {
			jobStatus = pipeline.StatusSucceededWithIssues
		}
	}

	result := pipeline.JobResult{
		Name:           name,
		MatrixInstance: inst.MatrixInstance,
		Status:         jobStatus,
		Steps:          steps,
		Duration:       time.Since(start).Seconds(),
	}
	return result
}

func stepRecordName(step pipeline.Step) string {
	if step.Name != "" {
		return step.Name
	}
	return step.DisplayName
}

// aggregateJobInstances folds a matrix job's per-instance results into
// one JobResult: Failed if any instance failed, SucceededWithIssues if
// any instance did but none failed outright, else Succeeded. The
// returned result carries every instance's steps, concatenated in
// instance order. A single instance is returned unchanged.
func aggregateJobInstances(instances []pipeline.JobResult) pipeline.JobResult {
	if len(instances) == 1 {
		return instances[0]
	}
	status := pipeline.StatusSucceeded
	var steps []pipeline.StepResult
	for _, r := range instances {
		switch r.Status {
		case pipeline.StatusFailed:
			status = pipeline.StatusFailed
		case pipeline.StatusSucceededWithIssues:
			if status != pipeline.StatusFailed {
				status = pipeline.StatusSucceededWithIssues
			}
		}
		steps = append(steps, r.Steps...)
	}
	return pipeline.JobResult{Status: status, Steps: steps}
}

// checkJobDependencies reports whether a job must be skipped because a
// dependency did not succeed, per §4.4's dependency-skip rule.
func checkJobDependencies(rctx *runtimectx.Context, stageName string, job pipeline.Job) (bool, string) {
	deps := job.Deps()
	for _, dep := range deps.Names {
		rec, ok := rctx.GetDependency(dependencyKey(stageName, dep))
		if !ok {
			continue
		}
		if rec.Result != pipeline.StatusSucceeded && rec.Result != pipeline.StatusSucceededWithIssues {
			return true, fmt.Sprintf("dependency %q did not succeed", dep)
		}
	}
	return false, ""
}

func dependencyKey(stageName, name string) string {
	if stageName == "" {
		return name
	}
	return stageName + "." + name
}

// parseContainerSpec interprets a job/service container field, which
// may be a bare image string or a map with image/env/ports/options/
// volumes/pullPolicy keys.
func parseContainerSpec(name string, raw interface{}) (runners.ContainerSpec, bool) {
	switch v := raw.(type) {
	case nil:
		return runners.ContainerSpec{}, false
	case string:
		if v == "" {
			return runners.ContainerSpec{}, false
		}
		return runners.ContainerSpec{Name: sanitizeContainerName(name), Image: v, PullPolicy: "IfNotPresent"}, true
	case map[string]interface{}:
		spec := runners.ContainerSpec{Name: sanitizeContainerName(name), PullPolicy: "IfNotPresent"}
		if img, ok := v["image"].(string); ok {
			spec.Image = img
		}
		if spec.Image == "" {
			return runners.ContainerSpec{}, false
		}
		if policy, ok := v["pullPolicy"].(string); ok && policy != "" {
			spec.PullPolicy = policy
		}
		if env, ok := v["env"].(map[string]interface{}); ok {
			spec.Env = make(map[string]string, len(env))
			for k, val := range env {
				spec.Env[k] = fmt.Sprintf("%v", val)
			}
		}
		if ports, ok := v["ports"].([]interface{}); ok {
			for _, p := range ports {
				spec.Ports = append(spec.Ports, fmt.Sprintf("%v", p))
			}
		}
		if opts, ok := v["options"].(string); ok && opts != "" {
			spec.Options = append(spec.Options, splitFields(opts)...)
		}
		if vols, ok := v["volumes"].([]interface{}); ok {
			spec.Volumes = make(map[string]string, len(vols))
			for _, entry := range vols {
				s, ok := entry.(string)
				if !ok {
					continue
				}
				if host, cont, found := splitVolume(s); found {
					spec.Volumes[host] = cont
				}
			}
		}
		return spec, true
	default:
		return runners.ContainerSpec{}, false
	}
}

func sanitizeContainerName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return "pipeline-" + string(out)
}

func splitFields(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func splitVolume(s string) (host, cont string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
