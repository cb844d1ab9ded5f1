package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/azlocal/pipeline/pkg/graph"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/runtimectx"
	"github.com/azlocal/pipeline/pkg/secrets"
	"github.com/azlocal/pipeline/pkg/task"
	"github.com/azlocal/pipeline/pkg/value"
)

// Config controls one pipeline run: parallelism limits, default
// timeouts, working directory, and the seed variable/parameter values
// supplied from the CLI or a calling harness.
type Config struct {
	MaxParallelStages         int
	MaxParallelJobs           int
	DefaultStepTimeoutMinutes int
	TaskCacheDir              string
	EnableContainers          bool
	WorkingDir                string
	Variables                 map[string]string
	Parameters                map[string]interface{}
	Sink                      Sink
}

// withDefaults fills zero-valued fields with the executor's defaults.
func (c Config) withDefaults() Config {
	if c.MaxParallelStages <= 0 {
		c.MaxParallelStages = 1
	}
	if c.MaxParallelJobs <= 0 {
		c.MaxParallelJobs = 1
	}
	if c.DefaultStepTimeoutMinutes <= 0 {
		c.DefaultStepTimeoutMinutes = 60
	}
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	return c
}

// Run drives a fully template-resolved Document through its stage/job/
// step graph, dependency and condition checks included, emitting
// events to cfg.Sink as it goes. doc must already have had
// template.Engine.ResolveDocument applied — Run only deals with
// runtime-layer ($[ ]) expressions and $(name) macros.
func Run(ctx context.Context, doc *pipeline.Document, cfg Config) (*pipeline.ExecutionResult, error) {
	cfg = cfg.withDefaults()
	pipeline.Normalize(doc)
	pipeline.ResolveStageDeps(doc)

	redactor := secrets.NewRedactor()
	emitter := NewEmitter(cfg.Sink, redactor)

	params := paramsValue(cfg.Parameters)
	rctx := runtimectx.New(doc.Name, cfg.WorkingDir, envFromOS())
	rctx.PushScope(doc.Variables, params)
	defer rctx.PopScope()

	jobCache := task.NewCache(cfg.TaskCacheDir)

	stageGraph, err := graph.BuildStageGraph(doc)
	if err != nil {
		return nil, err
	}
	levels := stageGraph.ParallelStages()

	start := time.Now()
	emitter.PipelineStarted(doc.Name, len(doc.Stages))

	byName := make(map[string]*pipeline.Stage, len(doc.Stages))
	for i := range doc.Stages {
		byName[doc.Stages[i].Stage] = &doc.Stages[i]
	}

	result := &pipeline.ExecutionResult{Success: true}

	for _, level := range levels {
		stageResults := make([]pipeline.StageResult, len(level))
		sem := newSemaphore(cfg.MaxParallelStages)
		g, gctx := errgroup.WithContext(ctx)

		for i, name := range level {
			i, name := i, name
			stage := byName[name]
			g.Go(func() error {
				sem.acquire()
				defer sem.release()
				stageResults[i] = runStage(gctx, rctx, emitter, stage, cfg, redactor, jobCache)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i := range level {
			res := stageResults[i]
			result.Stages = append(result.Stages, res)
			if res.Status == pipeline.StatusFailed {
				result.Success = false
			}
		}
	}

	result.Duration = time.Since(start).Seconds()
	result.Variables = rctx.VariablesSnapshot()
	emitter.PipelineCompleted(doc.Name, result.Success, result.Duration)
	return result, nil
}

// runStage evaluates a stage's dependency/condition guards, pushes its
// variable scope, expands its job graph, and walks job levels.
func runStage(ctx context.Context, parent *runtimectx.Context, emitter *Emitter, stage *pipeline.Stage, cfg Config, redactor *secrets.Redactor, jobCache *task.Cache) pipeline.StageResult {
	start := time.Now()
	sctx := parent.Fork(stage.Stage, "")

	if skip, reason := checkStageDependencies(sctx, *stage); skip {
		emitter.StageSkipped(stage.Stage, reason)
		parent.RecordDependency(stage.Stage, pipeline.StatusSkipped, nil)
		return pipeline.StageResult{Name: stage.Stage, Status: pipeline.StatusSkipped, Duration: time.Since(start).Seconds()}
	}

	ok, err := sctx.EvalCondition(stage.Condition, value.Null)
	if err != nil {
		emitter.Error(fmt.Sprintf("stage %q condition: %v", stage.Stage, err), stage.Stage, "", -1)
		parent.RecordDependency(stage.Stage, pipeline.StatusFailed, nil)
		return pipeline.StageResult{Name: stage.Stage, Status: pipeline.StatusFailed, Duration: time.Since(start).Seconds()}
	}
	if !ok {
		emitter.StageSkipped(stage.Stage, "condition false")
		parent.RecordDependency(stage.Stage, pipeline.StatusSkipped, nil)
		return pipeline.StageResult{Name: stage.Stage, Status: pipeline.StatusSkipped, Duration: time.Since(start).Seconds()}
	}

	sctx.PushScope(stage.Variables, value.Null)
	defer sctx.PopScope()

	pipeline.ResolveJobDeps(stage)
	emitter.StageStarted(stage.Stage, stage.DisplayName, len(stage.Jobs))

	jobGraph, err := graph.BuildJobGraph(stage)
	if err != nil {
		emitter.Error(fmt.Sprintf("stage %q job graph: %v", stage.Stage, err), stage.Stage, "", -1)
		parent.RecordDependency(stage.Stage, pipeline.StatusFailed, nil)
		return pipeline.StageResult{Name: stage.Stage, Status: pipeline.StatusFailed, Duration: time.Since(start).Seconds()}
	}

	var jobs []pipeline.JobResult
	status := pipeline.StatusSucceeded
	for _, level := range jobGraph.ParallelJobs() {
		levelResults, err := runJobLevel(ctx, sctx, emitter, stage, level, cfg, redactor, jobCache)
		if err != nil {
			status = pipeline.StatusFailed
			break
		}
		for _, jr := range levelResults {
			jobs = append(jobs, jr)
			switch jr.Status {
			case pipeline.StatusFailed:
				status = pipeline.StatusFailed
			case pipeline.StatusSucceededWithIssues:
				if status != pipeline.StatusFailed {
					status = pipeline.StatusSucceededWithIssues
				}
			}
		}
	}

	res := pipeline.StageResult{Name: stage.Stage, Status: status, Jobs: jobs, Duration: time.Since(start).Seconds()}
	parent.RecordDependency(stage.Stage, status, nil)
	emitter.StageCompleted(stage.Stage, string(status), res.Duration)
	return res
}

// paramsValue converts a plain parameters map (as supplied via CLI
// flags or a calling harness) into the typed Value object expressions
// address as `parameters.<name>`.
func paramsValue(params map[string]interface{}) value.Value {
	if len(params) == 0 {
		return value.Null
	}
	obj := value.NewObject()
	for k, v := range params {
		obj.Set(k, value.FromInterface(v))
	}
	return obj
}

// envFromOS captures the calling process's environment as the seed
// `env.*` map available to expressions and step env construction.
func envFromOS() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

func checkStageDependencies(rctx *runtimectx.Context, stage pipeline.Stage) (bool, string) {
	deps := stage.Deps()
	for _, dep := range deps.Names {
		rec, ok := rctx.GetDependency(dep)
		if !ok {
			continue
		}
		if rec.Result != pipeline.StatusSucceeded && rec.Result != pipeline.StatusSucceededWithIssues {
			return true, fmt.Sprintf("dependency %q did not succeed", dep)
		}
	}
	return false, ""
}
