// Package runtimectx holds the mutable execution state a pipeline run
// threads through the executor: merged variable layers, step outputs,
// recorded stage/job results, and the expression context built fresh
// from that state for every condition check and step dispatch.
package runtimectx

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/value"
)

// StepRecord is what's remembered about one already-executed step,
// keyed by its name for `steps.<name>.outputs`/`steps.<name>.status`
// lookups from later expressions in the same job.
type StepRecord struct {
	Status  pipeline.StepStatus
	Outputs map[string]string
}

// DependencyRecord is what's remembered about a completed stage or
// job, keyed "stage.job" (or "job" for the single-stage shorthand) for
// `dependencies.stages.<n>`/`dependencies.jobs.<n>` lookups.
type DependencyRecord struct {
	Result  pipeline.StepStatus
	Outputs map[string]string
}

// Context is the runtime state a pipeline run owns for its entire
// lifetime. It is not safe for concurrent mutation from more than one
// job at a time within the same scope; callers executing parallel
// stages/jobs must still serialize writes to the shared maps (see
// executor for the locking discipline).
type Context struct {
	RunID       string
	PipelineName string
	WorkingDir  string
	Env         map[string]string

	// varStack is pipeline -> stage -> job -> step-set, each layer an
	// object Value built by PushScope.
	varStack []value.Value

	CurrentStage string
	CurrentJob   string

	Steps        map[string]*StepRecord
	Dependencies map[string]*DependencyRecord
	depsMu       *sync.Mutex

	eng *expression.Engine
}

// New constructs a Context with an empty variable scope, the given
// environment, and a freshly generated run id.
func New(pipelineName, workingDir string, env map[string]string) *Context {
	return &Context{
		RunID:        uuid.NewString(),
		PipelineName: pipelineName,
		WorkingDir:   workingDir,
		Env:          env,
		varStack:     []value.Value{value.NewObject()},
		Steps:        make(map[string]*StepRecord),
		Dependencies: make(map[string]*DependencyRecord),
		depsMu:       &sync.Mutex{},
		eng:          expression.NewEngine(),
	}
}

// Fork produces an independent child context for one stage or job
// branch of a parallel execution: it copies the current top-of-stack
// variables and starts its own Steps record set (step outputs don't
// cross job boundaries), but shares the Dependencies map and its lock
// with the parent so dependency lookups see sibling results as they
// complete. Callers running stages/jobs concurrently must each operate
// on their own Fork, never the shared parent, once more than one
// branch is in flight.
func (c *Context) Fork(stage, job string) *Context {
	child := &Context{
		RunID:        c.RunID,
		PipelineName: c.PipelineName,
		WorkingDir:   c.WorkingDir,
		Env:          c.Env,
		varStack:     []value.Value{c.Variables()},
		CurrentStage: stage,
		CurrentJob:   job,
		Steps:        make(map[string]*StepRecord),
		Dependencies: c.Dependencies,
		depsMu:       c.depsMu,
		eng:          c.eng,
	}
	if stage == "" {
		child.CurrentStage = c.CurrentStage
	}
	return child
}

// Variables returns the current top-of-stack merged variable object.
func (c *Context) Variables() value.Value {
	return c.varStack[len(c.varStack)-1]
}

// PushScope merges vars (a raw, unevaluated variables: block) on top
// of the current scope per the four-branch evaluation rule, and
// pushes the result as the new top of stack. Callers must call
// PopScope exactly once per PushScope, on every exit path.
func (c *Context) PushScope(vars []pipeline.Variable, params value.Value) {
	merged := value.NewObject()
	base := c.Variables()
	for _, k := range base.Keys() {
		v, _ := base.Get(k)
		merged.Set(k, v)
	}

	ctx := c.exprContext(params)
	for _, v := range vars {
		if v.Kind() != pipeline.VariableKeyValue {
			continue
		}
		merged.Set(v.Name, c.evalVariableValue(v.Value, ctx))
	}
	c.varStack = append(c.varStack, merged)
}

// PopScope discards the current top-of-stack scope, restoring the
// caller's.
func (c *Context) PopScope() {
	if len(c.varStack) > 1 {
		c.varStack = c.varStack[:len(c.varStack)-1]
	}
}

// evalVariableValue implements the §4.4 four-branch variable merging
// rule: exact runtime expression, exact compile-time expression,
// embedded compile-time expression (via substitute_macros), or a bare
// literal. Any evaluation failure falls back to the raw string,
// matching upstream's permissive behavior.
func (c *Context) evalVariableValue(raw string, ctx *expression.Context) value.Value {
	trimmed := strings.TrimSpace(raw)
	switch {
	case isExactSpan(trimmed, "$[", "]"):
		body := trimmed[2 : len(trimmed)-1]
		if v, err := c.eng.EvaluateRuntime(body, ctx); err == nil {
			return v
		}
		return value.String(raw)
	case isExactSpan(trimmed, "${{", "}}"):
		body := strings.TrimSuffix(strings.TrimPrefix(trimmed, "${{"), "}}")
		if v, err := c.eng.EvaluateCompileTime(body, ctx); err == nil {
			return v
		}
		return value.String(raw)
	case expression.HasDirectives(raw):
		return value.String(c.eng.SubstituteMacros(raw, ctx))
	default:
		return value.String(raw)
	}
}

func isExactSpan(s, open, close string) bool {
	return strings.HasPrefix(s, open) && strings.HasSuffix(s, close) && len(s) >= len(open)+len(close)
}

// exprContext assembles the typed expression.Context the evaluator
// operates against, reflecting the runtime context's current scope.
func (c *Context) exprContext(params value.Value) *expression.Context {
	pipelineObj := value.NewObject()
	pipelineObj.Set("name", value.String(c.PipelineName))
	pipelineObj.Set("workspace", value.String(c.WorkingDir))

	envObj := value.NewObject()
	for k, v := range c.Env {
		envObj.Set(k, value.String(v))
	}

	stepsObj := value.NewObject()
	for name, rec := range c.Steps {
		entry := value.NewObject()
		outputs := value.NewObject()
		for k, v := range rec.Outputs {
			outputs.Set(k, value.String(v))
		}
		entry.Set("outputs", outputs)
		statusObj := value.NewObject()
		statusObj.Set("succeeded", value.Bool(rec.Status == pipeline.StatusSucceeded || rec.Status == pipeline.StatusSucceededWithIssues))
		statusObj.Set("failed", value.Bool(rec.Status == pipeline.StatusFailed))
		statusObj.Set("canceled", value.Bool(rec.Status == pipeline.StatusCanceled))
		entry.Set("status", statusObj)
		stepsObj.Set(name, entry)
	}

	depsObj := value.NewObject()
	stagesObj := value.NewObject()
	jobsObj := value.NewObject()
	c.depsMu.Lock()
	for key, rec := range c.Dependencies {
		entry := value.NewObject()
		outputs := value.NewObject()
		for k, v := range rec.Outputs {
			outputs.Set(k, value.String(v))
		}
		entry.Set("outputs", outputs)
		entry.Set("result", value.String(string(rec.Result)))
		if strings.Contains(key, ".") {
			stagesObj.Set(strings.SplitN(key, ".", 2)[0], entry)
		}
		jobsObj.Set(key, entry)
	}
	c.depsMu.Unlock()
	depsObj.Set("stages", stagesObj)
	depsObj.Set("jobs", jobsObj)

	if params.IsNull() {
		params = value.NewObject()
	}

	return &expression.Context{
		Variables:      c.Variables(),
		Parameters:     params,
		Pipeline:       pipelineObj,
		Stage:          c.stageValue(),
		Job:            c.jobValue(),
		Steps:          stepsObj,
		Dependencies:   depsObj,
		Env:            envObj,
		Resources:      value.NewObject(),
		IterationScope: value.NewObject(),
	}
}

func (c *Context) stageValue() value.Value {
	if c.CurrentStage == "" {
		return value.Null
	}
	v := value.NewObject()
	v.Set("name", value.String(c.CurrentStage))
	return v
}

func (c *Context) jobValue() value.Value {
	if c.CurrentJob == "" {
		return value.Null
	}
	v := value.NewObject()
	v.Set("name", value.String(c.CurrentJob))
	statusObj := value.NewObject()
	c.depsMu.Lock()
	dep, ok := c.Dependencies[c.dependencyKey()]
	c.depsMu.Unlock()
	if ok {
		statusObj.Set("succeeded", value.Bool(dep.Result == pipeline.StatusSucceeded || dep.Result == pipeline.StatusSucceededWithIssues))
		statusObj.Set("failed", value.Bool(dep.Result == pipeline.StatusFailed))
		statusObj.Set("canceled", value.Bool(dep.Result == pipeline.StatusCanceled))
	} else {
		statusObj.Set("succeeded", value.Bool(true))
		statusObj.Set("failed", value.Bool(false))
		statusObj.Set("canceled", value.Bool(false))
	}
	v.Set("status", statusObj)
	return v
}

func (c *Context) dependencyKey() string {
	if c.CurrentStage == "" {
		return c.CurrentJob
	}
	return c.CurrentStage + "." + c.CurrentJob
}

// EvalCondition parses cond as a runtime expression against the
// current scope and reports its truthiness. An empty condition is
// always true. Errors are returned for the caller to translate into a
// Failed status per §4.4 ("an erroring condition is fatal").
func (c *Context) EvalCondition(cond string, params value.Value) (bool, error) {
	if strings.TrimSpace(cond) == "" {
		return true, nil
	}
	ctx := c.exprContext(params)
	v, err := c.eng.EvaluateRuntime(cond, ctx)
	if err != nil {
		return false, err
	}
	return v.IsTruthy(), nil
}

// SubstituteMacros resolves $(name)/${{ }}/$[ ] spans in s against the
// current scope — used by the executor before handing a script body
// or step field to a runner.
func (c *Context) SubstituteMacros(s string, params value.Value) string {
	return c.eng.SubstituteMacros(s, c.exprContext(params))
}

// InterpolateString resolves ${{ }}/$[ ] spans in s (leaving $(…)
// untouched) against the current scope.
func (c *Context) InterpolateString(s string, params value.Value) (string, error) {
	return c.eng.InterpolateString(s, c.exprContext(params))
}

// SetVariable assigns name in the current top-of-stack scope — used by
// the logging-command parser's task.setvariable handling.
func (c *Context) SetVariable(name string, v value.Value) {
	c.Variables().Set(name, v)
}

// RecordStep stores a step's outcome for later `steps.<name>` lookups.
func (c *Context) RecordStep(name string, status pipeline.StepStatus, outputs map[string]string) {
	if name == "" {
		return
	}
	c.Steps[name] = &StepRecord{Status: status, Outputs: outputs}
}

// RecordDependency stores a completed stage or job's result for later
// `dependencies.*` lookups, keyed "stage.job" or bare "job". Safe to
// call from concurrent stage/job goroutines sharing a forked Context.
func (c *Context) RecordDependency(key string, result pipeline.StepStatus, outputs map[string]string) {
	c.depsMu.Lock()
	c.Dependencies[key] = &DependencyRecord{Result: result, Outputs: outputs}
	c.depsMu.Unlock()
}

// GetDependency returns the recorded result for key ("stage.job" or
// bare "job"), if any has been recorded yet.
func (c *Context) GetDependency(key string) (*DependencyRecord, bool) {
	c.depsMu.Lock()
	defer c.depsMu.Unlock()
	rec, ok := c.Dependencies[key]
	return rec, ok
}

// VariablesSnapshot renders the current top-of-stack variables as the
// plain string map ExecutionResult.Variables expects.
func (c *Context) VariablesSnapshot() map[string]string {
	out := make(map[string]string)
	top := c.Variables()
	for _, k := range top.Keys() {
		v, _ := top.Get(k)
		out[k] = v.AsString()
	}
	return out
}
