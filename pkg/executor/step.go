package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/runners"
	"github.com/azlocal/pipeline/pkg/runtimectx"
	"github.com/azlocal/pipeline/pkg/secrets"
	"github.com/azlocal/pipeline/pkg/task"
	"github.com/azlocal/pipeline/pkg/value"
)

// stepContext carries the per-job state a step dispatch needs beyond
// its own fields.
type stepContext struct {
	stage, job string
	index      int
	env        map[string]string
	container  *runners.Container
	taskCache  *task.Cache
	redactor   *secrets.Redactor
	cfg        Config
}

// runStep evaluates a step's guards and, if it should dispatch, runs
// its action and folds any logging-command side effects back into
// rctx. shouldRun is the job's current should_run flag (§4.4); the
// step still dispatches if shouldRun is false but its condition
// contains the literal always().
func runStep(ctx context.Context, rctx *runtimectx.Context, emitter *Emitter, sc stepContext, step pipeline.Step, shouldRun bool) pipeline.StepResult {
	name := step.Name
	if name == "" {
		name = step.DisplayName
	}

	if step.Enabled != nil && !*step.Enabled {
		emitter.StepSkipped(sc.stage, sc.job, name, "disabled", sc.index)
		return pipeline.StepResult{Name: name, DisplayName: step.DisplayName, Status: pipeline.StatusSkipped}
	}

	always := strings.Contains(step.Condition, "always()")
	if !shouldRun && !always {
		emitter.StepSkipped(sc.stage, sc.job, name, "prior step failed", sc.index)
		return pipeline.StepResult{Name: name, DisplayName: step.DisplayName, Status: pipeline.StatusSkipped}
	}

	ok, err := rctx.EvalCondition(step.Condition, value.Null)
	if err != nil {
		emitter.Error(fmt.Sprintf("step %q condition: %v", name, err), sc.stage, sc.job, sc.index)
		return pipeline.StepResult{Name: name, DisplayName: step.DisplayName, Status: pipeline.StatusFailed, Error: err.Error()}
	}
	if !ok {
		emitter.StepSkipped(sc.stage, sc.job, name, "condition false", sc.index)
		return pipeline.StepResult{Name: name, DisplayName: step.DisplayName, Status: pipeline.StatusSkipped}
	}

	emitter.StepStarted(sc.stage, sc.job, name, step.DisplayName, sc.index)
	start := time.Now()

	result := dispatchStep(ctx, rctx, emitter, sc, step, name)
	result.Duration = time.Since(start).Seconds()
	result.Name = name
	result.DisplayName = step.DisplayName

	emitter.StepCompleted(sc.stage, sc.job, name, string(result.Status), sc.index, result.Duration, result.ExitCode)
	return result
}

func dispatchStep(ctx context.Context, rctx *runtimectx.Context, emitter *Emitter, sc stepContext, step pipeline.Step, name string) pipeline.StepResult {
	env := buildStepEnv(rctx, sc, step)
	timeout := step.TimeoutInMinutes
	if timeout == 0 {
		timeout = sc.cfg.DefaultStepTimeoutMinutes
	}
	onOutput := func(line string, isErr bool) {
		emitter.StepOutput(sc.stage, sc.job, name, sc.index, line, isErr)
	}

	switch step.Action() {
	case pipeline.ActionScript, pipeline.ActionBash, pipeline.ActionPwsh, pipeline.ActionPowerShell:
		return runScriptStep(ctx, rctx, emitter, sc, step, env, timeout*60, onOutput)
	case pipeline.ActionTask:
		return runTaskStep(ctx, rctx, emitter, sc, step, env, timeout*60, onOutput)
	case pipeline.ActionCheckout:
		return pipeline.StepResult{Status: pipeline.StatusSucceeded, Output: "checkout: self (no-op)"}
	case pipeline.ActionDownload, pipeline.ActionPublish, pipeline.ActionGetPackage, pipeline.ActionReviewApp:
		return pipeline.StepResult{Status: pipeline.StatusSkipped, Error: "artifact storage is out of scope"}
	default:
		return pipeline.StepResult{Status: pipeline.StatusSkipped, Error: "unresolved or unsupported step action"}
	}
}

func runScriptStep(ctx context.Context, rctx *runtimectx.Context, emitter *Emitter, sc stepContext, step pipeline.Step, env map[string]string, timeoutSeconds int, onOutput runners.OutputFunc) pipeline.StepResult {
	interpreter, script := scriptInterpreter(step)
	script = rctx.SubstituteMacros(script, value.Null)
	workingDir := rctx.SubstituteMacros(step.WorkingDirectory, value.Null)
	if workingDir == "" {
		workingDir = sc.cfg.WorkingDir
	}

	if sc.container != nil {
		result, logResult, err := sc.container.Exec(ctx, script, workingDir, onOutput)
		return foldRunResult(rctx, emitter, sc, result, logResult, err)
	}

	result, logResult, err := runners.RunShell(ctx, runners.ShellSpec{
		Interpreter:           interpreter,
		Script:                script,
		WorkingDirectory:      workingDir,
		Env:                   env,
		FailOnStderr:          step.FailOnStderr,
		ErrorActionPreference: step.ErrorActionPreference,
		TimeoutSeconds:        timeoutSeconds,
		OnOutput:              onOutput,
	})
	return foldRunResult(rctx, emitter, sc, result, logResult, err)
}

func scriptInterpreter(step pipeline.Step) (string, string) {
	switch {
	case step.Bash != "":
		return "bash", step.Bash
	case step.Pwsh != "":
		return "pwsh", step.Pwsh
	case step.PowerShell != "":
		return "powershell", step.PowerShell
	default:
		return "sh", step.Script
	}
}

func runTaskStep(ctx context.Context, rctx *runtimectx.Context, emitter *Emitter, sc stepContext, step pipeline.Step, env map[string]string, timeoutSeconds int, onOutput runners.OutputFunc) pipeline.StepResult {
	if sc.container != nil {
		return pipeline.StepResult{Status: pipeline.StatusSkipped, Error: "container runner supports only script-family actions"}
	}

	inputs := make(map[string]string, len(step.Inputs))
	for k, v := range step.Inputs {
		s := fmt.Sprintf("%v", v)
		inputs[k] = rctx.SubstituteMacros(s, value.Null)
	}
	workingDir := rctx.SubstituteMacros(step.WorkingDirectory, value.Null)
	if workingDir == "" {
		workingDir = sc.cfg.WorkingDir
	}

	result, logResult, err := task.Run(ctx, sc.taskCache, task.Spec{
		Ref:              step.Task,
		Inputs:           inputs,
		WorkingDirectory: workingDir,
		Env:              env,
		TimeoutSeconds:   timeoutSeconds,
		OnOutput:         onOutput,
	})
	if err != nil {
		if taskErr, ok := err.(*task.Error); ok {
			return pipeline.StepResult{Status: pipeline.StatusFailed, Error: taskErr.Error()}
		}
		return pipeline.StepResult{Status: pipeline.StatusFailed, Error: err.Error()}
	}
	return foldRunResult(rctx, emitter, sc, result, logResult, nil)
}

// foldRunResult applies logging-command side effects to rctx (variable
// sets, secret registration) and derives the step's final status and
// outputs map. Registered secret values are redacted from the stored
// output text.
func foldRunResult(rctx *runtimectx.Context, emitter *Emitter, sc stepContext, result *runners.RunResult, logResult *runners.LogResult, runErr error) pipeline.StepResult {
	redact := func(s string) string {
		if sc.redactor == nil {
			return s
		}
		return sc.redactor.Apply(s)
	}
	if runErr != nil {
		if rerr, ok := runErr.(*runners.Error); ok {
			res := pipeline.StepResult{Status: pipeline.StatusFailed, Error: rerr.Error()}
			if result != nil {
				res.Output = redact(result.Stdout + result.Stderr)
			}
			return res
		}
		return pipeline.StepResult{Status: pipeline.StatusFailed, Error: runErr.Error()}
	}

	outputs := make(map[string]string)
	if logResult != nil {
		for _, sv := range logResult.SetVariables {
			if sv.IsSecret {
				if sc.redactor != nil {
					sc.redactor.Register(sv.Value)
				}
				emitter.VariableSet(sc.stage, sc.job, sv.Name, sv.Value, sv.IsOutput, true)
				continue
			}
			if sv.IsOutput {
				outputs[sv.Name] = sv.Value
				emitter.VariableSet(sc.stage, sc.job, sv.Name, sv.Value, true, false)
				continue
			}
			rctx.SetVariable(sv.Name, value.String(sv.Value))
			emitter.VariableSet(sc.stage, sc.job, sv.Name, sv.Value, false, false)
		}
	}

	status := pipeline.StatusSucceeded
	if result.ExitCode != 0 {
		status = pipeline.StatusFailed
	}
	if logResult != nil && logResult.TaskResult != "" {
		if s, ok := taskResultStatus(logResult.TaskResult); ok {
			status = s
		}
	}

	exitCode := result.ExitCode
	res := pipeline.StepResult{
		Status:   status,
		Output:   redact(result.Stdout + result.Stderr),
		ExitCode: &exitCode,
		Outputs:  outputs,
	}
	if status == pipeline.StatusFailed {
		res.Error = fmt.Sprintf("exit code %d", result.ExitCode)
	}
	return res
}

func taskResultStatus(r string) (pipeline.StepStatus, bool) {
	switch strings.ToLower(r) {
	case "succeeded":
		return pipeline.StatusSucceeded, true
	case "succeededwithissues":
		return pipeline.StatusSucceededWithIssues, true
	case "failed":
		return pipeline.StatusFailed, true
	}
	return "", false
}

func buildStepEnv(rctx *runtimectx.Context, sc stepContext, step pipeline.Step) map[string]string {
	env := make(map[string]string, len(sc.env)+len(step.Env)+4)
	for k, v := range sc.env {
		env[k] = v
	}
	for k, v := range step.Env {
		env[k] = rctx.SubstituteMacros(v, value.Null)
	}
	env["BUILD_SOURCESDIRECTORY"] = rctx.WorkingDir
	env["SYSTEM_DEFAULTWORKINGDIRECTORY"] = rctx.WorkingDir
	env["PIPELINE_WORKSPACE"] = rctx.WorkingDir
	env["SYSTEM_STAGENAME"] = sc.stage
	env["SYSTEM_JOBNAME"] = sc.job
	return env
}

// continueOnError reports whether a step tolerates its own failure,
// honoring the bool-or-runtime-expression form.
func continueOnError(rctx *runtimectx.Context, raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false
		}
		if strings.HasPrefix(trimmed, "$[") && strings.HasSuffix(trimmed, "]") {
			ok, err := rctx.EvalCondition(strings.TrimSuffix(strings.TrimPrefix(trimmed, "$["), "]"), value.Null)
			return err == nil && ok
		}
		b, err := strconv.ParseBool(trimmed)
		return err == nil && b
	default:
		return false
	}
}
