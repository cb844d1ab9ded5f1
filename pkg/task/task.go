package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/azlocal/pipeline/pkg/runners"
)

// Spec is one task-step invocation.
type Spec struct {
	Ref              string
	Inputs           map[string]string
	WorkingDirectory string
	Env              map[string]string
	TimeoutSeconds   int
	OnOutput         runners.OutputFunc
}

// Run resolves spec.Ref against cache and invokes the task, either by
// short-circuiting to the shell runner (Bash/PowerShell/CmdLine) or by
// spawning the manifest's resolved handler interpreter against its
// target script.
func Run(ctx context.Context, cache *Cache, spec Spec) (*runners.RunResult, *runners.LogResult, error) {
	name, version, err := ParseRef(spec.Ref)
	if err != nil {
		return nil, nil, err
	}

	manifest, root, err := cache.Load(name, version)
	if err != nil {
		return nil, nil, err
	}

	inputs, err := MergeInputs(manifest, spec.Inputs)
	if err != nil {
		return nil, nil, err
	}

	env := BuildEnv(inputs, spec.WorkingDirectory)
	for k, v := range spec.Env {
		env[k] = v
	}

	if interpreter, ok := builtinInterpreter(manifest.Name); ok {
		return runBuiltinScript(ctx, interpreter, inputs, spec, env)
	}

	handlerName, exec, err := manifest.ResolveHandler()
	if err != nil {
		return nil, nil, err
	}
	return runGenericHandler(ctx, handlerName, exec, root, spec, env)
}

// builtinInterpreter reports the shell runner interpreter a built-in
// script task specialization short-circuits to.
func builtinInterpreter(taskName string) (string, bool) {
	switch strings.ToLower(taskName) {
	case "bash":
		return "bash", true
	case "powershell":
		return "pwsh", true
	case "cmdline":
		return "sh", true
	}
	return "", false
}

// runBuiltinScript handles the Bash/PowerShell/CmdLine built-ins, whose
// `targetType` input selects between an inline script and a script
// file on disk.
func runBuiltinScript(ctx context.Context, interpreter string, inputs map[string]string, spec Spec, env map[string]string) (*runners.RunResult, *runners.LogResult, error) {
	script := inputs["script"]
	if strings.EqualFold(inputs["targetType"], "filePath") {
		data, err := os.ReadFile(inputs["filePath"])
		if err != nil {
			return nil, nil, inputErr("filePath script: %v", err)
		}
		script = string(data)
	}

	return runners.RunShell(ctx, runners.ShellSpec{
		Interpreter:           interpreter,
		Script:                script,
		WorkingDirectory:      firstNonEmpty(inputs["workingDirectory"], spec.WorkingDirectory),
		Env:                   env,
		FailOnStderr:          strings.EqualFold(inputs["failOnStderr"], "true"),
		ErrorActionPreference: inputs["errorActionPreference"],
		TimeoutSeconds:        spec.TimeoutSeconds,
		OnOutput:              spec.OnOutput,
	})
}

// runGenericHandler spawns a regular task's resolved Node/PowerShell
// handler against its manifest-declared target script.
func runGenericHandler(ctx context.Context, handlerName string, exec *Execution, root string, spec Spec, env map[string]string) (*runners.RunResult, *runners.LogResult, error) {
	interpreter, ok := handlerBinary(handlerName)
	if !ok {
		return nil, nil, handlerErr("unsupported execution handler %q", handlerName)
	}

	target := filepath.Join(root, exec.Target)
	script := interpreter + " " + shellQuote(target)

	return runners.RunShell(ctx, runners.ShellSpec{
		Interpreter:      "sh",
		Script:           script,
		WorkingDirectory: firstNonEmpty(exec.WorkingDirectory, spec.WorkingDirectory),
		Env:              env,
		TimeoutSeconds:   spec.TimeoutSeconds,
		OnOutput:         spec.OnOutput,
	})
}

func handlerBinary(handlerName string) (string, bool) {
	switch handlerName {
	case "Node20", "Node16", "Node10", "Node":
		return "node", true
	case "PowerShell3", "PowerShell":
		return "pwsh", true
	}
	return "", false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
