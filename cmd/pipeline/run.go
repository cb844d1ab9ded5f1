package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/azlocal/pipeline/pkg/executor"
	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/template"
	"github.com/azlocal/pipeline/pkg/value"
)

var (
	runVars            []string
	runParams          []string
	runMaxParallelJobs  int
	runMaxParallelStages int
	runManifestPath     string
	runEnableContainers bool
	runQuiet            bool
)

var runCmd = &cobra.Command{
	Use:   "run [pipeline.yml]",
	Short: "Resolve and execute a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "set a runtime variable (key=value), repeatable")
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "set a template parameter (key=value), repeatable")
	runCmd.Flags().IntVar(&runMaxParallelJobs, "max-parallel-jobs", 1, "maximum jobs to run concurrently within a stage")
	runCmd.Flags().IntVar(&runMaxParallelStages, "max-parallel-stages", 1, "maximum stages to run concurrently")
	runCmd.Flags().StringVar(&runManifestPath, "manifest", "", "write a run manifest JSON file to this path")
	runCmd.Flags().BoolVar(&runEnableContainers, "containers", false, "allow steps to run inside job/step containers via docker")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress step output, print only lifecycle events")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]

	if _, errs := pipeline.ValidateFile(path); len(errs) > 0 {
		for _, e := range errs {
			if e.Severity != "warning" {
				return fmt.Errorf("validation failed: [%s] %s", e.Phase, e.Message)
			}
		}
	}

	vars, err := parseKeyValues(runVars)
	if err != nil {
		return err
	}
	paramStrings, err := parseKeyValues(runParams)
	if err != nil {
		return err
	}
	params := make(map[string]interface{}, len(paramStrings))
	for k, v := range paramStrings {
		params[k] = v
	}

	repoRoot := filepath.Dir(path)
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
	doc, err := eng.ResolveDocument(filepath.Base(path), params, baseCtx)
	if err != nil {
		return fmt.Errorf("resolve pipeline: %w", err)
	}

	cfg := executor.Config{
		WorkingDir:        repoRoot,
		MaxParallelStages: runMaxParallelStages,
		MaxParallelJobs:   runMaxParallelJobs,
		Variables:         vars,
		Parameters:        params,
		EnableContainers:  runEnableContainers,
		Sink:              printEvent,
	}

	started := time.Now()
	result, err := executor.Run(context.Background(), doc, cfg)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if runManifestPath != "" {
		manifest := executor.BuildManifest(uuid.NewString(), doc.Name, started.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), result)
		if err := executor.WriteManifest(runManifestPath, manifest); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	}

	if !result.Success {
		return fmt.Errorf("pipeline %q failed", doc.Name)
	}
	return nil
}

func printEvent(e executor.Event) {
	switch e.Kind {
	case executor.EventPipelineStarted:
		fmt.Println(styleHeader.Render(fmt.Sprintf("▶ %s (%d stages)", e.Name, e.TotalStages)))
	case executor.EventPipelineCompleted:
		fmt.Printf("%s %s in %.2fs\n", statusGlyph(successStatus(e.Success)), e.Name, e.Duration)
	case executor.EventStageStarted:
		fmt.Println(styleRunning.Render(fmt.Sprintf("%s stage %s", glyphRunning, e.Stage)))
	case executor.EventStageCompleted:
		fmt.Printf("  %s stage %s (%.2fs)\n", statusGlyph(e.Status), e.Stage, e.Duration)
	case executor.EventStageSkipped:
		fmt.Printf("  %s stage %s: %s\n", statusGlyph("Skipped"), e.Stage, e.Reason)
	case executor.EventJobStarted:
		fmt.Printf("    %s job %s\n", glyphRunning, jobLabel(e.Job, e.MatrixInstance))
	case executor.EventJobCompleted:
		fmt.Printf("    %s job %s (%.2fs)\n", statusGlyph(e.Status), jobLabel(e.Job, e.MatrixInstance), e.Duration)
	case executor.EventJobSkipped:
		fmt.Printf("    %s job %s: %s\n", statusGlyph("Skipped"), e.Job, e.Reason)
	case executor.EventStepStarted:
		fmt.Printf("      %s %s\n", glyphRunning, e.Step)
	case executor.EventStepOutput:
		if !runQuiet {
			fmt.Printf("      %s\n", styleDim.Render(e.Output))
		}
	case executor.EventStepCompleted:
		fmt.Printf("      %s %s (%.2fs)\n", statusGlyph(e.Status), e.Step, e.Duration)
	case executor.EventStepSkipped:
		fmt.Printf("      %s %s: %s\n", statusGlyph("Skipped"), e.Step, e.Reason)
	case executor.EventVariableSet:
		if !e.IsSecret {
			fmt.Printf("      set %s=%s\n", e.VariableName, e.VariableValue)
		}
	case executor.EventError:
		fmt.Println(styleFailed.Render(fmt.Sprintf("error: %s", e.Message)))
	case executor.EventLog:
		fmt.Printf("%s %s\n", e.Level, e.Message)
	}
}

func successStatus(success bool) string {
	if success {
		return "Succeeded"
	}
	return "Failed"
}

func jobLabel(job, matrixInstance string) string {
	if matrixInstance == "" {
		return job
	}
	return fmt.Sprintf("%s (%s)", job, matrixInstance)
}

// parseKeyValues parses "key=value" flag entries into a map.
func parseKeyValues(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid flag %q: expected key=value", e)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}
