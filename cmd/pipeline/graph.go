package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/graph"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/template"
	"github.com/azlocal/pipeline/pkg/value"
)

var graphParams []string

var graphCmd = &cobra.Command{
	Use:   "graph [pipeline.yml]",
	Short: "Print a pipeline's stage dependency graph as parallel execution levels",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().StringArrayVar(&graphParams, "param", nil, "set a template parameter (key=value), repeatable")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	path := args[0]

	paramStrings, err := parseKeyValues(graphParams)
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

	pipeline.Normalize(doc)
	pipeline.ResolveStageDeps(doc)

	stageGraph, err := graph.BuildStageGraph(doc)
	if err != nil {
		return fmt.Errorf("build stage graph: %w", err)
	}

	byName := make(map[string]*pipeline.Stage, len(doc.Stages))
	for i := range doc.Stages {
		byName[doc.Stages[i].Stage] = &doc.Stages[i]
	}

	for level, names := range stageGraph.ParallelStages() {
		fmt.Printf("level %d: %s\n", level, strings.Join(names, ", "))
		for _, name := range names {
			stage := byName[name]
			pipeline.ResolveJobDeps(stage)
			jobGraph, err := graph.BuildJobGraph(stage)
			if err != nil {
				return fmt.Errorf("build job graph for stage %q: %w", name, err)
			}
			for jl, jobs := range jobGraph.ParallelJobs() {
				fmt.Printf("  %s level %d: %s\n", name, jl, strings.Join(jobs, ", "))
			}
		}
	}
	return nil
}
