package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [pipeline.yml]",
	Short: "Validate a pipeline YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	doc, errs := pipeline.ValidateFile(path)

	var errorsOut, warnings []*pipeline.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errorsOut = append(errorsOut, e)
		}
	}

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errorsOut) > 0 {
		fmt.Fprintf(os.Stderr, "validation failed: %d error(s)\n\n", len(errorsOut))
		for i, e := range errorsOut {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errorsOut))
	}

	name := path
	if doc != nil && doc.Name != "" {
		name = doc.Name
	}
	fmt.Printf("%s %s is valid\n", glyphSucceeded, name)
	return nil
}
