package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/azlocal/pipeline/pkg/testharness"
)

var (
	testFailFast bool
	testTimeout  time.Duration
	testFormat   string
)

var testCmd = &cobra.Command{
	Use:   "test [root]",
	Short: "Run scenario tests (*.test.yml) discovered under root",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTest,
}

func init() {
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "stop at the first failed or errored scenario")
	testCmd.Flags().DurationVar(&testTimeout, "timeout", 0, "per-scenario execution timeout")
	testCmd.Flags().StringVar(&testFormat, "format", "terminal", "report format: terminal, junit, or tap")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	format, err := testharness.ParseReportFormat(testFormat)
	if err != nil {
		return err
	}

	runner := &testharness.Runner{Timeout: testTimeout}
	out, err := runner.RunAll(root, testFailFast)
	if err != nil {
		return fmt.Errorf("run scenarios: %w", err)
	}

	if format != testharness.FormatTerminal {
		fmt.Print(testharness.Report(out, root, format))
		if out.Summary.Failed > 0 || out.Summary.Errors > 0 {
			return fmt.Errorf("scenario tests failed")
		}
		return nil
	}

	for _, s := range out.Scenarios {
		fmt.Printf("%s %s (%dms)\n", scenarioGlyph(s.Status), s.ScenarioName, s.DurationMs)
		if s.Status == "error" {
			fmt.Printf("    error: %s\n", s.Error)
			continue
		}
		for _, a := range s.Assertions {
			if !a.Passed {
				fmt.Printf("    %s %s\n", styleFailed.Render("✗"), a.Message)
			}
		}
	}

	fmt.Printf("\n%d total, %d passed, %d failed, %d errors\n",
		out.Summary.Total, out.Summary.Passed, out.Summary.Failed, out.Summary.Errors)

	if out.Summary.Failed > 0 || out.Summary.Errors > 0 {
		return fmt.Errorf("scenario tests failed")
	}
	return nil
}

func scenarioGlyph(status string) string {
	switch status {
	case "passed":
		return styleSucceeded.Render(glyphSucceeded)
	case "failed":
		return styleFailed.Render(glyphFailed)
	default:
		return styleFailed.Render("!")
	}
}
