package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Local YAML pipeline executor",
	Long:  "pipeline — compiles and runs Azure-DevOps-style YAML pipelines locally, with template composition, expression evaluation, and a typed event stream.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
