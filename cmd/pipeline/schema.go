package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the pipeline document's JSON Schema",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaOut, "out", "", "write the schema to this file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := pipeline.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	if schemaOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(schemaOut, data, 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	fmt.Printf("wrote %s\n", schemaOut)
	return nil
}
