// Package testharness discovers and runs scenario tests for a
// pipeline definition: a sibling "<name>.test.yml" file declares
// parameters/variables to seed a run with and the stage, job, step,
// and variable outcomes the run is expected to produce.
package testharness

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is one scenario's expectations, loaded from a pipeline's
// sibling *.test.yml file.
type Spec struct {
	Name       string                 `yaml:"name,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`
	Variables  map[string]string      `yaml:"variables,omitempty"`

	ExpectedSuccess *bool             `yaml:"expectedSuccess,omitempty"`
	ExpectedStages  map[string]string `yaml:"expectedStages,omitempty"`
	ExpectedJobs    map[string]string `yaml:"expectedJobs,omitempty"`
	ExpectedSteps   map[string]string `yaml:"expectedSteps,omitempty"`
	ExpectedVars    map[string]string `yaml:"expectedVariables,omitempty"`
}

// LoadSpec reads and parses a *.test.yml scenario file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}
