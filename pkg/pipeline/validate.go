package pipeline

import (
	"encoding/json"
	"fmt"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateFile runs the full three-phase validation pipeline on a
// pipeline document file: structural (YAML decode), semantic (JSON
// Schema), domain (hand-written Go rules: empty pipeline, duplicate
// ids, unknown dependencies, cycles).
func ValidateFile(path string) (*Document, []*ValidationError) {
	var all []*ValidationError

	doc, err := LoadFile(path)
	if err != nil {
		all = append(all, &ValidationError{Phase: "structural", Path: "", Message: err.Error(), Severity: "error"})
		return nil, all
	}

	all = append(all, validateSemantic(doc)...)
	all = append(all, ValidateDomain(doc)...)
	all = append(all, ValidateSchedules(doc)...)

	if len(all) > 0 {
		return doc, all
	}
	return doc, nil
}

func validateSemantic(doc *Document) []*ValidationError {
	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("marshal for schema validation: %v", err), Severity: "error"}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("generate schema: %v", err), Severity: "error"}}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("decode schema: %v", err), Severity: "error"}}
	}

	compiler := sjsonschema.NewCompiler()
	if err := compiler.AddResource("pipeline.json", schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("add schema resource: %v", err), Severity: "error"}}
	}
	schema, err := compiler.Compile("pipeline.json")
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("compile schema: %v", err), Severity: "error"}}
	}

	var inst interface{}
	if err := json.Unmarshal(data, &inst); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("decode instance: %v", err), Severity: "error"}}
	}

	if err := schema.Validate(inst); err != nil {
		return []*ValidationError{{Phase: "semantic", Path: "", Message: err.Error(), Severity: "error"}}
	}
	return nil
}

// ValidateDomain applies hand-written rules beyond what JSON Schema
// can express: the empty-pipeline check, duplicate stage/job
// identifiers, dependency cycles, and unknown dependency targets.
func ValidateDomain(doc *Document) []*ValidationError {
	var errs []*ValidationError

	if len(doc.Stages) == 0 && len(doc.Jobs) == 0 && len(doc.Steps) == 0 && doc.Extends == nil {
		errs = append(errs, &ValidationError{
			Phase: "domain", Path: "", Severity: "error",
			Message: "must have stages, jobs, steps, or extends",
		})
		return errs
	}

	seenStage := map[string]bool{}
	for i, s := range doc.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		if s.Stage != "" {
			if seenStage[s.Stage] {
				errs = append(errs, &ValidationError{Phase: "domain", Path: path, Severity: "error", Message: fmt.Sprintf("duplicate stage id %q", s.Stage)})
			}
			seenStage[s.Stage] = true
		}
		if len(s.Jobs) == 0 {
			errs = append(errs, &ValidationError{Phase: "domain", Path: path, Severity: "error", Message: "stage has no jobs"})
		}
		seenJob := map[string]bool{}
		for j, job := range s.Jobs {
			jp := fmt.Sprintf("%s.jobs[%d]", path, j)
			name := job.Name()
			if name != "" {
				if seenJob[name] {
					errs = append(errs, &ValidationError{Phase: "domain", Path: jp, Severity: "error", Message: fmt.Sprintf("duplicate job id %q", name)})
				}
				seenJob[name] = true
			}
		}
	}

	errs = append(errs, validateStageDeps(doc)...)
	for i := range doc.Stages {
		errs = append(errs, validateJobDeps(&doc.Stages[i], i)...)
	}

	return errs
}

func validateStageDeps(doc *Document) []*ValidationError {
	var errs []*ValidationError
	ResolveStageDeps(doc)
	index := map[string]int{}
	for i, s := range doc.Stages {
		index[s.Stage] = i
	}
	for i, s := range doc.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		for _, dep := range s.Deps().Names {
			if _, ok := index[dep]; !ok {
				errs = append(errs, &ValidationError{Phase: "domain", Path: path, Severity: "error", Message: fmt.Sprintf("unknown stage dependency %q", dep)})
			}
		}
	}
	if cyc := detectCycle(len(doc.Stages), func(i int) []int {
		var out []int
		for _, dep := range doc.Stages[i].Deps().Names {
			if j, ok := index[dep]; ok {
				out = append(out, j)
			}
		}
		return out
	}); cyc != nil {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "stages", Severity: "error", Message: "dependency cycle detected among stages"})
	}
	return errs
}

func validateJobDeps(stage *Stage, stageIdx int) []*ValidationError {
	var errs []*ValidationError
	ResolveJobDeps(stage)
	index := map[string]int{}
	for i, j := range stage.Jobs {
		index[j.Name()] = i
	}
	for i, j := range stage.Jobs {
		path := fmt.Sprintf("stages[%d].jobs[%d]", stageIdx, i)
		for _, dep := range j.Deps().Names {
			if _, ok := index[dep]; !ok {
				errs = append(errs, &ValidationError{Phase: "domain", Path: path, Severity: "error", Message: fmt.Sprintf("unknown job dependency %q", dep)})
			}
		}
	}
	if cyc := detectCycle(len(stage.Jobs), func(i int) []int {
		var out []int
		for _, dep := range stage.Jobs[i].Deps().Names {
			if j, ok := index[dep]; ok {
				out = append(out, j)
			}
		}
		return out
	}); cyc != nil {
		errs = append(errs, &ValidationError{Phase: "domain", Path: fmt.Sprintf("stages[%d].jobs", stageIdx), Severity: "error", Message: "dependency cycle detected among jobs"})
	}
	return errs
}

// detectCycle runs three-color DFS over n nodes with the given
// adjacency function, returning the cycle (as a node-index slice) if
// one is found, or nil.
func detectCycle(n int, adj func(int) []int) []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, n)
	var stack []int
	var cycle []int

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		stack = append(stack, i)
		for _, next := range adj(i) {
			if color[next] == gray {
				cycle = append(append([]int{}, stack...), next)
				return true
			}
			if color[next] == white {
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return false
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			if visit(i) {
				return cycle
			}
		}
	}
	return nil
}
