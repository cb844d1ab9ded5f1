package pipeline

const defaultName = "__default"

// Normalize rewrites a bare steps/jobs document into the canonical
// stages-of-jobs-of-steps shape. A document with only steps gets
// wrapped in a synthetic job and stage both named "__default"; a
// document with only jobs gets wrapped in a synthetic stage. This
// applies regardless of whether the document arrived via extends.
func Normalize(doc *Document) {
	if len(doc.Stages) > 0 {
		return
	}
	if len(doc.Jobs) > 0 {
		doc.Stages = []Stage{{
			Stage: defaultName,
			Jobs:  doc.Jobs,
		}}
		doc.Jobs = nil
		return
	}
	doc.Stages = []Stage{{
		Stage: defaultName,
		Jobs: []Job{{
			Job:   defaultName,
			Steps: doc.Steps,
		}},
	}}
	doc.Steps = nil
}

// ClassifyDependsOn interprets a raw dependsOn YAML value (nil, a bare
// string, or a list of strings) into a DependsOn with its Kind set.
// index is the node's position in document order within its scope,
// used to resolve the Default case (previous sibling).
func ClassifyDependsOn(raw interface{}, index int, siblingNames []string) DependsOn {
	switch v := raw.(type) {
	case nil:
		if index == 0 {
			return DependsOn{Kind: DependsOnNone}
		}
		return DependsOn{Kind: DependsOnDefault, Names: []string{siblingNames[index-1]}}
	case string:
		if v == "" {
			return DependsOn{Kind: DependsOnNone}
		}
		return DependsOn{Kind: DependsOnSingle, Names: []string{v}}
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		if len(names) == 0 {
			return DependsOn{Kind: DependsOnNone}
		}
		return DependsOn{Kind: DependsOnMultiple, Names: names}
	case []string:
		if len(v) == 0 {
			return DependsOn{Kind: DependsOnNone}
		}
		return DependsOn{Kind: DependsOnMultiple, Names: v}
	default:
		return DependsOn{Kind: DependsOnNone}
	}
}

// StageNames returns stage identifiers in document order.
func StageNames(doc *Document) []string {
	names := make([]string, len(doc.Stages))
	for i, s := range doc.Stages {
		names[i] = s.Stage
	}
	return names
}

// JobNames returns job identifiers in document order within a stage.
func JobNames(stage *Stage) []string {
	names := make([]string, len(stage.Jobs))
	for i, j := range stage.Jobs {
		names[i] = j.Name()
	}
	return names
}

// ResolveStageDeps computes and caches each stage's classified
// dependsOn relative to the stage's position in the document.
func ResolveStageDeps(doc *Document) {
	names := StageNames(doc)
	for i := range doc.Stages {
		dep := ClassifyDependsOn(doc.Stages[i].DependsOn, i, names)
		doc.Stages[i].resolvedDeps = &dep
	}
}

// ResolveJobDeps computes and caches each job's classified dependsOn
// relative to its position within its stage.
func ResolveJobDeps(stage *Stage) {
	names := JobNames(stage)
	for i := range stage.Jobs {
		dep := ClassifyDependsOn(stage.Jobs[i].DependsOn, i, names)
		stage.Jobs[i].resolvedDeps = &dep
	}
}

// Deps returns a stage's resolved dependencies; ResolveStageDeps must
// have been called on the owning document first.
func (s Stage) Deps() DependsOn {
	if s.resolvedDeps == nil {
		return DependsOn{Kind: DependsOnNone}
	}
	return *s.resolvedDeps
}

// Deps returns a job's resolved dependencies; ResolveJobDeps must have
// been called on the owning stage first.
func (j Job) Deps() DependsOn {
	if j.resolvedDeps == nil {
		return DependsOn{Kind: DependsOnNone}
	}
	return *j.resolvedDeps
}
