package template

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/pipeline"
	"github.com/azlocal/pipeline/pkg/value"
)

// mappingGet returns the value node for key in a mapping node, or nil.
func mappingGet(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// declaredParameters decodes a template file's top-level parameters:
// block, if present.
func declaredParameters(root *yaml.Node) ([]pipeline.Parameter, error) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	node := mappingGet(doc, "parameters")
	if node == nil {
		return nil, nil
	}
	var params []pipeline.Parameter
	if err := node.Decode(&params); err != nil {
		return nil, &Error{Kind: ErrParameterType, Message: err.Error()}
	}
	return params, nil
}

// BindParameters validates provided against declared, applying
// defaults, type coercion, and values membership, and returns the
// bound parameters as an object Value suitable for Context.Parameters.
func BindParameters(declared []pipeline.Parameter, provided map[string]interface{}) (value.Value, error) {
	out := value.NewObject()
	seen := make(map[string]bool, len(declared))

	for _, p := range declared {
		seen[p.Name] = true
		raw, ok := provided[p.Name]
		if !ok {
			if p.Default != nil {
				raw = p.Default
			} else if p.Type == pipeline.ParamBoolean {
				raw = false
			} else {
				return value.Null, &Error{Kind: ErrMissingParameter, Message: fmt.Sprintf("missing required parameter %q", p.Name)}
			}
		}

		v, err := coerceParam(p, raw)
		if err != nil {
			return value.Null, err
		}

		if len(p.Values) > 0 && !valueAllowed(v, p.Values) {
			return value.Null, &Error{Kind: ErrParameterType, Message: fmt.Sprintf("parameter %q: %v is not one of the allowed values", p.Name, raw)}
		}

		out.Set(p.Name, v)
	}

	// Extra caller-supplied parameters with no matching declaration pass
	// through unmodified (templates with no parameters: block, or a
	// superset of inputs from a looser caller).
	for k, raw := range provided {
		if !seen[k] {
			out.Set(k, value.FromInterface(raw))
		}
	}
	return out, nil
}

func coerceParam(p pipeline.Parameter, raw interface{}) (value.Value, error) {
	v := value.FromInterface(raw)
	switch p.Type {
	case "", pipeline.ParamString:
		if v.Kind() != value.KindString {
			return value.String(v.AsString()), nil
		}
		return v, nil
	case pipeline.ParamNumber:
		switch v.Kind() {
		case value.KindNumber:
			return v, nil
		case value.KindString:
			n, err := strconv.ParseFloat(strings.TrimSpace(v.StringValue()), 64)
			if err != nil {
				return value.Null, &Error{Kind: ErrParameterType, Message: fmt.Sprintf("parameter %q: %q is not a number", p.Name, v.StringValue())}
			}
			return value.Number(n), nil
		default:
			return value.Null, &Error{Kind: ErrParameterType, Message: fmt.Sprintf("parameter %q: expected number", p.Name)}
		}
	case pipeline.ParamBoolean:
		switch v.Kind() {
		case value.KindBool:
			return v, nil
		case value.KindString:
			switch strings.ToLower(strings.TrimSpace(v.StringValue())) {
			case "true":
				return value.Bool(true), nil
			case "false":
				return value.Bool(false), nil
			}
			return value.Null, &Error{Kind: ErrParameterType, Message: fmt.Sprintf("parameter %q: %q is not a boolean", p.Name, v.StringValue())}
		default:
			return value.Null, &Error{Kind: ErrParameterType, Message: fmt.Sprintf("parameter %q: expected boolean", p.Name)}
		}
	default:
		// object, step, stepList, job, jobList, stage, stageList: passed
		// through as-is, structural shape is the caller's responsibility.
		return v, nil
	}
}

func valueAllowed(v value.Value, allowed []interface{}) bool {
	for _, a := range allowed {
		if value.Equal(v, value.FromInterface(a)) {
			return true
		}
	}
	return false
}

// contextWithParameters returns a shallow copy of base with Parameters
// replaced by bound — used when entering a template file's own scope.
func contextWithParameters(base *expression.Context, bound value.Value) *expression.Context {
	child := *base
	child.Parameters = bound
	return &child
}

// loadTemplateBody loads ref, resolves its parameters against provided,
// processes ${{ if/each }} directives over the node found at key, and
// decodes the result into out. The engine's include stack is popped
// before returning on every path.
func (e *Engine) loadTemplateBody(ref, key string, provided map[string]interface{}, ctx *expression.Context, out interface{}) error {
	root, _, err := e.loadRaw(ref)
	if err != nil {
		return err
	}
	defer e.pop()

	declared, err := declaredParameters(root)
	if err != nil {
		return err
	}
	bound, err := BindParameters(declared, provided)
	if err != nil {
		return err
	}
	childCtx := contextWithParameters(ctx, bound)

	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	node := mappingGet(doc, key)
	if node == nil {
		return nil
	}
	processed, err := processNode(node, childCtx)
	if err != nil {
		return err
	}
	if err := processed.Decode(out); err != nil {
		return &Error{Path: ref, Message: err.Error()}
	}
	return nil
}

// ExpandSteps replaces every template-reference entry in steps with
// its resolved body, recursively, in place of the reference.
func (e *Engine) ExpandSteps(steps []pipeline.Step, ctx *expression.Context) ([]pipeline.Step, error) {
	var out []pipeline.Step
	for _, s := range steps {
		if s.Action() != pipeline.ActionTemplate {
			out = append(out, s)
			continue
		}
		var body []pipeline.Step
		if err := e.loadTemplateBody(s.Template, "steps", s.TemplateParams, ctx, &body); err != nil {
			return nil, err
		}
		expanded, err := e.ExpandSteps(body, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// ExpandJobs replaces every job-template reference in jobs with its
// resolved body, recursively.
func (e *Engine) ExpandJobs(jobs []pipeline.Job, ctx *expression.Context) ([]pipeline.Job, error) {
	var out []pipeline.Job
	for _, j := range jobs {
		if j.Template == "" {
			steps, err := e.ExpandSteps(j.Steps, ctx)
			if err != nil {
				return nil, err
			}
			j.Steps = steps
			out = append(out, j)
			continue
		}
		var body []pipeline.Job
		if err := e.loadTemplateBody(j.Template, "jobs", j.Parameters, ctx, &body); err != nil {
			return nil, err
		}
		expanded, err := e.ExpandJobs(body, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// ExpandStages replaces every stage-template reference in stages with
// its resolved body, recursively.
func (e *Engine) ExpandStages(stages []pipeline.Stage, ctx *expression.Context) ([]pipeline.Stage, error) {
	var out []pipeline.Stage
	for _, st := range stages {
		if st.Template == "" {
			jobs, err := e.ExpandJobs(st.Jobs, ctx)
			if err != nil {
				return nil, err
			}
			st.Jobs = jobs
			out = append(out, st)
			continue
		}
		var body []pipeline.Stage
		if err := e.loadTemplateBody(st.Template, "stages", st.Parameters, ctx, &body); err != nil {
			return nil, err
		}
		expanded, err := e.ExpandStages(body, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// ExpandVariables replaces variable-template entries with the
// variables declared in the referenced file.
func (e *Engine) ExpandVariables(vars []pipeline.Variable, ctx *expression.Context) ([]pipeline.Variable, error) {
	var out []pipeline.Variable
	for _, v := range vars {
		if v.Kind() != pipeline.VariableTemplate {
			out = append(out, v)
			continue
		}
		var body []pipeline.Variable
		if err := e.loadTemplateBody(v.Template, "variables", v.Parameters, ctx, &body); err != nil {
			return nil, err
		}
		out = append(out, body...)
	}
	return out, nil
}

// mergeExtends applies a parent template's extends chain: the parent's
// stages/jobs/steps become the document's body, with the child's own
// top-level pool/trigger/pr/schedules/resources/name overriding the
// parent's, and variables merged (child entries shadow parent entries
// of the same name; non-keyvalue entries append).
func (e *Engine) mergeExtends(doc *pipeline.Document, ctx *expression.Context) error {
	if doc.Extends == nil {
		return nil
	}
	root, _, err := e.loadRaw(doc.Extends.Template)
	if err != nil {
		return err
	}
	defer e.pop()

	declared, err := declaredParameters(root)
	if err != nil {
		return err
	}
	bound, err := BindParameters(declared, doc.Extends.Parameters)
	if err != nil {
		return err
	}
	childCtx := contextWithParameters(ctx, bound)

	docNode := root
	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) == 1 {
		docNode = docNode.Content[0]
	}
	processed, err := processMapping(docNode, childCtx)
	if err != nil {
		return err
	}

	var parent pipeline.Document
	if err := processed.Decode(&parent); err != nil {
		return &Error{Path: doc.Extends.Template, Message: err.Error()}
	}
	if err := e.mergeExtends(&parent, childCtx); err != nil {
		return err
	}

	if doc.Name == "" {
		doc.Name = parent.Name
	}
	if doc.Trigger == nil {
		doc.Trigger = parent.Trigger
	}
	if doc.PR == nil {
		doc.PR = parent.PR
	}
	if len(doc.Schedules) == 0 {
		doc.Schedules = parent.Schedules
	}
	if doc.Resources == nil {
		doc.Resources = parent.Resources
	}
	if doc.Pool == nil {
		doc.Pool = parent.Pool
	}
	doc.Variables = mergeVariables(parent.Variables, doc.Variables)

	doc.Stages = parent.Stages
	doc.Jobs = parent.Jobs
	doc.Steps = parent.Steps
	doc.Extends = nil
	return nil
}

// mergeVariables shadows parent key/value variables by name with the
// child's and appends everything else (groups, templates, and any
// child key/value not present in the parent).
func mergeVariables(parent, child []pipeline.Variable) []pipeline.Variable {
	childByName := make(map[string]bool, len(child))
	for _, v := range child {
		if v.Kind() == pipeline.VariableKeyValue {
			childByName[v.Name] = true
		}
	}
	var out []pipeline.Variable
	for _, v := range parent {
		if v.Kind() == pipeline.VariableKeyValue && childByName[v.Name] {
			continue
		}
		out = append(out, v)
	}
	out = append(out, child...)
	return out
}

// ResolveDocument loads a top-level pipeline file, merges its extends
// chain, splices ${{ if/each }} directives, and expands every stage/
// job/step/variable template reference, returning a fully-resolved
// Document ready for normalization and validation.
func (e *Engine) ResolveDocument(ref string, params map[string]interface{}, ctx *expression.Context) (*pipeline.Document, error) {
	root, _, err := e.loadRaw(ref)
	if err != nil {
		return nil, err
	}
	defer e.pop()

	declared, err := declaredParameters(root)
	if err != nil {
		return nil, err
	}
	bound, err := BindParameters(declared, params)
	if err != nil {
		return nil, err
	}
	rootCtx := contextWithParameters(ctx, bound)

	docNode := root
	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) == 1 {
		docNode = docNode.Content[0]
	}
	processed, err := processMapping(docNode, rootCtx)
	if err != nil {
		return nil, err
	}

	var doc pipeline.Document
	if err := processed.Decode(&doc); err != nil {
		return nil, &Error{Path: ref, Message: err.Error()}
	}

	if err := e.mergeExtends(&doc, rootCtx); err != nil {
		return nil, err
	}

	vars, err := e.ExpandVariables(doc.Variables, rootCtx)
	if err != nil {
		return nil, err
	}
	doc.Variables = vars

	stages, err := e.ExpandStages(doc.Stages, rootCtx)
	if err != nil {
		return nil, err
	}
	doc.Stages = stages

	jobs, err := e.ExpandJobs(doc.Jobs, rootCtx)
	if err != nil {
		return nil, err
	}
	doc.Jobs = jobs

	steps, err := e.ExpandSteps(doc.Steps, rootCtx)
	if err != nil {
		return nil, err
	}
	doc.Steps = steps

	return &doc, nil
}
