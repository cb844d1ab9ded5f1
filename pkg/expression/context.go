package expression

import (
	"strings"

	"github.com/azlocal/pipeline/pkg/value"
)

// Context is the typed surface the evaluator resolves identifiers
// against: variables, parameters, pipeline/stage/job, steps,
// dependencies, env, resources — see spec §6 "Expression context
// surface". IterationScope holds ${{ each }} loop variables, which
// shadow everything except the primary context names themselves
// (variables/parameters/...).
type Context struct {
	Variables      value.Value // object
	Parameters     value.Value // object
	Pipeline       value.Value // object {name, workspace}
	Stage          value.Value // object or Null
	Job            value.Value // object or Null
	Steps          value.Value // object: name -> {outputs, status}
	Dependencies   value.Value // object {stages:{}, jobs:{}}
	Env            value.Value // object
	Resources      value.Value // object {pipelines, repositories}
	IterationScope value.Value // object: ephemeral ${{ each }} bindings
}

// primaryNames lists the context surface roots; identifier lookup at
// the head of a Reference checks these (case-insensitively) before
// falling back to bare-name lookup in variables/parameters.
var primaryNames = map[string]func(*Context) value.Value{
	"variables":    func(c *Context) value.Value { return c.Variables },
	"parameters":   func(c *Context) value.Value { return c.Parameters },
	"pipeline":     func(c *Context) value.Value { return c.Pipeline },
	"stage":        func(c *Context) value.Value { return c.Stage },
	"job":          func(c *Context) value.Value { return c.Job },
	"steps":        func(c *Context) value.Value { return c.Steps },
	"dependencies": func(c *Context) value.Value { return c.Dependencies },
	"env":          func(c *Context) value.Value { return c.Env },
	"resources":    func(c *Context) value.Value { return c.Resources },
}

func isPrimaryName(name string) bool {
	_, ok := primaryNames[strings.ToLower(name)]
	return ok
}
