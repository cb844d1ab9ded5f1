package expression

import (
	"strings"

	"github.com/azlocal/pipeline/pkg/value"
)

// Engine is the public entry point for evaluating expression bodies
// and substituting macros against a Context. It holds no state of its
// own; it exists so callers (the template and runtime packages) have a
// single import to depend on rather than reaching into lexer/parser
// internals directly.
type Engine struct{}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine { return &Engine{} }

// EvaluateCompileTime parses and evaluates a ${{ ... }} body. Callers
// pass the body with delimiters already stripped (see ExtractSpans).
func (e *Engine) EvaluateCompileTime(body string, ctx *Context) (value.Value, error) {
	return e.evaluate(body, ctx)
}

// EvaluateRuntime parses and evaluates a $[ ... ] body. The grammar is
// identical to compile-time; only the caller's timing differs.
func (e *Engine) EvaluateRuntime(body string, ctx *Context) (value.Value, error) {
	return e.evaluate(body, ctx)
}

func (e *Engine) evaluate(body string, ctx *Context) (value.Value, error) {
	node, err := Parse(body)
	if err != nil {
		return value.Null, err
	}
	return Eval(node, ctx)
}

// InterpolateString resolves every ${{ }} / $[ ] span in s against ctx
// and splices literal text and $( ) macro references through
// unchanged, for callers that want compile+runtime expressions handled
// uniformly inline within a larger string (a rare construct upstream
// restricts to a handful of fields; most expressions occupy the whole
// scalar). $( ) spans are left as literal text here — macro resolution
// only happens at execution time via SubstituteMacros, once step
// output variables exist.
func (e *Engine) InterpolateString(s string, ctx *Context) (string, error) {
	spans := ExtractSpans(s)
	var sb strings.Builder
	for _, sp := range spans {
		switch sp.Kind {
		case SpanText:
			sb.WriteString(sp.Text)
		case SpanCompileTime, SpanRuntime:
			v, err := e.evaluate(sp.Body, ctx)
			if err != nil {
				return "", err
			}
			sb.WriteString(v.AsString())
		case SpanMacro:
			sb.WriteString("$(" + sp.Body + ")")
		}
	}
	return sb.String(), nil
}

// SubstituteMacros resolves every $( name ) in s using the runtime
// macro lookup order: variables -> parameters -> env -> whole
// dotted-name treated as a single variable key -> empty string. Unlike
// ${{ }}/$[ ], macro bodies are bare dotted names, never full
// expressions, matching upstream's $(name) substitution.
func (e *Engine) SubstituteMacros(s string, ctx *Context) string {
	spans := ExtractSpans(s)
	var sb strings.Builder
	for _, sp := range spans {
		switch sp.Kind {
		case SpanText:
			sb.WriteString(sp.Text)
		case SpanMacro:
			sb.WriteString(resolveMacro(sp.Body, ctx))
		case SpanCompileTime:
			// Already resolved upstream of macro substitution in the
			// normal pipeline; re-emitted with its own delimiters if
			// encountered here.
			sb.WriteString("${{ " + sp.Body + " }}")
		case SpanRuntime:
			sb.WriteString("$[ " + sp.Body + " ]")
		}
	}
	return sb.String()
}

func resolveMacro(name string, ctx *Context) string {
	key := strings.TrimSpace(name)
	parts := strings.Split(key, ".")
	for _, root := range []value.Value{ctx.Variables, ctx.Parameters, ctx.Env} {
		cur, ok := root, true
		for _, p := range parts {
			if cur, ok = cur.Get(p); !ok {
				break
			}
		}
		if ok {
			return cur.AsString()
		}
	}
	if v, ok := ctx.Variables.Get(key); ok {
		return v.AsString()
	}
	return ""
}
