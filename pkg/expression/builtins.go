package expression

import (
	"strconv"
	"strings"

	"github.com/azlocal/pipeline/pkg/value"
)

// builtinFunc is a built-in function implementation over already-
// evaluated arguments.
type builtinFunc func(args []value.Value, ctx *Context) (value.Value, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"eq":                biEq,
		"ne":                biNe,
		"lt":                biLt,
		"le":                biLe,
		"gt":                biGt,
		"ge":                biGe,
		"and":               biAnd,
		"or":                biOr,
		"not":               biNot,
		"xor":               biXor,
		"in":                biIn,
		"notin":             biNotIn,
		"contains":          biContains,
		"startswith":        biStartsWith,
		"endswith":          biEndsWith,
		"format":            biFormat,
		"join":              biJoin,
		"replace":           biReplace,
		"split":             biSplit,
		"lower":             biLower,
		"upper":             biUpper,
		"trim":              biTrim,
		"length":            biLength,
		"coalesce":          biCoalesce,
		"iif":               biIif,
		"counter":           biCounter,
		"converttojson":     biConvertToJSON,
		"succeeded":         biSucceeded,
		"failed":            biFailed,
		"canceled":          biCanceled,
		"always":            biAlways,
		"succeededorfailed": biSucceededOrFailed,
	}
}

// CallBuiltin dispatches a function call by name, case-insensitively,
// matching Azure DevOps' function-name resolution.
func CallBuiltin(name string, args []value.Value, ctx *Context) (value.Value, error) {
	fn, ok := builtins[strings.ToLower(name)]
	if !ok {
		return value.Null, evalErr("unknown function %q", name)
	}
	return fn(args, ctx)
}

func arity(args []value.Value, n int, name string) error {
	if len(args) != n {
		return evalErr("%s() expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func minArity(args []value.Value, n int, name string) error {
	if len(args) < n {
		return evalErr("%s() expects at least %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func biEq(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "eq"); err != nil {
		return value.Null, err
	}
	return value.Bool(value.Equal(a[0], a[1])), nil
}

func biNe(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "ne"); err != nil {
		return value.Null, err
	}
	return value.Bool(!value.Equal(a[0], a[1])), nil
}

func biLt(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "lt"); err != nil {
		return value.Null, err
	}
	return value.Bool(value.Compare(a[0], a[1]) < 0), nil
}

func biLe(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "le"); err != nil {
		return value.Null, err
	}
	return value.Bool(value.Compare(a[0], a[1]) <= 0), nil
}

func biGt(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "gt"); err != nil {
		return value.Null, err
	}
	return value.Bool(value.Compare(a[0], a[1]) > 0), nil
}

func biGe(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "ge"); err != nil {
		return value.Null, err
	}
	return value.Bool(value.Compare(a[0], a[1]) >= 0), nil
}

// biAnd/biOr take variadic arguments (unlike the && / || operators,
// which are binary-only at the syntax level) matching upstream's
// and(a, b, c, ...) builtin.
func biAnd(a []value.Value, _ *Context) (value.Value, error) {
	if err := minArity(a, 2, "and"); err != nil {
		return value.Null, err
	}
	for _, v := range a {
		if !v.IsTruthy() {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func biOr(a []value.Value, _ *Context) (value.Value, error) {
	if err := minArity(a, 2, "or"); err != nil {
		return value.Null, err
	}
	for _, v := range a {
		if v.IsTruthy() {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func biNot(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 1, "not"); err != nil {
		return value.Null, err
	}
	return value.Bool(!a[0].IsTruthy()), nil
}

func biXor(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "xor"); err != nil {
		return value.Null, err
	}
	return value.Bool(a[0].IsTruthy() != a[1].IsTruthy()), nil
}

func biIn(a []value.Value, _ *Context) (value.Value, error) {
	if err := minArity(a, 1, "in"); err != nil {
		return value.Null, err
	}
	for _, candidate := range a[1:] {
		if value.Equal(a[0], candidate) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func biNotIn(a []value.Value, ctx *Context) (value.Value, error) {
	v, err := biIn(a, ctx)
	if err != nil {
		return value.Null, err
	}
	return value.Bool(!v.BoolValue()), nil
}

func biContains(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "contains"); err != nil {
		return value.Null, err
	}
	return value.Bool(strings.Contains(strings.ToLower(a[0].AsString()), strings.ToLower(a[1].AsString()))), nil
}

func biStartsWith(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "startsWith"); err != nil {
		return value.Null, err
	}
	return value.Bool(strings.HasPrefix(strings.ToLower(a[0].AsString()), strings.ToLower(a[1].AsString()))), nil
}

func biEndsWith(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "endsWith"); err != nil {
		return value.Null, err
	}
	return value.Bool(strings.HasSuffix(strings.ToLower(a[0].AsString()), strings.ToLower(a[1].AsString()))), nil
}

// biFormat implements format('{0} of {1}', a, b) positional
// substitution. Unmatched indices are left as-is, matching upstream's
// tolerant behavior rather than erroring.
func biFormat(a []value.Value, _ *Context) (value.Value, error) {
	if err := minArity(a, 1, "format"); err != nil {
		return value.Null, err
	}
	tmpl := a[0].AsString()
	args := a[1:]
	var sb strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end > 0 {
				idxStr := tmpl[i+1 : i+end]
				if n, err := strconv.Atoi(idxStr); err == nil && n >= 0 && n < len(args) {
					sb.WriteString(args[n].AsString())
					i += end + 1
					continue
				}
			}
		}
		sb.WriteByte(tmpl[i])
		i++
	}
	return value.String(sb.String()), nil
}

func biJoin(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "join"); err != nil {
		return value.Null, err
	}
	sep := a[1].AsString()
	if a[0].Kind() != value.KindArray {
		return value.String(a[0].AsString()), nil
	}
	parts := make([]string, 0, len(a[0].Items()))
	for _, it := range a[0].Items() {
		parts = append(parts, it.AsString())
	}
	return value.String(strings.Join(parts, sep)), nil
}

func biReplace(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 3, "replace"); err != nil {
		return value.Null, err
	}
	return value.String(strings.ReplaceAll(a[0].AsString(), a[1].AsString(), a[2].AsString())), nil
}

func biSplit(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "split"); err != nil {
		return value.Null, err
	}
	parts := strings.Split(a[0].AsString(), a[1].AsString())
	items := make([]value.Value, len(parts))
	for i, p := range parts {
		items[i] = value.String(p)
	}
	return value.Array(items), nil
}

func biLower(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 1, "lower"); err != nil {
		return value.Null, err
	}
	return value.String(strings.ToLower(a[0].AsString())), nil
}

func biUpper(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 1, "upper"); err != nil {
		return value.Null, err
	}
	return value.String(strings.ToUpper(a[0].AsString())), nil
}

func biTrim(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 1, "trim"); err != nil {
		return value.Null, err
	}
	return value.String(strings.TrimSpace(a[0].AsString())), nil
}

func biLength(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 1, "length"); err != nil {
		return value.Null, err
	}
	n, ok := a[0].Length()
	if !ok {
		return value.Number(0), nil
	}
	return value.Number(float64(n)), nil
}

func biCoalesce(a []value.Value, _ *Context) (value.Value, error) {
	if err := minArity(a, 1, "coalesce"); err != nil {
		return value.Null, err
	}
	for _, v := range a {
		if !v.IsNull() {
			return v, nil
		}
	}
	return value.Null, nil
}

func biIif(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 3, "iif"); err != nil {
		return value.Null, err
	}
	if a[0].IsTruthy() {
		return a[1], nil
	}
	return a[2], nil
}

// biCounter is intentionally a stateless stub: the upstream counter()
// built-in persists a named, prefix-scoped integer across pipeline
// runs. Without a run-history store to back it, each call returns the
// starting seed unchanged; pipelines relying on cross-run increment
// behavior are out of scope.
func biCounter(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 2, "counter"); err != nil {
		return value.Null, err
	}
	return a[1], nil
}

func biConvertToJSON(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 1, "convertToJson"); err != nil {
		return value.Null, err
	}
	return value.String(a[0].ToJSON()), nil
}

// biSucceeded/biFailed/biCanceled/biAlways/biSucceededOrFailed read
// Job/Stage aggregate status from context rather than an argument;
// they're the zero-arg status predicates used in step/job conditions.
func biSucceeded(a []value.Value, ctx *Context) (value.Value, error) {
	if err := arity(a, 0, "succeeded"); err != nil {
		return value.Null, err
	}
	return value.Bool(statusIs(ctx, "Succeeded", "SucceededWithIssues")), nil
}

func biFailed(a []value.Value, ctx *Context) (value.Value, error) {
	if err := arity(a, 0, "failed"); err != nil {
		return value.Null, err
	}
	return value.Bool(statusIs(ctx, "Failed")), nil
}

func biCanceled(a []value.Value, ctx *Context) (value.Value, error) {
	if err := arity(a, 0, "canceled"); err != nil {
		return value.Null, err
	}
	return value.Bool(statusIs(ctx, "Canceled")), nil
}

func biAlways(a []value.Value, _ *Context) (value.Value, error) {
	if err := arity(a, 0, "always"); err != nil {
		return value.Null, err
	}
	return value.Bool(true), nil
}

func biSucceededOrFailed(a []value.Value, ctx *Context) (value.Value, error) {
	if err := arity(a, 0, "succeededOrFailed"); err != nil {
		return value.Null, err
	}
	return value.Bool(statusIs(ctx, "Succeeded", "SucceededWithIssues", "Failed")), nil
}

func statusIs(ctx *Context, want ...string) bool {
	job := ctx.Job
	if job.IsNull() {
		job = ctx.Stage
	}
	st, ok := job.Get("status")
	if !ok {
		return len(want) > 0 && want[0] == "Succeeded"
	}
	cur := st.AsString()
	for _, w := range want {
		if strings.EqualFold(cur, w) {
			return true
		}
	}
	return false
}
