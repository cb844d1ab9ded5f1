package expression

import (
	"fmt"
	"strings"

	"github.com/azlocal/pipeline/pkg/value"
)

// EvalError wraps a failure during AST evaluation with the offending
// node's rough position context (most evaluation errors are semantic,
// not positional, so Msg alone usually suffices).
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string { return "expression: " + e.Msg }

func evalErr(format string, args ...interface{}) error {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

// Eval evaluates a parsed AST against a context.
func Eval(n Node, ctx *Context) (value.Value, error) {
	switch t := n.(type) {
	case *Literal:
		return evalLiteral(t), nil
	case *Reference:
		return evalReference(t, ctx)
	case *memberOn:
		base, err := Eval(t.Base, ctx)
		if err != nil {
			return value.Null, err
		}
		return memberAccess(base, t.Member)
	case *indexOn:
		base, err := Eval(t.Base, ctx)
		if err != nil {
			return value.Null, err
		}
		idx, err := Eval(t.Index, ctx)
		if err != nil {
			return value.Null, err
		}
		return indexAccess(base, idx)
	case *Unary:
		return evalUnary(t, ctx)
	case *Binary:
		return evalBinary(t, ctx)
	case *Ternary:
		cond, err := Eval(t.Cond, ctx)
		if err != nil {
			return value.Null, err
		}
		if cond.IsTruthy() {
			return Eval(t.Then, ctx)
		}
		return Eval(t.Else, ctx)
	case *ArrayLit:
		items := make([]value.Value, len(t.Items))
		for i, it := range t.Items {
			v, err := Eval(it, ctx)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.Array(items), nil
	case *ObjectLit:
		obj := value.NewObject()
		for i, k := range t.Keys {
			v, err := Eval(t.Values[i], ctx)
			if err != nil {
				return value.Null, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	case *Call:
		args := make([]value.Value, len(t.Args))
		for i, a := range t.Args {
			v, err := Eval(a, ctx)
			if err != nil {
				return value.Null, err
			}
			args[i] = v
		}
		return CallBuiltin(t.Name, args, ctx)
	default:
		return value.Null, evalErr("unsupported node type %T", n)
	}
}

func evalLiteral(l *Literal) value.Value {
	switch v := l.Val.(type) {
	case nil:
		return value.Null
	case bool:
		return value.Bool(v)
	case float64:
		return value.Number(v)
	case string:
		return value.String(v)
	default:
		return value.Null
	}
}

// evalReference resolves a Reference's head identifier, then walks its
// accessor chain. Head resolution order (case-insensitive primary
// names excepted):
//  1. IterationScope binding, unless the head IS a primary name
//     (variables/parameters/...) — those always mean the full context.
//  2. A primary context name.
//  3. Bare lookup in variables, then parameters.
//  4. Empty string (intentional ADO-compatible fallback).
func evalReference(r *Reference, ctx *Context) (value.Value, error) {
	head := resolveHead(r.Head, ctx)
	cur := head
	var err error
	for _, acc := range r.Parts {
		if acc.Member != "" {
			cur, err = memberAccess(cur, acc.Member)
		} else {
			var idx value.Value
			idx, err = Eval(acc.Index, ctx)
			if err != nil {
				return value.Null, err
			}
			cur, err = indexAccess(cur, idx)
		}
		if err != nil {
			return value.Null, err
		}
	}
	return cur, nil
}

func resolveHead(name string, ctx *Context) value.Value {
	if !isPrimaryName(name) {
		if !ctx.IterationScope.IsNull() {
			if v, ok := ctx.IterationScope.Get(name); ok {
				return v
			}
		}
	}
	if fn, ok := primaryNames[strings.ToLower(name)]; ok {
		return fn(ctx)
	}
	if v, ok := ctx.Variables.Get(name); ok {
		return v
	}
	if v, ok := ctx.Parameters.Get(name); ok {
		return v
	}
	return value.String("")
}

// memberAccess implements `.name` access: Object -> Get (Null if
// missing); Array -> only `length` is legal; String -> only `length`
// is legal (rune count).
func memberAccess(base value.Value, name string) (value.Value, error) {
	switch base.Kind() {
	case value.KindObject:
		if v, ok := base.Get(name); ok {
			return v, nil
		}
		return value.Null, nil
	case value.KindArray:
		if strings.EqualFold(name, "length") {
			n, _ := base.Length()
			return value.Number(float64(n)), nil
		}
		return value.Null, evalErr("property %q is not valid on an array (only 'length')", name)
	case value.KindString:
		if strings.EqualFold(name, "length") {
			n, _ := base.Length()
			return value.Number(float64(n)), nil
		}
		return value.Null, evalErr("property %q is not valid on a string (only 'length')", name)
	case value.KindNull:
		return value.Null, nil
	default:
		return value.Null, evalErr("cannot access property %q on %s", name, base.Kind())
	}
}

// indexAccess implements `[expr]` access: Array requires a numeric
// index; Object stringifies the index as a key.
func indexAccess(base value.Value, idx value.Value) (value.Value, error) {
	switch base.Kind() {
	case value.KindArray:
		if idx.Kind() != value.KindNumber {
			return value.Null, evalErr("array index must be numeric, got %s", idx.Kind())
		}
		i := int(idx.NumberValue())
		v, ok := base.Index(i)
		if !ok {
			return value.Null, nil
		}
		return v, nil
	case value.KindObject:
		key := idx.AsString()
		if v, ok := base.Get(key); ok {
			return v, nil
		}
		return value.Null, nil
	case value.KindNull:
		return value.Null, nil
	default:
		return value.Null, evalErr("cannot index into %s", base.Kind())
	}
}

func evalUnary(u *Unary, ctx *Context) (value.Value, error) {
	v, err := Eval(u.Expr, ctx)
	if err != nil {
		return value.Null, err
	}
	switch u.Op {
	case TokNot:
		return value.Bool(!v.IsTruthy()), nil
	case TokMinus:
		return value.Number(-v.AsNumber()), nil
	default:
		return value.Null, evalErr("unsupported unary operator")
	}
}

func evalBinary(b *Binary, ctx *Context) (value.Value, error) {
	// && and || short-circuit and evaluate to the boolean of each
	// side's truthiness (not the raw operand).
	if b.Op == TokAnd {
		l, err := Eval(b.Left, ctx)
		if err != nil {
			return value.Null, err
		}
		if !l.IsTruthy() {
			return value.Bool(false), nil
		}
		r, err := Eval(b.Right, ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(r.IsTruthy()), nil
	}
	if b.Op == TokOr {
		l, err := Eval(b.Left, ctx)
		if err != nil {
			return value.Null, err
		}
		if l.IsTruthy() {
			return value.Bool(true), nil
		}
		r, err := Eval(b.Right, ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(r.IsTruthy()), nil
	}

	l, err := Eval(b.Left, ctx)
	if err != nil {
		return value.Null, err
	}
	r, err := Eval(b.Right, ctx)
	if err != nil {
		return value.Null, err
	}

	switch b.Op {
	case TokEq:
		return value.Bool(value.Equal(l, r)), nil
	case TokNe:
		return value.Bool(!value.Equal(l, r)), nil
	case TokLt:
		return value.Bool(value.Compare(l, r) < 0), nil
	case TokLe:
		return value.Bool(value.Compare(l, r) <= 0), nil
	case TokGt:
		return value.Bool(value.Compare(l, r) > 0), nil
	case TokGe:
		return value.Bool(value.Compare(l, r) >= 0), nil
	case TokPlus:
		if l.Kind() == value.KindString || r.Kind() == value.KindString {
			return value.String(l.AsString() + r.AsString()), nil
		}
		return value.Number(l.AsNumber() + r.AsNumber()), nil
	case TokMinus:
		return value.Number(l.AsNumber() - r.AsNumber()), nil
	case TokStar:
		return value.Number(l.AsNumber() * r.AsNumber()), nil
	case TokSlash:
		rn := r.AsNumber()
		if rn == 0 {
			return value.Null, evalErr("division by zero")
		}
		return value.Number(l.AsNumber() / rn), nil
	case TokPercent:
		rn := r.AsNumber()
		if rn == 0 {
			return value.Null, evalErr("modulo by zero")
		}
		return value.Number(float64(int64(l.AsNumber()) % int64(rn))), nil
	default:
		return value.Null, evalErr("unsupported binary operator")
	}
}
