package template

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/value"
)

type directiveKind int

const (
	directiveNone directiveKind = iota
	directiveIf
	directiveElseIf
	directiveElse
	directiveEach
)

// parseDirectiveKey inspects a mapping key's text for a
// ${{ if/elseif/else/each }} directive head, returning its kind and
// the unparsed remainder (a condition expression, or "V in E" for
// each).
func parseDirectiveKey(key string) (kind directiveKind, rest string, ok bool) {
	spans := expression.ExtractSpans(key)
	if len(spans) != 1 || spans[0].Kind != expression.SpanCompileTime {
		return directiveNone, "", false
	}
	body := strings.TrimSpace(spans[0].Body)
	lower := strings.ToLower(body)
	switch {
	case lower == "else":
		return directiveElse, "", true
	case strings.HasPrefix(lower, "elseif "):
		return directiveElseIf, strings.TrimSpace(body[len("elseif "):]), true
	case strings.HasPrefix(lower, "else if "):
		return directiveElseIf, strings.TrimSpace(body[len("else if "):]), true
	case strings.HasPrefix(lower, "if "):
		return directiveIf, strings.TrimSpace(body[len("if "):]), true
	case strings.HasPrefix(lower, "each "):
		return directiveEach, strings.TrimSpace(body[len("each "):]), true
	default:
		return directiveNone, "", false
	}
}

// splitEach parses "V in E" into the loop variable name and the
// collection expression.
func splitEach(rest string) (varName, collExpr string) {
	lower := strings.ToLower(rest)
	idx := strings.Index(lower, " in ")
	if idx < 0 {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+4:])
}

func isOneKeyMapping(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.MappingNode && len(n.Content) == 2
}

// processNode recursively resolves directives and compile-time scalar
// substitution anywhere in a raw YAML tree.
func processNode(n *yaml.Node, ctx *expression.Context) (*yaml.Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		out := &yaml.Node{Kind: yaml.DocumentNode, Tag: n.Tag}
		for _, c := range n.Content {
			cn, err := processNode(c, ctx)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, cn)
		}
		return out, nil
	case yaml.MappingNode:
		return processMapping(n, ctx)
	case yaml.SequenceNode:
		items, err := processSequence(n.Content, ctx)
		if err != nil {
			return nil, err
		}
		return &yaml.Node{Kind: yaml.SequenceNode, Tag: n.Tag, Style: n.Style, Content: items}, nil
	case yaml.ScalarNode:
		return processScalar(n, ctx)
	default:
		return n, nil
	}
}

func processScalar(n *yaml.Node, ctx *expression.Context) (*yaml.Node, error) {
	if n.Tag == "!!str" || n.Tag == "" {
		if expression.HasDirectives(n.Value) {
			resolved, err := eng.InterpolateString(n.Value, ctx)
			if err != nil {
				return nil, &Error{Message: err.Error()}
			}
			out := *n
			out.Value = resolved
			return &out, nil
		}
	}
	return n, nil
}

// processMapping walks a mapping's key/value pairs, splicing directive
// keys' bodies into the surrounding mapping in place of the directive
// itself.
func processMapping(n *yaml.Node, ctx *expression.Context) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: n.Tag, Style: n.Style}
	i := 0
	for i+1 < len(n.Content) {
		key, val := n.Content[i], n.Content[i+1]
		kind, rest, ok := parseDirectiveKey(key.Value)
		if !ok {
			pk, err := processScalar(key, ctx)
			if err != nil {
				return nil, err
			}
			pv, err := processNode(val, ctx)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, pk, pv)
			i += 2
			continue
		}

		switch kind {
		case directiveEach:
			varName, collExpr := splitEach(rest)
			entries, err := expandEachMapping(varName, collExpr, val, ctx)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, entries...)
			i += 2
		default: // if/elseif/else chain
			consumed, entries, err := resolveIfChainMapping(n.Content[i:], ctx)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, entries...)
			i += consumed
		}
	}
	return out, nil
}

// resolveIfChainMapping consumes one if/elseif*/else? chain starting
// at pairs[0:2], returning how many nodes (keys+values, i.e. an even
// count) were consumed and the mapping entries from the first truthy
// branch (or none).
func resolveIfChainMapping(pairs []*yaml.Node, ctx *expression.Context) (int, []*yaml.Node, error) {
	consumed := 0
	emitted := false
	var result []*yaml.Node

	i := 0
	first := true
	for i+1 < len(pairs) {
		key, val := pairs[i], pairs[i+1]
		kind, rest, ok := parseDirectiveKey(key.Value)
		if !ok {
			break
		}
		if first {
			if kind != directiveIf {
				break
			}
			first = false
		} else if kind != directiveElseIf && kind != directiveElse {
			break
		}

		take := false
		if !emitted {
			if kind == directiveElse {
				take = true
			} else {
				v, err := eng.EvaluateCompileTime(rest, ctx)
				if err != nil {
					return 0, nil, &Error{Kind: ErrExpression, Message: err.Error()}
				}
				take = v.IsTruthy()
			}
		}
		if take {
			entries, err := mergeMappingBody(val, ctx)
			if err != nil {
				return 0, nil, err
			}
			result = entries
			emitted = true
		}

		consumed += 2
		i += 2
		if kind == directiveElse {
			break
		}
	}
	return consumed, result, nil
}

func mergeMappingBody(val *yaml.Node, ctx *expression.Context) ([]*yaml.Node, error) {
	if val == nil || val.Kind != yaml.MappingNode {
		return nil, nil
	}
	processed, err := processMapping(val, ctx)
	if err != nil {
		return nil, err
	}
	return processed.Content, nil
}

func expandEachMapping(varName, collExpr string, val *yaml.Node, ctx *expression.Context) ([]*yaml.Node, error) {
	coll, err := eng.EvaluateCompileTime(collExpr, ctx)
	if err != nil {
		return nil, &Error{Kind: ErrExpression, Message: err.Error()}
	}
	var out []*yaml.Node
	err = iterate(coll, func(_ int, key string, item value.Value) error {
		iterCtx := childContext(ctx, varName, loopValue(coll, key, item))
		entries, err := mergeMappingBody(val, iterCtx)
		if err != nil {
			return err
		}
		out = append(out, entries...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loopValue returns the ${{ each V in E }} binding for one iteration:
// array elements bind directly, object entries bind as a {key, value}
// pair (accessed as V.key / V.value), matching upstream each semantics.
func loopValue(coll value.Value, key string, item value.Value) value.Value {
	if coll.Kind() != value.KindObject {
		return item
	}
	pair := value.NewObject()
	pair.Set("key", value.String(key))
	pair.Set("value", item)
	return pair
}

// processSequence walks a sequence's items, splicing directive items'
// expanded bodies in place of the directive.
func processSequence(items []*yaml.Node, ctx *expression.Context) ([]*yaml.Node, error) {
	var out []*yaml.Node
	i := 0
	for i < len(items) {
		item := items[i]
		if isOneKeyMapping(item) {
			if kind, rest, ok := parseDirectiveKey(item.Content[0].Value); ok {
				switch kind {
				case directiveEach:
					varName, collExpr := splitEach(rest)
					expanded, err := expandEachSequence(varName, collExpr, item.Content[1], ctx)
					if err != nil {
						return nil, err
					}
					out = append(out, expanded...)
					i++
					continue
				case directiveIf:
					consumed, expanded, err := resolveIfChainSequence(items[i:], ctx)
					if err != nil {
						return nil, err
					}
					out = append(out, expanded...)
					i += consumed
					continue
				}
			}
		}
		pn, err := processNode(item, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, pn)
		i++
	}
	return out, nil
}

func resolveIfChainSequence(items []*yaml.Node, ctx *expression.Context) (int, []*yaml.Node, error) {
	consumed := 0
	emitted := false
	var result []*yaml.Node

	i := 0
	first := true
	for i < len(items) {
		item := items[i]
		if !isOneKeyMapping(item) {
			break
		}
		kind, rest, ok := parseDirectiveKey(item.Content[0].Value)
		if !ok {
			break
		}
		if first {
			if kind != directiveIf {
				break
			}
			first = false
		} else if kind != directiveElseIf && kind != directiveElse {
			break
		}

		take := false
		if !emitted {
			if kind == directiveElse {
				take = true
			} else {
				v, err := eng.EvaluateCompileTime(rest, ctx)
				if err != nil {
					return 0, nil, &Error{Kind: ErrExpression, Message: err.Error()}
				}
				take = v.IsTruthy()
			}
		}
		if take {
			body := item.Content[1]
			var bodyItems []*yaml.Node
			if body.Kind == yaml.SequenceNode {
				bodyItems = body.Content
			}
			expanded, err := processSequence(bodyItems, ctx)
			if err != nil {
				return 0, nil, err
			}
			result = expanded
			emitted = true
		}

		consumed++
		i++
		if kind == directiveElse {
			break
		}
	}
	return consumed, result, nil
}

func expandEachSequence(varName, collExpr string, body *yaml.Node, ctx *expression.Context) ([]*yaml.Node, error) {
	coll, err := eng.EvaluateCompileTime(collExpr, ctx)
	if err != nil {
		return nil, &Error{Kind: ErrExpression, Message: err.Error()}
	}
	var bodyItems []*yaml.Node
	if body != nil && body.Kind == yaml.SequenceNode {
		bodyItems = body.Content
	}
	var out []*yaml.Node
	err = iterate(coll, func(_ int, key string, item value.Value) error {
		iterCtx := childContext(ctx, varName, loopValue(coll, key, item))
		expanded, err := processSequence(bodyItems, iterCtx)
		if err != nil {
			return err
		}
		out = append(out, expanded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// iterate calls fn once per array element (index, "", item) or object
// entry ("", key, item), in order.
func iterate(coll value.Value, fn func(index int, key string, item value.Value) error) error {
	switch coll.Kind() {
	case value.KindArray:
		for i, item := range coll.Items() {
			if err := fn(i, "", item); err != nil {
				return err
			}
		}
	case value.KindObject:
		for _, k := range coll.Keys() {
			v, _ := coll.Get(k)
			if err := fn(0, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// childContext returns a copy of ctx with its IterationScope extended
// to bind varName to item (parameters-scope shadowing per the
// evaluator's head-identifier lookup rules).
func childContext(ctx *expression.Context, varName string, item value.Value) *expression.Context {
	scope := value.NewObject()
	if !ctx.IterationScope.IsNull() {
		for _, k := range ctx.IterationScope.Keys() {
			v, _ := ctx.IterationScope.Get(k)
			scope.Set(k, v)
		}
	}
	scope.Set(varName, item)
	child := *ctx
	child.IterationScope = scope
	return &child
}
