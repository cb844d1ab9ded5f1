package template

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/azlocal/pipeline/pkg/expression"
	"github.com/azlocal/pipeline/pkg/value"
)

func parseYAML(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(s), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	doc := &n
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	return doc
}

func emptyContext() *expression.Context {
	return &expression.Context{
		Variables:      value.NewObject(),
		Parameters:     value.NewObject(),
		Pipeline:       value.NewObject(),
		Stage:          value.Null,
		Job:            value.Null,
		Steps:          value.NewObject(),
		Dependencies:   value.NewObject(),
		Env:            value.NewObject(),
		Resources:      value.NewObject(),
		IterationScope: value.NewObject(),
	}
}

func decodeSteps(t *testing.T, n *yaml.Node) []string {
	t.Helper()
	var raw []map[string]interface{}
	if err := n.Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var out []string
	for _, m := range raw {
		if s, ok := m["script"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestProcessSequenceIfTrue(t *testing.T) {
	n := parseYAML(t, `
- ${{ if eq(1, 1) }}:
  - script: a
- script: b
`)
	ctx := emptyContext()
	out, err := processSequence(n.Content, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeSteps(t, &yaml.Node{Kind: yaml.SequenceNode, Content: out})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestProcessSequenceIfFalseElse(t *testing.T) {
	n := parseYAML(t, `
- ${{ if eq(1, 2) }}:
  - script: a
- ${{ else }}:
  - script: c
- script: b
`)
	ctx := emptyContext()
	out, err := processSequence(n.Content, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeSteps(t, &yaml.Node{Kind: yaml.SequenceNode, Content: out})
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Fatalf("got %v, want [c b]", got)
	}
}

func TestProcessSequenceElseIfChain(t *testing.T) {
	n := parseYAML(t, `
- ${{ if eq(1, 2) }}:
  - script: a
- ${{ elseif eq(1, 1) }}:
  - script: b
- ${{ else }}:
  - script: c
`)
	ctx := emptyContext()
	out, err := processSequence(n.Content, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeSteps(t, &yaml.Node{Kind: yaml.SequenceNode, Content: out})
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("got %v, want [b]", got)
	}
}

func TestProcessSequenceEachArray(t *testing.T) {
	n := parseYAML(t, `
- ${{ each x in parameters.items }}:
  - script: ${{ x }}
`)
	ctx := emptyContext()
	items := value.Array([]value.Value{value.String("one"), value.String("two")})
	ctx.Parameters.Set("items", items)
	out, err := processSequence(n.Content, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeSteps(t, &yaml.Node{Kind: yaml.SequenceNode, Content: out})
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v, want [one two]", got)
	}
}

func TestProcessMappingIfSplicesEntries(t *testing.T) {
	n := parseYAML(t, `
a: 1
${{ if eq(1, 1) }}:
  b: 2
  c: 3
`)
	ctx := emptyContext()
	out, err := processMapping(n, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]interface{}
	if err := out.Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("got %v, want 3 keys", raw)
	}
}

func TestProcessMappingEachObject(t *testing.T) {
	n := parseYAML(t, `
${{ each pair in parameters.vars }}:
  ${{ pair.key }}: ${{ pair.value }}
`)
	ctx := emptyContext()
	vars := value.NewObject()
	vars.Set("x", value.String("1"))
	ctx.Parameters.Set("vars", vars)
	out, err := processMapping(n, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]interface{}
	if err := out.Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["x"] != "1" {
		t.Fatalf("got %v, want x=1", raw)
	}
}

func TestParseDirectiveKeyVariants(t *testing.T) {
	cases := []struct {
		key  string
		kind directiveKind
		rest string
	}{
		{"${{ if eq(1,1) }}", directiveIf, "eq(1,1)"},
		{"${{ elseif eq(1,1) }}", directiveElseIf, "eq(1,1)"},
		{"${{ else if eq(1,1) }}", directiveElseIf, "eq(1,1)"},
		{"${{ else }}", directiveElse, ""},
		{"${{ each x in parameters.y }}", directiveEach, "x in parameters.y"},
	}
	for _, c := range cases {
		kind, rest, ok := parseDirectiveKey(c.key)
		if !ok || kind != c.kind || rest != c.rest {
			t.Errorf("parseDirectiveKey(%q) = (%v, %q, %v), want (%v, %q, true)", c.key, kind, rest, ok, c.kind, c.rest)
		}
	}
}

func TestParseDirectiveKeyNotADirective(t *testing.T) {
	if _, _, ok := parseDirectiveKey("script"); ok {
		t.Error("plain key should not parse as a directive")
	}
}
