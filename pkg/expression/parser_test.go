package expression

import "testing"

func TestParsePrecedence(t *testing.T) {
	n, err := Parse("1 + 2 * 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bin, ok := n.(*Binary)
	if !ok || bin.Op != TokPlus {
		t.Fatalf("expected top-level '+', got %#v", n)
	}
	rhs, ok := bin.Right.(*Binary)
	if !ok || rhs.Op != TokStar {
		t.Fatalf("expected right side to be '*', got %#v", bin.Right)
	}
}

func TestParseTernaryRightAssociative(t *testing.T) {
	n, err := Parse("true ? 1 : false ? 2 : 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tern, ok := n.(*Ternary)
	if !ok {
		t.Fatalf("expected top-level Ternary, got %#v", n)
	}
	if _, ok := tern.Else.(*Ternary); !ok {
		t.Fatalf("expected nested ternary in else-branch, got %#v", tern.Else)
	}
}

func TestParseCall(t *testing.T) {
	n, err := Parse("eq(variables.build, 'main')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := n.(*Call)
	if !ok || call.Name != "eq" || len(call.Args) != 2 {
		t.Fatalf("got %#v, want Call(eq, 2 args)", n)
	}
}

func TestParseMethodCallSugar(t *testing.T) {
	n, err := Parse("variables.build.startsWith('rel')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := n.(*Call)
	if !ok || call.Name != "startsWith" || len(call.Args) != 2 {
		t.Fatalf("got %#v, want Call(startsWith, receiver+1 arg)", n)
	}
	if _, ok := call.Args[0].(*Reference); !ok {
		t.Fatalf("expected receiver prepended as first arg, got %#v", call.Args[0])
	}
}

func TestParseIndexAndMember(t *testing.T) {
	n, err := Parse("steps['build'].outputs.version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref, ok := n.(*Reference)
	if !ok {
		t.Fatalf("got %#v, want Reference", n)
	}
	if ref.Head != "steps" || len(ref.Parts) != 3 {
		t.Fatalf("got %+v, want head=steps with 3 accessors", ref)
	}
	if ref.Parts[0].Index == nil {
		t.Fatalf("expected first accessor to be an index")
	}
	if ref.Parts[1].Member != "outputs" {
		t.Fatalf("expected second accessor member 'outputs', got %q", ref.Parts[1].Member)
	}
}

func TestParseTrailingGarbageIsError(t *testing.T) {
	if _, err := Parse("1 + 2 )"); err == nil {
		t.Fatal("expected error for unconsumed trailing token")
	}
}

func TestParseArrayAndObjectLiterals(t *testing.T) {
	n, err := Parse("[1, 2, 3]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, ok := n.(*ArrayLit)
	if !ok || len(arr.Items) != 3 {
		t.Fatalf("got %#v, want ArrayLit with 3 items", n)
	}

	n, err = Parse("{ a: 1, b: 'x' }")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, ok := n.(*ObjectLit)
	if !ok || len(obj.Keys) != 2 {
		t.Fatalf("got %#v, want ObjectLit with 2 keys", n)
	}
}
