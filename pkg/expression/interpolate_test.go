package expression

import "testing"

func TestExtractSpansMixed(t *testing.T) {
	spans := ExtractSpans("prefix-${{ variables.build }}-$(name)-mid-$[ 1 + 1 ]-suffix")
	var kinds []SpanKind
	for _, s := range spans {
		kinds = append(kinds, s.Kind)
	}
	want := []SpanKind{SpanText, SpanCompileTime, SpanText, SpanMacro, SpanText, SpanRuntime, SpanText}
	if len(kinds) != len(want) {
		t.Fatalf("got %d spans %v, want %d", len(kinds), kinds, len(want))
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("span %d: got %v, want %v", i, kinds[i], k)
		}
	}
}

func TestExtractSpansNestedBraces(t *testing.T) {
	spans := ExtractSpans("${{ { a: 1, b: 2 } }}")
	if len(spans) != 1 || spans[0].Kind != SpanCompileTime {
		t.Fatalf("got %+v, want single compile-time span", spans)
	}
	if spans[0].Body != "{ a: 1, b: 2 }" {
		t.Errorf("got body %q, want object literal preserved", spans[0].Body)
	}
}

func TestExtractSpansQuoteAwareBrackets(t *testing.T) {
	spans := ExtractSpans("$[ format('{0}]', 'x') ]")
	if len(spans) != 1 || spans[0].Kind != SpanRuntime {
		t.Fatalf("got %+v, want single runtime span", spans)
	}
	if spans[0].Body != "format('{0}]', 'x')" {
		t.Errorf("got body %q, want bracket inside string preserved", spans[0].Body)
	}
}

func TestHasDirectives(t *testing.T) {
	if !HasDirectives("${{ if eq(variables.x, 1) }}") {
		t.Error("expected HasDirectives to detect compile-time span")
	}
	if HasDirectives("plain text, no directives") {
		t.Error("expected HasDirectives to be false for plain text")
	}
	if HasDirectives("$[ runtime.only ]") {
		t.Error("a bare runtime span is not a directive")
	}
}

func TestExtractSpansUnterminatedFallsBackToText(t *testing.T) {
	spans := ExtractSpans("broken ${{ variables.x")
	if len(spans) != 1 || spans[0].Kind != SpanText {
		t.Fatalf("got %+v, want single literal-text fallback span", spans)
	}
}
