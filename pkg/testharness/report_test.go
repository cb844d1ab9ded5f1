package testharness

import (
	"strings"
	"testing"
)

func sampleOutput() *Output {
	return &Output{
		Scenarios: []Result{
			{ScenarioName: "Build succeeds", Status: "passed", DurationMs: 150},
			{
				ScenarioName: "Deploy works",
				Status:       "failed",
				DurationMs:   300,
				Assertions: []AssertionResult{
					{Type: "step", Key: "Build", Passed: true, Message: "Step 'Build' has status Succeeded"},
					{Type: "step", Key: "Deploy", Passed: false, Message: "Step 'Deploy' expected Succeeded but was Failed"},
				},
			},
			{ScenarioName: "Cleanup runs", Status: "passed", DurationMs: 90},
		},
		Summary: Summary{Total: 3, Passed: 2, Failed: 1, Errors: 0},
	}
}

func TestParseReportFormat(t *testing.T) {
	tests := map[string]ReportFormat{
		"junit": FormatJUnit, "xml": FormatJUnit, "JUnit-XML": FormatJUnit,
		"tap": FormatTAP,
		"terminal": FormatTerminal, "text": FormatTerminal, "": FormatTerminal,
	}
	for in, want := range tests {
		got, err := ParseReportFormat(in)
		if err != nil {
			t.Fatalf("ParseReportFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseReportFormat(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseReportFormat("unknown"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestJUnitXMLOutput(t *testing.T) {
	xml := toJUnitXML(sampleOutput(), "Integration Tests")
	mustContain(t, xml, `<?xml version="1.0"`)
	mustContain(t, xml, `<testsuites`)
	mustContain(t, xml, `tests="3"`)
	mustContain(t, xml, `failures="1"`)
	mustContain(t, xml, `name="Build succeeds"`)
	mustContain(t, xml, `name="Deploy works"`)
	mustContain(t, xml, `<failure`)
	mustContain(t, xml, "Step 'Deploy' expected")
}

func TestTAPOutput(t *testing.T) {
	tap := toTAP(sampleOutput())
	if !strings.HasPrefix(tap, "TAP version 13\n") {
		t.Fatalf("missing TAP header: %q", tap[:20])
	}
	mustContain(t, tap, "1..3\n")
	mustContain(t, tap, "ok 1 - Build succeeds")
	mustContain(t, tap, "not ok 2 - Deploy works")
	mustContain(t, tap, "ok 3 - Cleanup runs")
	mustContain(t, tap, "# tests 3")
	mustContain(t, tap, "# pass 2")
	mustContain(t, tap, "# fail 1")
}

func TestTerminalOutput(t *testing.T) {
	out := toTerminal(sampleOutput(), "Integration Tests")
	mustContain(t, out, "Test Suite: Integration Tests")
	mustContain(t, out, "[+] PASS")
	mustContain(t, out, "[x] FAIL")
	mustContain(t, out, "Build succeeds")
	mustContain(t, out, "Deploy works")
	mustContain(t, out, "1 of 3 tests failed")
}

func TestTerminalAllPass(t *testing.T) {
	out := &Output{
		Scenarios: []Result{
			{ScenarioName: "Test 1", Status: "passed", DurationMs: 250},
			{ScenarioName: "Test 2", Status: "passed", DurationMs: 250},
		},
		Summary: Summary{Total: 2, Passed: 2},
	}
	text := toTerminal(out, "All Pass")
	mustContain(t, text, "All 2 tests passed")
}

func TestXMLEscaping(t *testing.T) {
	if got := xmlEscape("<test>"); got != "&lt;test&gt;" {
		t.Errorf("got %q", got)
	}
	if got := xmlEscape("a & b"); got != "a &amp; b" {
		t.Errorf("got %q", got)
	}
	if got := xmlEscape(`"quoted"`); got != "&quot;quoted&quot;" {
		t.Errorf("got %q", got)
	}
}

func TestReportDispatchesByFormat(t *testing.T) {
	out := sampleOutput()

	if got := Report(out, "s", FormatJUnit); !strings.HasPrefix(got, "<?xml") {
		t.Errorf("junit dispatch: %q", got[:5])
	}
	if got := Report(out, "s", FormatTAP); !strings.HasPrefix(got, "TAP version") {
		t.Errorf("tap dispatch")
	}
	if got := Report(out, "s", FormatTerminal); !strings.Contains(got, "Test Suite") {
		t.Errorf("terminal dispatch: %q", got)
	}
}

func mustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
