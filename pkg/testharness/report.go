package testharness

import (
	"fmt"
	"strings"
	"time"
)

// ReportFormat selects the textual rendering produced by Report.
type ReportFormat int

const (
	FormatTerminal ReportFormat = iota
	FormatJUnit
	FormatTAP
)

// ParseReportFormat accepts the same aliases test tooling in this space
// conventionally recognizes for each format.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "junit", "junit-xml", "xml":
		return FormatJUnit, nil
	case "tap":
		return FormatTAP, nil
	case "terminal", "text", "console", "":
		return FormatTerminal, nil
	default:
		return 0, fmt.Errorf("unknown report format %q: valid formats are junit, tap, terminal", s)
	}
}

func (f ReportFormat) String() string {
	switch f {
	case FormatJUnit:
		return "junit"
	case FormatTAP:
		return "tap"
	case FormatTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Report renders out in the requested format. suiteName labels the suite
// in JUnit/terminal output; it has no TAP equivalent.
func Report(out *Output, suiteName string, format ReportFormat) string {
	switch format {
	case FormatJUnit:
		return toJUnitXML(out, suiteName)
	case FormatTAP:
		return toTAP(out)
	default:
		return toTerminal(out, suiteName)
	}
}

func totalDuration(out *Output) time.Duration {
	var total time.Duration
	for _, s := range out.Scenarios {
		total += time.Duration(s.DurationMs) * time.Millisecond
	}
	return total
}

func toJUnitXML(out *Output, suiteName string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")

	total := totalDuration(out).Seconds()
	fmt.Fprintf(&b, "<testsuites tests=\"%d\" failures=\"%d\" errors=\"%d\" time=\"%.3f\">\n",
		out.Summary.Total, out.Summary.Failed, out.Summary.Errors, total)
	fmt.Fprintf(&b, "  <testsuite name=\"%s\" tests=\"%d\" failures=\"%d\" errors=\"%d\" time=\"%.3f\">\n",
		xmlEscape(suiteName), out.Summary.Total, out.Summary.Failed, out.Summary.Errors, total)

	for _, sc := range out.Scenarios {
		secs := float64(sc.DurationMs) / 1000
		fmt.Fprintf(&b, "    <testcase name=\"%s\" time=\"%.3f\"", xmlEscape(sc.ScenarioName), secs)

		if sc.Status == "passed" {
			b.WriteString(" />\n")
			continue
		}
		b.WriteString(">\n")

		if sc.Error != "" {
			fmt.Fprintf(&b, "      <error message=\"%s\" />\n", xmlEscape(sc.Error))
		} else {
			b.WriteString("      <failure message=\"scenario failed\">\n")
			for _, a := range sc.Assertions {
				if a.Passed {
					continue
				}
				fmt.Fprintf(&b, "        FAIL: %s\n", xmlEscape(a.Message))
			}
			b.WriteString("      </failure>\n")
		}
		b.WriteString("    </testcase>\n")
	}

	b.WriteString("  </testsuite>\n")
	b.WriteString("</testsuites>\n")
	return b.String()
}

func toTAP(out *Output) string {
	var b strings.Builder
	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", out.Summary.Total)

	for i, sc := range out.Scenarios {
		n := i + 1
		if sc.Status == "passed" {
			fmt.Fprintf(&b, "ok %d - %s\n", n, sc.ScenarioName)
			continue
		}
		fmt.Fprintf(&b, "not ok %d - %s\n", n, sc.ScenarioName)
		b.WriteString("  ---\n")
		fmt.Fprintf(&b, "  duration_ms: %d\n", sc.DurationMs)
		if sc.Error != "" {
			fmt.Fprintf(&b, "  message: %q\n", sc.Error)
		}
		var failed []AssertionResult
		for _, a := range sc.Assertions {
			if !a.Passed {
				failed = append(failed, a)
			}
		}
		if len(failed) > 0 {
			b.WriteString("  failures:\n")
			for _, a := range failed {
				fmt.Fprintf(&b, "    - assertion: %q\n", a.Type+":"+a.Key)
				fmt.Fprintf(&b, "      message: %q\n", a.Message)
			}
		}
		b.WriteString("  ...\n")
	}

	fmt.Fprintf(&b, "# tests %d\n# pass %d\n# fail %d\n# duration %.3fs\n",
		out.Summary.Total, out.Summary.Passed, out.Summary.Failed, totalDuration(out).Seconds())
	return b.String()
}

func toTerminal(out *Output, suiteName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nTest Suite: %s\n", suiteName)
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n")

	for _, sc := range out.Scenarios {
		symbol, status := "+", "PASS"
		if sc.Status != "passed" {
			symbol, status = "x", "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %s (%.2fs) %s\n", symbol, status, float64(sc.DurationMs)/1000, sc.ScenarioName)

		if sc.Status == "error" {
			fmt.Fprintf(&b, "       ERROR: %s\n", sc.Error)
			continue
		}
		if sc.Status != "passed" {
			for _, a := range sc.Assertions {
				if !a.Passed {
					fmt.Fprintf(&b, "       FAIL: %s\n", a.Message)
				}
			}
		}
	}

	b.WriteString(strings.Repeat("-", 60))
	b.WriteString("\n")

	if out.Summary.Failed == 0 && out.Summary.Errors == 0 {
		fmt.Fprintf(&b, "  All %d tests passed (%.2fs)\n", out.Summary.Total, totalDuration(out).Seconds())
	} else {
		fmt.Fprintf(&b, "  %d of %d tests failed (%.2fs)\n",
			out.Summary.Failed+out.Summary.Errors, out.Summary.Total, totalDuration(out).Seconds())
	}

	b.WriteString("\n")
	return b.String()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
