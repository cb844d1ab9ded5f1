package expression

import "strings"

// SpanKind identifies a segment produced by ExtractSpans.
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanCompileTime // ${{ ... }}
	SpanRuntime     // $[ ... ]
	SpanMacro       // $( ... )
)

// Span is one piece of a string body after interpolation scanning:
// either literal Text, or the inner Body of a delimited expression
// (delimiters stripped).
type Span struct {
	Kind SpanKind
	Text string // literal text, for SpanText
	Body string // expression body, for the other kinds
}

// ExtractSpans scans a raw string for ${{ }}, $[ ], and $( ) regions,
// returning the interleaved sequence of literal text and expression
// spans in order. ${{ }} regions are depth-counted so a nested
// ${{ }} inside a string literal or object literal does not terminate
// early; $[ ] and $( ) are quote-aware so a `'` or delimiter character
// inside a string literal doesn't break scanning.
func ExtractSpans(s string) []Span {
	var spans []Span
	var textStart int
	i := 0
	n := len(s)

	flushText := func(end int) {
		if end > textStart {
			spans = append(spans, Span{Kind: SpanText, Text: s[textStart:end]})
		}
	}

	for i < n {
		switch {
		case strings.HasPrefix(s[i:], "${{"):
			body, next, ok := scanBraced(s, i+3)
			if !ok {
				// Unterminated: the rest of the string stays literal text.
				i = n
				continue
			}
			flushText(i)
			spans = append(spans, Span{Kind: SpanCompileTime, Body: body})
			i = next
			textStart = i
		case strings.HasPrefix(s[i:], "$[") && !strings.HasPrefix(s[i:], "${{"):
			body, next, ok := scanDelimited(s, i+2, ']', 0)
			if !ok {
				i = n
				continue
			}
			flushText(i)
			spans = append(spans, Span{Kind: SpanRuntime, Body: body})
			i = next
			textStart = i
		case strings.HasPrefix(s[i:], "$(") :
			body, next, ok := scanDelimited(s, i+2, ')', 0)
			if !ok {
				i = n
				continue
			}
			flushText(i)
			spans = append(spans, Span{Kind: SpanMacro, Body: body})
			i = next
			textStart = i
		default:
			i++
		}
	}
	flushText(n)
	return spans
}

// scanBraced finds the matching "}}" for a "${{" opened at start,
// counting nested "${{"/"}}" pairs so an inner compile-time expression
// embedded in an object literal (e.g. ${{ { a: ${{ x }} } }}, not
// valid ADO syntax but defensively handled) doesn't truncate the
// outer span. Quote-aware: a "}}" inside a single-quoted string is not
// a terminator.
func scanBraced(s string, start int) (body string, next int, ok bool) {
	depth := 1
	i := start
	inStr := false
	for i < len(s) {
		if inStr {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i += 2
					continue
				}
				inStr = false
			}
			i++
			continue
		}
		switch {
		case s[i] == '\'':
			inStr = true
			i++
		case strings.HasPrefix(s[i:], "${{"):
			depth++
			i += 3
		case strings.HasPrefix(s[i:], "}}"):
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start:i]), i + 2, true
			}
			i += 2
		default:
			i++
		}
	}
	return "", 0, false
}

// scanDelimited finds the matching close rune for $[ or $( bodies,
// quote-aware and bracket-depth-aware for nested [ ] or ( ) inside the
// body itself (e.g. $[ format('{0}', a[0]) ]).
func scanDelimited(s string, start int, closeCh byte, _ int) (body string, next int, ok bool) {
	var openCh byte
	switch closeCh {
	case ']':
		openCh = '['
	case ')':
		openCh = '('
	}
	depth := 1
	i := start
	inStr := false
	for i < len(s) {
		c := s[i]
		if inStr {
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i += 2
					continue
				}
				inStr = false
			}
			i++
			continue
		}
		switch c {
		case '\'':
			inStr = true
			i++
		case openCh:
			depth++
			i++
		case closeCh:
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start:i]), i + 1, true
			}
			i++
		default:
			i++
		}
	}
	return "", 0, false
}

// HasDirectives reports whether a raw scalar string contains any
// ${{ }} compile-time span — used by the template walker to decide
// whether a YAML node needs directive processing at all.
func HasDirectives(s string) bool {
	for _, sp := range ExtractSpans(s) {
		if sp.Kind == SpanCompileTime {
			return true
		}
	}
	return false
}
