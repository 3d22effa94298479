package plsql

import (
	"strings"
	"unicode"

	"github.com/maraichr/trigconv/internal/parser"
)

// SplitLines converts source text into line records. Blank lines are dropped
// but numbering follows the original text, so gaps are expected.
func SplitLines(src string) []parser.Line {
	raw := strings.Split(src, "\n")
	lines := make([]parser.Line, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimRight(l, "\r")
		text := strings.TrimSpace(l)
		if text == "" {
			continue
		}
		lines = append(lines, newLine(leadingSpace(l), text, i+1))
	}
	return lines
}

func newLine(indent int, text string, lineNo int) parser.Line {
	return parser.Line{
		Indent:     indent,
		Text:       text,
		LineNo:     lineNo,
		Terminated: strings.HasSuffix(text, ";"),
	}
}

// withText returns a copy of l carrying new text, keeping indent and number.
func withText(l parser.Line, text string) parser.Line {
	return newLine(l.Indent, text, l.LineNo)
}

func leadingSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}
