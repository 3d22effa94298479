package plsql

import (
	"sort"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

type comment struct {
	lineNo int
	text   string
}

// stripComments removes block comments, then end-of-line comments, and
// returns the extracted comment text ordered by the line it started on.
func stripComments(lines []parser.Line) ([]parser.Line, []string, bool) {
	clean, blocks, unterminated := stripBlockComments(lines)
	clean, inline := stripInlineComments(clean)

	all := append(blocks, inline...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].lineNo < all[j].lineNo })
	texts := make([]string, 0, len(all))
	for _, c := range all {
		texts = append(texts, c.text)
	}
	return clean, texts, unterminated
}

// stripBlockComments removes /* ... */ comments, which may span lines and
// may occur several times on one line. A comment still open at the end of
// input is returned as-is and reported through the bool.
func stripBlockComments(lines []parser.Line) ([]parser.Line, []comment, bool) {
	out := make([]parser.Line, 0, len(lines))
	var comments []comment
	var buf strings.Builder
	inBlock := false
	startLine := 0

	for _, l := range lines {
		text := l.Text
		var kept strings.Builder
		if inBlock {
			buf.WriteByte('\n')
		}
		for i := 0; i < len(text); {
			if inBlock {
				end := strings.Index(text[i:], "*/")
				if end < 0 {
					buf.WriteString(text[i:])
					break
				}
				buf.WriteString(text[i : i+end+2])
				comments = append(comments, comment{lineNo: startLine, text: buf.String()})
				buf.Reset()
				inBlock = false
				i += end + 2
				continue
			}
			start := strings.Index(text[i:], "/*")
			if start < 0 {
				kept.WriteString(text[i:])
				break
			}
			kept.WriteString(text[i : i+start])
			kept.WriteByte(' ')
			buf.WriteString("/*")
			inBlock = true
			startLine = l.LineNo
			i += start + 2
		}

		code := strings.TrimSpace(kept.String())
		if code == "" {
			continue
		}
		if code == text {
			out = append(out, l)
			continue
		}
		out = append(out, withText(l, code))
	}

	if inBlock {
		comments = append(comments, comment{lineNo: startLine, text: buf.String()})
	}
	return out, comments, inBlock
}

// stripInlineComments removes `--` comments, ignoring dashes inside string literals.
func stripInlineComments(lines []parser.Line) ([]parser.Line, []comment) {
	out := make([]parser.Line, 0, len(lines))
	var comments []comment
	for _, l := range lines {
		idx := indexOutsideQuotes(l.Text, "--")
		if idx < 0 {
			out = append(out, l)
			continue
		}
		comments = append(comments, comment{lineNo: l.LineNo, text: strings.TrimSpace(l.Text[idx:])})
		code := strings.TrimSpace(l.Text[:idx])
		if code == "" {
			continue
		}
		out = append(out, withText(l, code))
	}
	return out, comments
}
