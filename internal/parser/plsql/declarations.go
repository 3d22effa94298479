package plsql

import (
	"regexp"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

var (
	reIdentifier = regexp.MustCompile(`^(?:[A-Za-z_][\w$#]*|"[^"]+")$`)
	reCursorDecl = regexp.MustCompile(`(?is)^CURSOR\s+([A-Za-z_][\w$#]*)\s*(\(.*?\))?\s+IS\s+(.+)$`)
)

// parseDeclarations classifies the DECLARE section. It never fails: segments
// of unknown shape become variables named parser.UnparsedName that carry the
// original text as their default value.
func parseDeclarations(lines []parser.Line) parser.Declarations {
	decls := parser.Declarations{
		Variables:  []parser.VariableDecl{},
		Constants:  []parser.ConstantDecl{},
		Exceptions: []parser.ExceptionDecl{},
		Cursors:    []parser.CursorDecl{},
	}
	if len(lines) == 0 {
		return decls
	}

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	for _, seg := range splitDeclarationSegments(strings.Join(texts, "\n")) {
		parseDeclaration(seg, &decls)
	}
	return decls
}

// splitDeclarationSegments cuts text at each ';' that is followed by
// whitespace and a word character, or by the end of the text. A ';' inside a
// literal that happens to match this shape still splits.
func splitDeclarationSegments(text string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != ';' {
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == len(text) || (j > i+1 && isWordChar(text[j])) {
			if seg := strings.TrimSpace(text[start:i]); seg != "" {
				segs = append(segs, seg)
			}
			start = j
			i = j - 1
		}
	}
	if seg := strings.TrimSpace(text[start:]); seg != "" {
		segs = append(segs, strings.TrimSpace(strings.TrimSuffix(seg, ";")))
	}
	return segs
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f'
}

func parseDeclaration(seg string, decls *parser.Declarations) {
	left, value := splitDefault(seg)
	tokens := strings.Fields(left)
	if len(tokens) == 0 {
		unparsed(seg, decls)
		return
	}
	first := strings.ToUpper(tokens[0])
	last := strings.ToUpper(tokens[len(tokens)-1])

	switch {
	case value == nil && last == "EXCEPTION" && len(tokens) > 1:
		decls.Exceptions = append(decls.Exceptions, parser.ExceptionDecl{
			Name: strings.Join(tokens[:len(tokens)-1], " "),
		})

	case first == "CURSOR":
		m := reCursorDecl.FindStringSubmatch(strings.Join(strings.Fields(seg), " "))
		if m == nil {
			unparsed(seg, decls)
			return
		}
		decls.Cursors = append(decls.Cursors, parser.CursorDecl{
			Name:       m[1],
			Parameters: strings.TrimSpace(m[2]),
			Query:      strings.TrimSpace(m[3]),
		})

	case first == "PRAGMA" || first == "TYPE" || first == "SUBTYPE" || first == "PROCEDURE" || first == "FUNCTION":
		unparsed(seg, decls)

	case hasToken(tokens, "CONSTANT"):
		at := tokenIndex(tokens, "CONSTANT")
		if at != 1 || !reIdentifier.MatchString(tokens[0]) || len(tokens) < 3 {
			decls.Constants = append(decls.Constants, parser.ConstantDecl{Name: parser.UnparsedName, Value: &seg})
			return
		}
		decls.Constants = append(decls.Constants, parser.ConstantDecl{
			Name:     tokens[0],
			DataType: joinType(tokens[at+1:]),
			Value:    value,
		})

	default:
		if len(tokens) < 2 || !reIdentifier.MatchString(tokens[0]) {
			unparsed(seg, decls)
			return
		}
		decls.Variables = append(decls.Variables, parser.VariableDecl{
			Name:         tokens[0],
			DataType:     joinType(tokens[1:]),
			DefaultValue: value,
		})
	}
}

func unparsed(seg string, decls *parser.Declarations) {
	decls.Variables = append(decls.Variables, parser.VariableDecl{Name: parser.UnparsedName, DefaultValue: &seg})
}

// splitDefault separates `name type := value` (or `DEFAULT value`) into the
// declaration part and a pointer to the trimmed value, nil when absent.
func splitDefault(seg string) (string, *string) {
	size := 2
	idx := indexOutsideQuotes(seg, ":=")
	if idx < 0 {
		idx = wordIndex(seg, "DEFAULT")
		size = len("DEFAULT")
	}
	if idx < 0 {
		return seg, nil
	}
	v := strings.TrimSpace(seg[idx+size:])
	return seg[:idx], &v
}

// joinType rebuilds a data type from whitespace tokens. Inside a parameter
// list the space after "(" or "," and before ")" or "," is dropped, any other
// is kept: ["NUMBER(10,", "2)"] -> "NUMBER(10,2)", ["VARCHAR2(100", "CHAR)"]
// -> "VARCHAR2(100 CHAR)".
func joinType(tokens []string) string {
	var b strings.Builder
	depth := 0
	prev := ""
	for _, tok := range tokens {
		if b.Len() > 0 && needsSpace(prev, tok, depth) {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
		depth += parenDelta(tok)
		prev = tok
	}
	return b.String()
}

func needsSpace(prev, tok string, depth int) bool {
	if depth == 0 {
		return !strings.HasPrefix(tok, "(")
	}
	return !strings.HasSuffix(prev, "(") && !strings.HasSuffix(prev, ",") &&
		!strings.HasPrefix(tok, ")") && !strings.HasPrefix(tok, ",")
}

func hasToken(tokens []string, tok string) bool {
	return tokenIndex(tokens, tok) >= 0
}

func tokenIndex(tokens []string, tok string) int {
	for i, t := range tokens {
		if strings.EqualFold(t, tok) {
			return i
		}
	}
	return -1
}
