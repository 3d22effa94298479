package plsql

import (
	"strings"
)

func isWordChar(ch byte) bool {
	return ch == '_' || ch == '$' || ch == '#' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// firstWord returns the leading identifier of text, upper-cased. Dots are
// kept so that package-qualified names stay whole.
func firstWord(text string) string {
	i := 0
	for i < len(text) && (isWordChar(text[i]) || text[i] == '.') {
		i++
	}
	return strings.ToUpper(text[:i])
}

// hasWord reports whether word occurs in text as a whole word, ignoring case.
func hasWord(text, word string) bool {
	return wordIndex(text, word) >= 0
}

// wordIndex returns the byte offset of the first whole-word, case-insensitive
// occurrence of word in text, or -1.
func wordIndex(text, word string) int {
	upper := strings.ToUpper(text)
	word = strings.ToUpper(word)
	from := 0
	for {
		i := strings.Index(upper[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(word)
		if (i == 0 || !isWordChar(upper[i-1])) && (end == len(upper) || !isWordChar(upper[end])) {
			return i
		}
		from = i + 1
	}
}

// indexOutsideQuotes returns the offset of the first occurrence of sub that is
// not inside a single-quoted literal. Doubled quotes inside a literal are escapes.
func indexOutsideQuotes(text, sub string) int {
	inString := false
	for i := 0; i < len(text); i++ {
		if text[i] == '\'' {
			if inString && i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
			continue
		}
		if !inString && strings.HasPrefix(text[i:], sub) {
			return i
		}
	}
	return -1
}

// parenDelta returns the net change in parenthesis depth across text,
// ignoring parentheses inside string literals.
func parenDelta(text string) int {
	depth := 0
	inString := false
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; {
		case ch == '\'':
			if inString && i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case inString:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		}
	}
	return depth
}

// splitTopLevel splits text on sep where sep is outside parentheses and literals.
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\'':
			if inString && i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case inString:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(text[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(text[start:]))
}

// stripTerminator removes one trailing ';' and surrounding space.
func stripTerminator(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}

// unquote returns the contents of a single SQL string literal, or ok=false if
// s is anything other than exactly one literal.
func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.Count(strings.ReplaceAll(inner, "''", ""), "'") > 0 {
		return "", false
	}
	return strings.ReplaceAll(inner, "''", "'"), true
}

// trimOuterParens removes one layer of parentheses that encloses all of s.
func trimOuterParens(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '\'':
			if inString && i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case inString:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s // first paren closes before the end: "(a) UNION (b)"
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}
