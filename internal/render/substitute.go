package render

import "strings"

func isWordChar(ch byte) bool {
	return ch == '_' || ch == '$' || ch == '#' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// closingQuote returns the offset just past the literal or quoted identifier
// that opens at text[i]. A doubled quote character is an escape.
func closingQuote(text string, i int) int {
	q := text[i]
	for j := i + 1; j < len(text); j++ {
		if text[j] != q {
			continue
		}
		if j+1 < len(text) && text[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(text)
}

// substitute replaces every whole word of text that is a key of table,
// ignoring case. Dotted names are looked up whole, so `t.date` is left alone
// while a `DBMS_OUTPUT.PUT_LINE` key still matches. Quoted text, bind
// variables (`:x`) and attributes (`%TYPE`) are never touched.
func substitute(text string, table map[string]string) (string, int) {
	if len(table) == 0 || text == "" {
		return text, 0
	}
	var b strings.Builder
	b.Grow(len(text))
	n := 0
	for i := 0; i < len(text); {
		ch := text[i]
		switch {
		case ch == '\'' || ch == '"':
			end := closingQuote(text, i)
			b.WriteString(text[i:end])
			i = end
		case isWordChar(ch):
			j := i
			for j < len(text) && (isWordChar(text[j]) || text[j] == '.') {
				j++
			}
			word := text[i:j]
			prev := byte(0)
			if i > 0 {
				prev = text[i-1]
			}
			if repl, ok := table[strings.ToUpper(word)]; ok && isLetter(ch) && prev != ':' && prev != '%' {
				if !strings.EqualFold(repl, word) {
					n++
				}
				b.WriteString(repl)
			} else {
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String(), n
}

// rewriteBinds turns Oracle trigger bind variables :NEW.col and :OLD.col into
// the PL/pgSQL record references NEW.col and OLD.col.
func rewriteBinds(text string) (string, int) {
	if !strings.Contains(text, ":") {
		return text, 0
	}
	var b strings.Builder
	b.Grow(len(text))
	n := 0
	for i := 0; i < len(text); {
		ch := text[i]
		switch {
		case ch == '\'' || ch == '"':
			end := closingQuote(text, i)
			b.WriteString(text[i:end])
			i = end
		case ch == ':' && (i == 0 || !isWordChar(text[i-1])) && (hasPrefixFold(text[i+1:], "NEW.") || hasPrefixFold(text[i+1:], "OLD.")):
			n++
			i++
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String(), n
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// quote renders s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
