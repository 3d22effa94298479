package plsql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

var reCallStart = regexp.MustCompile(`^([A-Za-z_][\w$#]*(?:\.[A-Za-z_][\w$#]*)*)\s*\(`)

// controlWords never start an assignment or a call.
var controlWords = map[string]bool{
	"IF": true, "ELSIF": true, "ELSE": true, "WHEN": true, "CASE": true, "FOR": true,
	"WHILE": true, "LOOP": true, "END": true, "EXIT": true, "CONTINUE": true, "RETURN": true,
	"BEGIN": true, "DECLARE": true, "EXCEPTION": true, "OPEN": true, "FETCH": true,
	"CLOSE": true, "GOTO": true, "NULL": true, "AND": true, "OR": true, "NOT": true,
	"IN": true, "VALUES": true, "EXECUTE": true, "COMMIT": true, "ROLLBACK": true,
}

var sqlKinds = map[string]string{
	"SELECT": parser.TypeSelect,
	"INSERT": parser.TypeInsert,
	"UPDATE": parser.TypeUpdate,
	"DELETE": parser.TypeDelete,
	"RAISE":  parser.TypeRaise,
}

// collect joins items[start] with the following lines until one ends with
// ';' and, when balanced is set, all parentheses are closed. It returns the
// joined text, the index of the last line consumed and whether the
// statement was terminated.
func collect(items []parser.Statement, start int, balanced bool) (string, int, bool) {
	first := items[start].(parser.Line)
	text := first.Text
	depth := parenDelta(text)
	end := start
	for !(strings.HasSuffix(text, ";") && (!balanced || depth <= 0)) {
		if end+1 >= len(items) {
			return text, end, false
		}
		next, ok := items[end+1].(parser.Line)
		if !ok {
			return text, end, false
		}
		end++
		text += " " + next.Text
		depth += parenDelta(next.Text)
	}
	return text, end, true
}

// ---- pass 5: assignments ----

func (s *structurer) assignmentPass(items []parser.Statement) []parser.Statement {
	out := make([]parser.Statement, 0, len(items))
	for i := 0; i < len(items); i++ {
		l, ok := items[i].(parser.Line)
		if !ok || controlWords[firstWord(l.Text)] || indexOutsideQuotes(l.Text, ":=") < 0 {
			out = append(out, items[i])
			continue
		}
		text, end, terminated := collect(items, i, false)
		if !terminated {
			s.warn(l.LineNo, "assignment is not terminated by ';'")
		}
		idx := indexOutsideQuotes(text, ":=")
		out = append(out, &parser.Assignment{
			Variable: strings.TrimSpace(text[:idx]),
			Value:    stripTerminator(text[idx+2:]),
		})
		i = end
	}
	return out
}

// ---- pass 6: SQL, RAISE and procedure calls ----

func (s *structurer) sqlPass(items []parser.Statement) []parser.Statement {
	out := make([]parser.Statement, 0, len(items))
	for i := 0; i < len(items); i++ {
		l, ok := items[i].(parser.Line)
		if !ok {
			out = append(out, items[i])
			continue
		}

		word := firstWord(l.Text)
		if kind, ok := sqlKinds[word]; ok {
			text, end, terminated := collect(items, i, false)
			if !terminated {
				s.warn(l.LineNo, "%s statement is not terminated by ';'", strings.ToLower(word))
			}
			out = append(out, &parser.SQLStatement{Kind: kind, SQL: text})
			i = end
			continue
		}

		if m := reCallStart.FindStringSubmatch(l.Text); m != nil && !controlWords[strings.ToUpper(m[1])] {
			text, end, terminated := collect(items, i, true)
			if !terminated {
				s.warn(l.LineNo, "call to %s is not terminated by ';'", m[1])
			}
			out = append(out, newFunctionCall(m[1], text))
			i = end
			continue
		}

		out = append(out, l)
	}
	return out
}

// newFunctionCall builds a call node from `name(args);`. Arguments are kept
// as opaque text; RAISE_APPLICATION_ERROR gets named parameters.
func newFunctionCall(name, text string) *parser.FunctionCall {
	call := &parser.FunctionCall{Name: strings.ToLower(name), Parameter: map[string]string{}}
	args := callArguments(text)

	if call.Name == "raise_application_error" {
		for i, arg := range args {
			switch i {
			case 0:
				call.Parameter["handler_code"] = arg
			case 1:
				if v, ok := unquote(arg); ok {
					arg = v
				}
				call.Parameter["handler_string"] = arg
			case 2:
				call.Parameter["keep_errors"] = arg
			}
		}
		return call
	}

	for i, arg := range args {
		if at := indexOutsideQuotes(arg, "=>"); at > 0 {
			call.Parameter[strings.ToLower(strings.TrimSpace(arg[:at]))] = strings.TrimSpace(arg[at+2:])
			continue
		}
		call.Parameter[fmt.Sprintf("arg%d", i+1)] = arg
	}
	return call
}

// callArguments returns the top-level comma separated arguments between the
// first '(' of text and its matching ')'.
func callArguments(text string) []string {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return nil
	}
	depth := 0
	inString := false
	for i := open; i < len(text); i++ {
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
			if depth == 0 {
				inner := strings.TrimSpace(text[open+1 : i])
				if inner == "" {
					return nil
				}
				return splitTopLevel(inner, ',')
			}
		}
	}
	return splitTopLevel(strings.TrimSpace(text[open+1:]), ',')
}
