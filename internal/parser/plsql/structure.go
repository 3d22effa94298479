package plsql

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

var (
	reBlockEnd = regexp.MustCompile(`(?i)^END(?:\s+([A-Za-z_][\w$#]*))?\s*;$`)
	reEndCase  = regexp.MustCompile(`(?i)^END\s+CASE\b[^;]*;$`)
	reEndIf    = regexp.MustCompile(`(?i)^END\s+IF\s*;$`)
	reEndLoop  = regexp.MustCompile(`(?i)^END\s+LOOP\b[^;]*;$`)
	reWhenThen = regexp.MustCompile(`(?is)^WHEN\s+(.+?)\s+THEN\b\s*(.*)$`)
)

// structurer turns flat body lines into a statement tree. Each pass returns
// a new list; nothing is rewritten while it is being scanned.
type structurer struct {
	caseClauseIndent int
	maxDepth         int
	logger           *slog.Logger
	warnings         []string
}

func (s *structurer) warn(lineNo int, format string, args ...any) {
	msg := fmt.Sprintf("line %d: %s", lineNo, fmt.Sprintf(format, args...))
	s.warnings = append(s.warnings, msg)
	s.logger.Warn("structure mismatch", slog.Int("line", lineNo), slog.String("detail", fmt.Sprintf(format, args...)))
}

// structure applies the six recognition passes in order to items and then
// recurses into every container list they produced.
func (s *structurer) structure(items []parser.Statement, depth int) []parser.Statement {
	if depth > s.maxDepth {
		if first, ok := firstLine(items); ok {
			s.warn(first.LineNo, "nesting deeper than %d levels left unstructured", s.maxDepth)
		}
		return items
	}

	passes := []func([]parser.Statement) []parser.Statement{
		s.beginEndPass,
		s.casePass,
		s.forPass,
		s.ifPass,
		s.assignmentPass,
		s.sqlPass,
	}
	for _, pass := range passes {
		items = pass(items)
	}

	for _, it := range items {
		for _, child := range parser.Children(it) {
			*child = s.structure(*child, depth+1)
		}
	}
	return items
}

func firstLine(items []parser.Statement) (parser.Line, bool) {
	for _, it := range items {
		if l, ok := it.(parser.Line); ok {
			return l, true
		}
	}
	return parser.Line{}, false
}

// tailLine turns the text that follows THEN/ELSE on a clause line into a
// line of its own, one level deeper than the clause.
func tailLine(l parser.Line, rest string) parser.Line {
	return newLine(l.Indent+2, strings.TrimSpace(rest), l.LineNo)
}

func isBegin(l parser.Line) bool {
	return strings.EqualFold(l.Text, "BEGIN")
}

// isBlockEnd matches `END;` and `END label;` but not END IF/LOOP/CASE.
func isBlockEnd(l parser.Line) bool {
	m := reBlockEnd.FindStringSubmatch(l.Text)
	if m == nil {
		return false
	}
	switch strings.ToUpper(m[1]) {
	case "IF", "LOOP", "CASE":
		return false
	}
	return true
}

func isCaseStart(l parser.Line) bool {
	upper := strings.ToUpper(l.Text)
	return upper == "CASE" || strings.HasPrefix(upper, "CASE ")
}

func isEndCase(l parser.Line) bool { return reEndCase.MatchString(l.Text) }

func isElse(l parser.Line) bool {
	upper := strings.ToUpper(l.Text)
	return upper == "ELSE" || strings.HasPrefix(upper, "ELSE ")
}

// ---- pass 1: BEGIN / EXCEPTION / END; ----

func (s *structurer) beginEndPass(items []parser.Statement) []parser.Statement {
	out := make([]parser.Statement, 0, len(items))
	for i := 0; i < len(items); i++ {
		l, ok := items[i].(parser.Line)
		if !ok || !isBegin(l) {
			out = append(out, items[i])
			continue
		}
		node, end := s.matchBeginEnd(items, i)
		if node == nil {
			s.warn(l.LineNo, "could not find matching END; for BEGIN")
			out = append(out, l)
			continue
		}
		out = append(out, node)
		i = end
	}
	return out
}

// matchBeginEnd finds the END; that closes the BEGIN at items[start] using a
// depth counter, routing lines after a same-level EXCEPTION into handlers.
func (s *structurer) matchBeginEnd(items []parser.Statement, start int) (*parser.BeginEnd, int) {
	node := &parser.BeginEnd{
		Statements: []parser.Statement{},
		Handlers:   []parser.ExceptionHandler{},
	}
	depth := 1
	caseDepth := 0
	inException := false

	for j := start + 1; j < len(items); j++ {
		it := items[j]
		if l, ok := it.(parser.Line); ok {
			switch {
			case isBegin(l):
				depth++
			case isBlockEnd(l):
				depth--
				if depth == 0 {
					return node, j
				}
			case depth == 1 && strings.EqualFold(l.Text, "EXCEPTION"):
				inException = true
				continue
			}

			if inException && depth == 1 {
				switch {
				case isCaseStart(l):
					caseDepth++
				case isEndCase(l) && caseDepth > 0:
					caseDepth--
				case caseDepth == 0:
					if m := reWhenThen.FindStringSubmatch(l.Text); m != nil {
						h := parser.ExceptionHandler{Name: strings.TrimSpace(m[1]), Statements: []parser.Statement{}}
						if m[2] != "" {
							h.Statements = append(h.Statements, tailLine(l, m[2]))
						}
						node.Handlers = append(node.Handlers, h)
						continue
					}
				}
			}
		}

		if inException && len(node.Handlers) > 0 {
			h := &node.Handlers[len(node.Handlers)-1]
			h.Statements = append(h.Statements, it)
		} else {
			node.Statements = append(node.Statements, it)
		}
	}
	return nil, start
}

// ---- pass 2: CASE / WHEN / ELSE / END CASE; ----

func (s *structurer) casePass(items []parser.Statement) []parser.Statement {
	out := make([]parser.Statement, 0, len(items))
	for i := 0; i < len(items); i++ {
		l, ok := items[i].(parser.Line)
		if !ok || !isCaseStart(l) {
			out = append(out, items[i])
			continue
		}
		node, end := s.matchCase(items, i)
		if node == nil {
			s.warn(l.LineNo, "could not find matching END CASE; at indent %d", l.Indent)
			out = append(out, l)
			continue
		}
		out = append(out, node)
		i = end
	}
	return out
}

// atClauseIndent reports whether a WHEN/ELSE line sits at the CASE's own
// indentation or up to caseClauseIndent columns deeper.
func (s *structurer) atClauseIndent(indent, caseIndent int) bool {
	return indent >= caseIndent && indent <= caseIndent+s.caseClauseIndent
}

// matchCase groups a CASE statement. The closing END CASE; must sit at the
// opening line's indentation; nested CASE, IF and BEGIN blocks are counted
// so their WHEN/ELSE/END lines stay inside the current clause.
func (s *structurer) matchCase(items []parser.Statement, start int) (*parser.CaseWhen, int) {
	open := items[start].(parser.Line)
	node := &parser.CaseWhen{
		Expression: strings.TrimSpace(open.Text[len("CASE"):]),
		Clauses:    []parser.WhenClause{},
	}
	var pending []parser.Statement
	nestedCase, ifDepth, beginDepth := 0, 0, 0

	for j := start + 1; j < len(items); j++ {
		it := items[j]
		if l, ok := it.(parser.Line); ok {
			switch {
			case isEndCase(l) && nestedCase == 0 && l.Indent == open.Indent:
				if len(node.Clauses) == 0 {
					return nil, start
				}
				return node, j
			case isEndCase(l) && nestedCase > 0:
				nestedCase--
			case isCaseStart(l):
				nestedCase++
			case isIfStart(l) && !isOneLineIf(l):
				ifDepth++
			case isEndIf(l) && ifDepth > 0:
				ifDepth--
			case isBegin(l):
				beginDepth++
			case isBlockEnd(l) && beginDepth > 0:
				beginDepth--
			case nestedCase == 0 && ifDepth == 0 && beginDepth == 0 && s.atClauseIndent(l.Indent, open.Indent):
				if m := reWhenThen.FindStringSubmatch(l.Text); m != nil {
					c := parser.WhenClause{Value: strings.TrimSpace(m[1]), Body: pending}
					if c.Body == nil {
						c.Body = []parser.Statement{}
					}
					pending = nil
					if m[2] != "" {
						c.Body = append(c.Body, tailLine(l, m[2]))
					}
					node.Clauses = append(node.Clauses, c)
					continue
				}
				if isElse(l) {
					c := parser.WhenClause{IsElse: true, Body: []parser.Statement{}}
					if rest := strings.TrimSpace(l.Text[len("ELSE"):]); rest != "" {
						c.Body = append(c.Body, tailLine(l, rest))
					}
					node.Clauses = append(node.Clauses, c)
					continue
				}
			}
		}

		if len(node.Clauses) == 0 {
			pending = append(pending, it)
			continue
		}
		c := &node.Clauses[len(node.Clauses)-1]
		c.Body = append(c.Body, it)
	}
	return nil, start
}
