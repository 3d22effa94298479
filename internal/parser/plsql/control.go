package plsql

import (
	"regexp"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

var (
	reForHeader = regexp.MustCompile(`(?is)^FOR\s+(.+?)\s+IN\s+(.*?)\s*\bLOOP$`)
	reLoopTail  = regexp.MustCompile(`(?i)(?:^|\s|\))LOOP$`)
	reIfHeader  = regexp.MustCompile(`(?is)^IF\s*(.+?)\s*\bTHEN\b\s*(.*)$`)
	reIfOneLine = regexp.MustCompile(`(?is)^IF\s*(.+?)\s*\bTHEN\s+(.+?)\s*\bEND\s+IF\s*;$`)
	reElsif     = regexp.MustCompile(`(?is)^ELSIF\s*(.+?)\s*\bTHEN\b\s*(.*)$`)
)

func isForStart(l parser.Line) bool {
	return firstWord(l.Text) == "FOR" && hasWord(l.Text, "IN")
}

func isEndLoop(l parser.Line) bool { return reEndLoop.MatchString(l.Text) }

func isIfStart(l parser.Line) bool { return firstWord(l.Text) == "IF" }

func isOneLineIf(l parser.Line) bool { return reIfOneLine.MatchString(l.Text) }

func isEndIf(l parser.Line) bool { return reEndIf.MatchString(l.Text) }

// ---- pass 3: FOR ... IN ... LOOP / END LOOP; ----

func (s *structurer) forPass(items []parser.Statement) []parser.Statement {
	out := make([]parser.Statement, 0, len(items))
	for i := 0; i < len(items); i++ {
		l, ok := items[i].(parser.Line)
		if !ok || !isForStart(l) {
			out = append(out, items[i])
			continue
		}
		node, end := s.matchFor(items, i)
		if node == nil {
			out = append(out, l)
			continue
		}
		out = append(out, node)
		i = end
	}
	return out
}

// matchFor reads the loop header, which may continue over several lines
// until one ends in LOOP, then looks for an END LOOP; indented no deeper
// than the FOR line.
func (s *structurer) matchFor(items []parser.Statement, start int) (*parser.ForLoop, int) {
	open := items[start].(parser.Line)
	header := open.Text
	j := start
	for !reLoopTail.MatchString(header) {
		j++
		if j >= len(items) {
			s.warn(open.LineNo, "FOR header has no LOOP keyword")
			return nil, start
		}
		next, ok := items[j].(parser.Line)
		if !ok {
			s.warn(open.LineNo, "FOR header has no LOOP keyword")
			return nil, start
		}
		header += " " + next.Text
	}

	m := reForHeader.FindStringSubmatch(header)
	if m == nil {
		s.warn(open.LineNo, "could not read FOR loop header")
		return nil, start
	}

	for k := j + 1; k < len(items); k++ {
		l, ok := items[k].(parser.Line)
		if !ok || !isEndLoop(l) || l.Indent > open.Indent {
			continue
		}
		body := make([]parser.Statement, 0, k-j-1)
		body = append(body, items[j+1:k]...)
		return &parser.ForLoop{
			LoopVariable: strings.TrimSpace(m[1]),
			CursorQuery:  trimOuterParens(m[2]),
			Body:         body,
		}, k
	}
	s.warn(open.LineNo, "could not find matching END LOOP;")
	return nil, start
}

// ---- pass 4: IF / ELSIF / ELSE / END IF; ----

func (s *structurer) ifPass(items []parser.Statement) []parser.Statement {
	out := make([]parser.Statement, 0, len(items))
	for i := 0; i < len(items); i++ {
		l, ok := items[i].(parser.Line)
		if !ok || !isIfStart(l) {
			out = append(out, items[i])
			continue
		}
		if m := reIfOneLine.FindStringSubmatch(l.Text); m != nil {
			out = append(out, &parser.IfElse{
				Condition: strings.TrimSpace(m[1]),
				Then:      []parser.Statement{tailLine(l, m[2])},
				ElseIf:    []parser.ElseIf{},
				Else:      []parser.Statement{},
			})
			continue
		}
		node, end := s.matchIf(items, i)
		if node == nil {
			out = append(out, l)
			continue
		}
		out = append(out, node)
		i = end
	}
	return out
}

// matchIf finds the END IF; closing items[start] with a depth counter.
// ELSIF and ELSE only split branches at depth 1, the opening IF's own level.
func (s *structurer) matchIf(items []parser.Statement, start int) (*parser.IfElse, int) {
	open := items[start].(parser.Line)
	m := reIfHeader.FindStringSubmatch(open.Text)
	if m == nil {
		s.warn(open.LineNo, "IF without THEN")
		return nil, start
	}
	node := &parser.IfElse{
		Condition: strings.TrimSpace(m[1]),
		Then:      []parser.Statement{},
		ElseIf:    []parser.ElseIf{},
		Else:      []parser.Statement{},
	}
	target := &node.Then
	if m[2] != "" {
		*target = append(*target, tailLine(open, m[2]))
	}

	depth := 1
	for j := start + 1; j < len(items); j++ {
		it := items[j]
		if l, ok := it.(parser.Line); ok {
			switch {
			case isIfStart(l) && !isOneLineIf(l):
				depth++
			case isEndIf(l):
				depth--
				if depth == 0 {
					return node, j
				}
			case depth == 1 && firstWord(l.Text) == "ELSIF":
				em := reElsif.FindStringSubmatch(l.Text)
				if em == nil {
					break
				}
				node.ElseIf = append(node.ElseIf, parser.ElseIf{
					Condition: strings.TrimSpace(em[1]),
					Then:      []parser.Statement{},
				})
				target = &node.ElseIf[len(node.ElseIf)-1].Then
				if em[2] != "" {
					*target = append(*target, tailLine(l, em[2]))
				}
				continue
			case depth == 1 && isElse(l):
				target = &node.Else
				if rest := strings.TrimSpace(l.Text[len("ELSE"):]); rest != "" {
					*target = append(*target, tailLine(l, rest))
				}
				continue
			}
		}
		*target = append(*target, it)
	}
	s.warn(open.LineNo, "could not find matching END IF;")
	return nil, start
}
