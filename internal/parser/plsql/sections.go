package plsql

import (
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

// sections is the DECLARE/BEGIN split of a trigger body.
type sections struct {
	header       []parser.Line // CREATE TRIGGER clause, or anything before DECLARE
	declarations []parser.Line // strictly between DECLARE and the first BEGIN
	body         []parser.Line // from that BEGIN on
}

// splitSections locates DECLARE and the first BEGIN after it. Without a
// DECLARE line a leading CREATE ... TRIGGER clause up to the first BEGIN is
// still split off as header, and everything else is body. Nesting is not
// validated here.
func splitSections(lines []parser.Line) sections {
	declareAt := indexLine(lines, 0, "DECLARE")
	if declareAt < 0 {
		if beginAt := indexLine(lines, 0, "BEGIN"); beginAt > 0 && isTriggerHeader(lines[:beginAt]) {
			return sections{header: lines[:beginAt], body: lines[beginAt:]}
		}
		return sections{body: lines}
	}

	s := sections{header: lines[:declareAt]}
	beginAt := indexLine(lines, declareAt+1, "BEGIN")
	if beginAt < 0 {
		s.declarations = lines[declareAt+1:]
		return s
	}
	s.declarations = lines[declareAt+1 : beginAt]
	s.body = lines[beginAt:]
	return s
}

// indexLine returns the first line at or after from whose whole text is
// keyword, or -1.
func indexLine(lines []parser.Line, from int, keyword string) int {
	for i := from; i < len(lines); i++ {
		if strings.EqualFold(lines[i].Text, keyword) {
			return i
		}
	}
	return -1
}

func isTriggerHeader(lines []parser.Line) bool {
	if firstWord(lines[0].Text) != "CREATE" {
		return false
	}
	for _, l := range lines {
		if hasWord(l.Text, "TRIGGER") {
			return true
		}
	}
	return false
}
