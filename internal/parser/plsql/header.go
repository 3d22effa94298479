package plsql

import (
	"regexp"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

var (
	reTriggerHeader = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:(?:NON)?EDITIONABLE\s+)?TRIGGER\s+(\S+)\s+(BEFORE|AFTER|INSTEAD\s+OF)\s+(.+?)\s+ON\s+(\S+)(.*)$`)
	reEventSep      = regexp.MustCompile(`(?i)\s+OR\s+`)
	reForEachRow    = regexp.MustCompile(`(?i)\bFOR\s+EACH\s+ROW\b`)
)

// parseTriggerHeader reads a CREATE TRIGGER clause from the header lines.
// It returns nil when the lines are something else.
func parseTriggerHeader(lines []parser.Line) *parser.TriggerInfo {
	if len(lines) == 0 {
		return nil
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	m := reTriggerHeader.FindStringSubmatch(strings.Join(parts, " "))
	if m == nil {
		return nil
	}

	var events []string
	for _, ev := range reEventSep.Split(m[3], -1) {
		if ev = strings.TrimSpace(ev); ev != "" {
			events = append(events, strings.ToUpper(strings.Join(strings.Fields(ev), " ")))
		}
	}
	return &parser.TriggerInfo{
		Name:       m[1],
		Timing:     strings.ToUpper(strings.Join(strings.Fields(m[2]), " ")),
		Events:     events,
		Table:      m[4],
		ForEachRow: reForEachRow.MatchString(m[5]),
	}
}
