package plsql

import (
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
)

// RuleDefinition is one single-line formatting contract the body must honor
// before it can be structured.
type RuleDefinition struct {
	Code     string `json:"code"`
	Rule     string `json:"rule"`
	Solution string `json:"solution"`
}

var (
	ruleIfThen = RuleDefinition{
		Code:     "if_then_split",
		Rule:     "IF and THEN must be on the same line",
		Solution: "Write the whole condition on one line: IF <condition> THEN",
	}
	ruleElsifThen = RuleDefinition{
		Code:     "elsif_then_split",
		Rule:     "ELSIF and THEN must be on the same line",
		Solution: "Write the whole condition on one line: ELSIF <condition> THEN",
	}
	ruleWhenThen = RuleDefinition{
		Code:     "when_then_split",
		Rule:     "WHEN and THEN must be on the same line",
		Solution: "Write the whole clause on one line: WHEN <value> THEN",
	}
	ruleRaiseApplicationError = RuleDefinition{
		Code:     "raise_application_error_format",
		Rule:     "RAISE_APPLICATION_ERROR must close its parenthesis and end with ';' on the same or the following line",
		Solution: "Write RAISE_APPLICATION_ERROR(<code>, <message>); on at most two lines",
	}
)

// Rules returns every rule the validator checks.
func Rules() []RuleDefinition {
	return []RuleDefinition{ruleIfThen, ruleElsifThen, ruleWhenThen, ruleRaiseApplicationError}
}

// validate checks each clean body line against the single-line rules and
// returns every violation found, in line order.
func validate(lines []parser.Line) []parser.RuleViolation {
	var violations []parser.RuleViolation
	add := func(l parser.Line, r RuleDefinition) {
		violations = append(violations, parser.RuleViolation{
			LineNo:   l.LineNo,
			Code:     r.Code,
			Rule:     r.Rule,
			Solution: r.Solution,
		})
	}

	for i, l := range lines {
		switch firstWord(l.Text) {
		case "IF":
			if !hasWord(l.Text, "THEN") {
				add(l, ruleIfThen)
			}
		case "ELSIF":
			if !hasWord(l.Text, "THEN") {
				add(l, ruleElsifThen)
			}
		case "WHEN":
			if !hasWord(l.Text, "THEN") {
				add(l, ruleWhenThen)
			}
		}

		if idx := wordIndex(l.Text, "RAISE_APPLICATION_ERROR"); idx >= 0 {
			var next *parser.Line
			if i+1 < len(lines) {
				next = &lines[i+1]
			}
			if !raiseApplicationErrorClosed(l.Text[idx:], l.Terminated, next) {
				add(l, ruleRaiseApplicationError)
			}
		}
	}
	return violations
}

// raiseApplicationErrorClosed reports whether the call starting at stmt
// closes its parenthesis on this line or, if this line is unterminated, on
// the next one, and whether that closing line ends with ';'.
func raiseApplicationErrorClosed(stmt string, terminated bool, next *parser.Line) bool {
	if !strings.Contains(stmt, "(") {
		return false
	}
	depth := parenDelta(stmt)
	if depth <= 0 {
		return terminated
	}
	if terminated || next == nil {
		return false
	}
	return depth+parenDelta(next.Text) <= 0 && next.Terminated
}
