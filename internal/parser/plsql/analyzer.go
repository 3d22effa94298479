// Package plsql analyzes Oracle PL/SQL trigger bodies into the statement
// tree defined by package parser.
//
// Analysis is a fixed pipeline: line records, comment removal, the
// DECLARE/BEGIN split, the rule check (which aborts on any violation),
// declaration parsing and body structuring. It performs no I/O and keeps no
// state between calls, so one Analyzer may be shared by many goroutines.
package plsql

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maraichr/trigconv/internal/parser"
)

// Version is written to metadata.parser_version.
const Version = "1.2.0"

const (
	DefaultCaseClauseIndent = 3
	DefaultMaxDepth         = 64
)

// Analyzer implements parser.Parser for PL/SQL trigger bodies.
type Analyzer struct {
	logger           *slog.Logger
	caseClauseIndent int
	maxDepth         int
	now              func() time.Time
}

type Option func(*Analyzer)

// WithLogger sends structural mismatch warnings to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithCaseClauseIndent sets how many columns deeper than its CASE line a
// WHEN or ELSE clause may be indented. A clause belongs to the CASE when its
// indent lies in [caseIndent, caseIndent+n], both ends included; with the
// default of 3 a CASE at column 4 accepts clauses at columns 4 through 7.
func WithCaseClauseIndent(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.caseClauseIndent = n
		}
	}
}

// WithMaxDepth bounds how deep nested blocks are structured.
func WithMaxDepth(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxDepth = n
		}
	}
}

// WithClock overrides the time source used for metadata.parse_timestamp.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:           slog.New(slog.DiscardHandler),
		caseClauseIndent: DefaultCaseClauseIndent,
		maxDepth:         DefaultMaxDepth,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fingerprint identifies the settings that shape this analyzer's output.
// Result caches fold it into their namespace.
func (a *Analyzer) Fingerprint() string {
	return fmt.Sprintf("%s:case%d:depth%d", Version, a.caseClauseIndent, a.maxDepth)
}

// Analyze runs the default analyzer over source.
func Analyze(source string) *parser.Result {
	return New().Analyze(source)
}

func (a *Analyzer) Languages() []string {
	return []string{parser.DialectPLSQL, "oracle"}
}

func (a *Analyzer) Parse(input parser.FileInput) (*parser.Result, error) {
	if !utf8.Valid(input.Content) {
		return nil, fmt.Errorf("%s: source is not valid UTF-8", input.Path)
	}
	res := a.analyze(string(input.Content))
	res.Metadata.SourcePath = input.Path
	return res, nil
}

// Analyze converts one trigger body. A result with violations holds nothing else.
func (a *Analyzer) Analyze(source string) *parser.Result {
	return a.analyze(source)
}

func (a *Analyzer) analyze(source string) *parser.Result {
	lines := SplitLines(source)
	clean, comments, unterminated := stripComments(lines)
	sec := splitSections(clean)

	if violations := validate(sec.body); len(violations) > 0 {
		a.logger.Info("rule violations", slog.Int("count", len(violations)))
		return &parser.Result{Violations: violations}
	}

	st := &structurer{
		caseClauseIndent: a.caseClauseIndent,
		maxDepth:         a.maxDepth,
		logger:           a.logger,
	}
	if unterminated {
		st.warn(lastLineNo(lines), "block comment is not terminated")
	}

	body := make([]parser.Statement, len(sec.body))
	for i, l := range sec.body {
		body[i] = l
	}

	res := &parser.Result{
		Declarations: parseDeclarations(sec.declarations),
		Main:         st.structure(body, 0),
		Comments:     comments,
		RestStrings:  []string{},
		Metadata: parser.Metadata{
			ParseTimestamp: parser.FormatTimestamp(a.now()),
			ParserVersion:  Version,
			Trigger:        parseTriggerHeader(sec.header),
		},
	}
	for _, l := range sec.header {
		res.Metadata.Header = append(res.Metadata.Header, l.Text)
	}

	counts := map[string]int{}
	parser.Walk(res.Main, func(s parser.Statement) {
		if l, ok := s.(parser.Line); ok {
			res.RestStrings = append(res.RestStrings, l.Text)
			return
		}
		counts[s.Type()]++
	})
	res.Warnings = st.warnings
	res.Stats = parser.Stats{
		TotalLines:   physicalLines(source),
		CodeLines:    len(clean),
		CommentCount: len(comments),
		Variables:    len(res.Declarations.Variables),
		Constants:    len(res.Declarations.Constants),
		Exceptions:   len(res.Declarations.Exceptions),
		Cursors:      len(res.Declarations.Cursors),
		Statements:   counts,
		RestStrings:  len(res.RestStrings),
	}
	return res
}

func lastLineNo(lines []parser.Line) int {
	if len(lines) == 0 {
		return 0
	}
	return lines[len(lines)-1].LineNo
}

func physicalLines(source string) int {
	if source == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(source, "\n"), "\n") + 1
}
