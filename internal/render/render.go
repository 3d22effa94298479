// Package render turns an analysis result back into procedural SQL, either
// PostgreSQL PL/pgSQL or reformatted Oracle PL/SQL.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/parser"
)

const (
	DialectPostgreSQL = "postgresql"
	DialectOracle     = "oracle"
)

// Count keys reported in Output.Counts besides the statement node types.
const (
	CountDataTypes   = "data_type_substitutions"
	CountFunctions   = "function_substitutions"
	CountExceptions  = "exception_substitutions"
	CountBindVars    = "bind_variable_substitutions"
	CountRestStrings = "rest_strings"
	CountUnparsed    = "unparsed_declarations"
)

// ErrViolations is returned when asked to render a result that was aborted
// by rule violations.
var ErrViolations = errors.New("analysis has rule violations")

var reCallExpr = regexp.MustCompile(`^[A-Za-z_][\w$#.]*\s*\(.*\)$`)

// Oracle length semantics, VARCHAR2(100 CHAR); PostgreSQL lengths are always characters.
var reLengthSemantics = regexp.MustCompile(`(?i)\s+(?:CHAR|BYTE)\s*\)`)

// Output is one rendered trigger body.
type Output struct {
	SQL    string         `json:"sql"`
	Counts map[string]int `json:"counts"`
}

// Dialects lists the supported target dialects.
func Dialects() []string {
	return []string{DialectPostgreSQL, DialectOracle}
}

func ValidDialect(d string) bool {
	return d == DialectPostgreSQL || d == DialectOracle
}

type Option func(*Renderer)

// WithIndent sets the number of spaces per nesting level.
func WithIndent(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.indent = n
		}
	}
}

// Renderer is safe for concurrent use; all per-call state lives in Render.
type Renderer struct {
	tables *mapping.Tables
	indent int
}

func New(tables *mapping.Tables, opts ...Option) *Renderer {
	if tables == nil {
		tables = mapping.Default()
	}
	r := &Renderer{tables: tables, indent: 2}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fingerprint identifies the mapping tables and layout this renderer uses.
func (r *Renderer) Fingerprint() string {
	data, err := json.Marshal(r.tables)
	if err != nil {
		data = nil
	}
	return fmt.Sprintf("map%s:indent%d", parser.ContentHash(data)[:12], r.indent)
}

// Render walks res depth-first and emits dialect SQL. An empty dialect means
// PostgreSQL.
func (r *Renderer) Render(res *parser.Result, dialect string) (Output, error) {
	if res == nil {
		return Output{}, errors.New("render: nil result")
	}
	if res.Failed() {
		return Output{}, fmt.Errorf("render: %w (%d)", ErrViolations, len(res.Violations))
	}
	if dialect == "" {
		dialect = DialectPostgreSQL
	}
	if !ValidDialect(dialect) {
		return Output{}, fmt.Errorf("render: unsupported dialect %q", dialect)
	}

	w := &writer{
		r:  r,
		pg: dialect == DialectPostgreSQL,
		counts: map[string]int{
			CountDataTypes:   0,
			CountFunctions:   0,
			CountExceptions:  0,
			CountRestStrings: 0,
		},
		userExceptions: map[string]bool{},
		names:          map[string]bool{},
	}
	if w.pg {
		w.counts[CountBindVars] = 0
	}
	for _, e := range res.Declarations.Exceptions {
		w.userExceptions[strings.ToUpper(e.Name)] = true
	}
	for _, v := range res.Declarations.Variables {
		w.names[strings.ToUpper(v.Name)] = true
	}
	for _, c := range res.Declarations.Constants {
		w.names[strings.ToUpper(c.Name)] = true
	}

	w.declarations(res.Declarations)
	w.statements(res.Main, 0)
	return Output{SQL: w.b.String(), Counts: w.counts}, nil
}

type writer struct {
	r              *Renderer
	pg             bool
	b              strings.Builder
	counts         map[string]int
	userExceptions map[string]bool
	names          map[string]bool
}

func (w *writer) emit(depth int, text string) {
	w.b.WriteString(strings.Repeat(" ", depth*w.r.indent))
	w.b.WriteString(text)
	w.b.WriteByte('\n')
}

func (w *writer) comment(depth int, text string) {
	for _, l := range strings.Split(text, "\n") {
		w.emit(depth, "-- "+strings.TrimSpace(l))
	}
}

// expr rewrites an expression for the target dialect.
func (w *writer) expr(text string) string {
	if !w.pg {
		return text
	}
	text, n := rewriteBinds(text)
	w.counts[CountBindVars] += n
	text, n = substitute(text, w.r.tables.Functions)
	w.counts[CountFunctions] += n
	return text
}

func (w *writer) dataType(text string) string {
	if !w.pg {
		return text
	}
	text, n := substitute(text, w.r.tables.DataTypes)
	w.counts[CountDataTypes] += n
	return reLengthSemantics.ReplaceAllString(text, ")")
}

func (w *writer) declarations(d parser.Declarations) {
	if len(d.Variables)+len(d.Constants)+len(d.Exceptions)+len(d.Cursors) == 0 {
		return
	}
	w.emit(0, "DECLARE")

	for _, v := range d.Variables {
		if v.Name == parser.UnparsedName {
			w.counts[CountUnparsed]++
			w.comment(1, deref(v.DefaultValue))
			continue
		}
		text := v.Name + " " + w.dataType(v.DataType)
		if v.DefaultValue != nil {
			text += " := " + w.expr(*v.DefaultValue)
		}
		w.emit(1, text+";")
	}

	for _, c := range d.Constants {
		if c.Name == parser.UnparsedName {
			w.counts[CountUnparsed]++
			w.comment(1, deref(c.Value))
			continue
		}
		text := c.Name + " CONSTANT " + w.dataType(c.DataType)
		if c.Value != nil {
			text += " := " + w.expr(*c.Value)
		}
		w.emit(1, text+";")
	}

	for _, e := range d.Exceptions {
		if w.pg {
			w.counts[CountExceptions]++
			w.emit(1, "-- "+e.Name+" EXCEPTION; raised as RAISE EXCEPTION '"+e.Name+"'")
			continue
		}
		w.emit(1, e.Name+" EXCEPTION;")
	}

	for _, c := range d.Cursors {
		params := c.Parameters
		if params != "" {
			params = " " + w.dataType(params)
		}
		if w.pg {
			w.emit(1, c.Name+" CURSOR"+params+" FOR "+w.expr(c.Query)+";")
			continue
		}
		w.emit(1, "CURSOR "+c.Name+params+" IS "+c.Query+";")
	}
}

func (w *writer) statements(list []parser.Statement, depth int) {
	for _, s := range list {
		w.node(s, depth)
	}
}

func (w *writer) node(s parser.Statement, depth int) {
	if l, ok := s.(parser.Line); ok {
		w.counts[CountRestStrings]++
		w.emit(depth, l.Text)
		return
	}
	w.counts[s.Type()]++

	switch n := s.(type) {
	case *parser.Assignment:
		w.emit(depth, w.expr(n.Variable)+" := "+w.expr(n.Value)+";")

	case *parser.SQLStatement:
		if n.Kind == parser.TypeRaise && w.pg {
			w.emit(depth, w.raise(n.SQL))
			return
		}
		w.emit(depth, w.expr(n.SQL))

	case *parser.IfElse:
		w.emit(depth, "IF "+w.expr(n.Condition)+" THEN")
		w.statements(n.Then, depth+1)
		for _, ei := range n.ElseIf {
			w.emit(depth, "ELSIF "+w.expr(ei.Condition)+" THEN")
			w.statements(ei.Then, depth+1)
		}
		if len(n.Else) > 0 {
			w.emit(depth, "ELSE")
			w.statements(n.Else, depth+1)
		}
		w.emit(depth, "END IF;")

	case *parser.CaseWhen:
		head := "CASE"
		if n.Expression != "" {
			head += " " + w.expr(n.Expression)
		}
		w.emit(depth, head)
		for _, c := range n.Clauses {
			if c.IsElse {
				w.emit(depth+1, "ELSE")
			} else {
				w.emit(depth+1, "WHEN "+w.expr(c.Value)+" THEN")
			}
			w.statements(c.Body, depth+2)
		}
		w.emit(depth, "END CASE;")

	case *parser.ForLoop:
		query := n.CursorQuery
		if w.pg {
			query = w.expr(query)
		} else if isQuery(query) {
			query = "(" + query + ")"
		}
		w.emit(depth, "FOR "+n.LoopVariable+" IN "+query+" LOOP")
		w.statements(n.Body, depth+1)
		w.emit(depth, "END LOOP;")

	case *parser.BeginEnd:
		w.emit(depth, "BEGIN")
		w.statements(n.Statements, depth+1)
		if len(n.Handlers) > 0 {
			w.emit(depth, "EXCEPTION")
			for _, h := range n.Handlers {
				w.emit(depth+1, "WHEN "+w.handlerName(h.Name)+" THEN")
				w.statements(h.Statements, depth+2)
			}
		}
		w.emit(depth, "END;")

	case *parser.FunctionCall:
		w.emit(depth, w.call(n))
	}
}

func isQuery(q string) bool {
	upper := strings.ToUpper(strings.TrimSpace(q))
	return strings.HasPrefix(upper, "SELECT ") || strings.HasPrefix(upper, "WITH ")
}

// handlerName maps `a OR b` exception names to PostgreSQL condition names.
func (w *writer) handlerName(name string) string {
	if !w.pg {
		return name
	}
	parts := strings.Fields(name)
	var out []string
	for _, p := range parts {
		if strings.EqualFold(p, "OR") {
			continue
		}
		out = append(out, w.condition(p))
	}
	return strings.Join(out, " OR ")
}

func (w *writer) condition(name string) string {
	upper := strings.ToUpper(name)
	if mapped, ok := w.r.tables.Exceptions[upper]; ok {
		if mapped != upper {
			w.counts[CountExceptions]++
		}
		return strings.ToLower(mapped)
	}
	if w.userExceptions[upper] {
		w.counts[CountExceptions]++
		return "raise_exception"
	}
	return name
}

// raise renders `RAISE [name];` for PL/pgSQL, where user-declared
// exceptions do not exist.
func (w *writer) raise(sql string) string {
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql[len("RAISE"):]), ";"))
	if name == "" {
		return "RAISE;"
	}
	upper := strings.ToUpper(name)
	if w.userExceptions[upper] {
		w.counts[CountExceptions]++
		return "RAISE EXCEPTION " + quote(name) + ";"
	}
	if mapped, ok := w.r.tables.Exceptions[upper]; ok {
		if mapped != upper {
			w.counts[CountExceptions]++
		}
		return "RAISE " + strings.ToLower(mapped) + ";"
	}
	return w.expr(sql)
}

func (w *writer) call(n *parser.FunctionCall) string {
	switch n.Name {
	case "raise_application_error":
		code := n.Parameter["handler_code"]
		msg := w.message(n.Parameter["handler_string"])
		if !w.pg {
			args := []string{code, msg}
			if keep, ok := n.Parameter["keep_errors"]; ok {
				args = append(args, keep)
			}
			return "RAISE_APPLICATION_ERROR(" + strings.Join(args, ", ") + ");"
		}
		w.counts[CountFunctions]++
		return fmt.Sprintf("RAISE EXCEPTION '%%', %s USING ERRCODE = '%s';", msg, sqlState(code))

	case "dbms_output.put_line":
		if w.pg {
			w.counts[CountFunctions]++
			return "RAISE NOTICE '%', " + w.expr(n.Parameter["arg1"]) + ";"
		}
	}

	name := n.Name
	if w.pg {
		name, _ = substitute(name, w.r.tables.Functions)
		if name != n.Name {
			w.counts[CountFunctions]++
		}
		return "PERFORM " + name + "(" + strings.Join(w.arguments(n.Parameter), ", ") + ");"
	}
	return name + "(" + strings.Join(w.arguments(n.Parameter), ", ") + ");"
}

// arguments returns positional arguments in order followed by named ones
// sorted by name.
func (w *writer) arguments(params map[string]string) []string {
	var positional []int
	var named []string
	for k := range params {
		if strings.HasPrefix(k, "arg") {
			if i, err := strconv.Atoi(k[3:]); err == nil {
				positional = append(positional, i)
				continue
			}
		}
		named = append(named, k)
	}
	sort.Ints(positional)
	sort.Strings(named)

	args := make([]string, 0, len(params))
	for _, i := range positional {
		args = append(args, w.expr(params["arg"+strconv.Itoa(i)]))
	}
	for _, k := range named {
		args = append(args, k+" => "+w.expr(params[k]))
	}
	return args
}

// message turns the handler_string of RAISE_APPLICATION_ERROR back into an
// expression. Plain text came from a single literal and is quoted again.
func (w *writer) message(msg string) string {
	trimmed := strings.TrimSpace(msg)
	switch {
	case strings.HasPrefix(trimmed, "'"),
		strings.HasPrefix(trimmed, ":"),
		strings.Contains(trimmed, "||"),
		reCallExpr.MatchString(trimmed),
		w.names[strings.ToUpper(trimmed)],
		w.r.tables.Functions[strings.ToUpper(trimmed)] != "":
		return w.expr(trimmed)
	}
	return quote(msg)
}

// sqlState maps an Oracle application error number (-20000..-20999) onto
// the 45000..45999 SQLSTATE range; anything else becomes P0001.
func sqlState(code string) string {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || n > -20000 || n < -20999 {
		return "P0001"
	}
	return strconv.Itoa(45000 + (-n - 20000))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
