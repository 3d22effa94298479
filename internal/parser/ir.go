package parser

import "encoding/json"

// Statement node type tags, as written to the "type" field of the IR.
const (
	TypeAssignment   = "assignment_statement"
	TypeSelect       = "select_statement"
	TypeInsert       = "insert_statement"
	TypeUpdate       = "update_statement"
	TypeDelete       = "delete_statement"
	TypeRaise        = "raise_statement"
	TypeIfElse       = "if_else"
	TypeCaseWhen     = "case_when"
	TypeForLoop      = "for_loop"
	TypeBeginEnd     = "begin_end"
	TypeFunctionCall = "function_calling"
	TypeRestString   = "rest_string"
)

// Statement is a node of the body tree. Container nodes hold child lists
// that may transiently contain Line values while the body is being structured.
type Statement interface {
	Type() string
}

// Line is one non-empty source line. It doubles as the fallback Statement
// for text that no recognition pass could classify.
type Line struct {
	Indent     int    `json:"indent"`
	Text       string `json:"text"`
	LineNo     int    `json:"line_no"`
	Terminated bool   `json:"-"`
}

func (Line) Type() string { return TypeRestString }

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Text   string `json:"text"`
		LineNo int    `json:"line_no"`
		Indent int    `json:"indent"`
	}{TypeRestString, l.Text, l.LineNo, l.Indent})
}

// Assignment is `variable := value;`.
type Assignment struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

func (*Assignment) Type() string { return TypeAssignment }

func (n *Assignment) MarshalJSON() ([]byte, error) {
	type alias Assignment
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{n.Type(), (*alias)(n)})
}

// SQLStatement is an opaque SELECT/INSERT/UPDATE/DELETE/RAISE statement.
// Kind holds one of the Type* tags.
type SQLStatement struct {
	Kind string `json:"-"`
	SQL  string `json:"sql"`
}

func (n *SQLStatement) Type() string { return n.Kind }

func (n *SQLStatement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		SQL  string `json:"sql"`
	}{n.Kind, n.SQL})
}

// IfElse is an IF / ELSIF / ELSE / END IF block.
type IfElse struct {
	Condition string      `json:"condition"`
	Then      []Statement `json:"then_statements"`
	ElseIf    []ElseIf    `json:"else_if"`
	Else      []Statement `json:"else_statements"`
}

// ElseIf is one ELSIF branch.
type ElseIf struct {
	Condition string      `json:"condition"`
	Then      []Statement `json:"then_statements"`
}

func (*IfElse) Type() string { return TypeIfElse }

func (n *IfElse) MarshalJSON() ([]byte, error) {
	type alias IfElse
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{n.Type(), (*alias)(n)})
}

// CaseWhen is a CASE statement. An empty Expression means a searched CASE.
type CaseWhen struct {
	Expression string       `json:"case_expression"`
	Clauses    []WhenClause `json:"when_clauses"`
}

// WhenClause is either a `WHEN value THEN` clause or, with IsElse set, the ELSE clause.
type WhenClause struct {
	IsElse bool
	Value  string
	Body   []Statement
}

func (c WhenClause) MarshalJSON() ([]byte, error) {
	if c.IsElse {
		return json.Marshal(struct {
			Else []Statement `json:"else_statements"`
		}{c.Body})
	}
	return json.Marshal(struct {
		Value string      `json:"when_value"`
		Then  []Statement `json:"then_statements"`
	}{c.Value, c.Body})
}

func (*CaseWhen) Type() string { return TypeCaseWhen }

func (n *CaseWhen) MarshalJSON() ([]byte, error) {
	type alias CaseWhen
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{n.Type(), (*alias)(n)})
}

// ForLoop is `FOR var IN query LOOP ... END LOOP;`.
type ForLoop struct {
	LoopVariable string      `json:"loop_variable"`
	CursorQuery  string      `json:"cursor_query"`
	Body         []Statement `json:"loop_statements"`
}

func (*ForLoop) Type() string { return TypeForLoop }

func (n *ForLoop) MarshalJSON() ([]byte, error) {
	type alias ForLoop
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{n.Type(), (*alias)(n)})
}

// BeginEnd is a BEGIN ... [EXCEPTION ...] END; block.
type BeginEnd struct {
	Statements []Statement        `json:"begin_end_statements"`
	Handlers   []ExceptionHandler `json:"exception_handlers"`
}

// ExceptionHandler is one `WHEN name THEN` handler of an EXCEPTION section.
type ExceptionHandler struct {
	Name       string      `json:"exception_name"`
	Statements []Statement `json:"exception_statements"`
}

func (*BeginEnd) Type() string { return TypeBeginEnd }

func (n *BeginEnd) MarshalJSON() ([]byte, error) {
	type alias BeginEnd
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{n.Type(), (*alias)(n)})
}

// FunctionCall is a procedure or function invoked as a statement.
type FunctionCall struct {
	Name      string            `json:"function_name"`
	Parameter map[string]string `json:"parameter"`
}

func (*FunctionCall) Type() string { return TypeFunctionCall }

func (n *FunctionCall) MarshalJSON() ([]byte, error) {
	type alias FunctionCall
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{n.Type(), (*alias)(n)})
}

// Children returns pointers to every child statement list of a container
// node, so callers can walk or replace them in place. Leaf nodes return nil.
func Children(s Statement) []*[]Statement {
	switch n := s.(type) {
	case *IfElse:
		out := []*[]Statement{&n.Then}
		for i := range n.ElseIf {
			out = append(out, &n.ElseIf[i].Then)
		}
		return append(out, &n.Else)
	case *CaseWhen:
		out := make([]*[]Statement, 0, len(n.Clauses))
		for i := range n.Clauses {
			out = append(out, &n.Clauses[i].Body)
		}
		return out
	case *ForLoop:
		return []*[]Statement{&n.Body}
	case *BeginEnd:
		out := []*[]Statement{&n.Statements}
		for i := range n.Handlers {
			out = append(out, &n.Handlers[i].Statements)
		}
		return out
	}
	return nil
}

// Walk visits every statement depth-first, parents before children.
func Walk(list []Statement, fn func(Statement)) {
	for _, s := range list {
		fn(s)
		for _, child := range Children(s) {
			Walk(*child, fn)
		}
	}
}
