package parser

import "encoding/json"

// UnparsedName is the sentinel name given to declarations whose shape was not recognized.
const UnparsedName = "UNPARSED"

// Declarations groups everything found between DECLARE and BEGIN.
type Declarations struct {
	Variables  []VariableDecl  `json:"variables"`
	Constants  []ConstantDecl  `json:"constants"`
	Exceptions []ExceptionDecl `json:"exceptions"`
	Cursors    []CursorDecl    `json:"cursors"`
}

type VariableDecl struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	DefaultValue *string `json:"default_value"`
}

type ConstantDecl struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Value    *string `json:"value"`
}

type ExceptionDecl struct {
	Name string `json:"name"`
}

// CursorDecl is `CURSOR name [(parameters)] IS query;`.
type CursorDecl struct {
	Name       string `json:"name"`
	Parameters string `json:"parameters,omitempty"`
	Query      string `json:"query"`
}

// RuleViolation is a single-line formatting contract that the source breaks.
type RuleViolation struct {
	LineNo   int    `json:"line_no"`
	Code     string `json:"code"`
	Rule     string `json:"rule"`
	Solution string `json:"solution"`
}

// Stats summarizes one analysis.
type Stats struct {
	TotalLines   int            `json:"total_lines"`
	CodeLines    int            `json:"code_lines"`
	CommentCount int            `json:"comment_count"`
	Variables    int            `json:"variables"`
	Constants    int            `json:"constants"`
	Exceptions   int            `json:"exceptions"`
	Cursors      int            `json:"cursors"`
	Statements   map[string]int `json:"statements"`
	RestStrings  int            `json:"rest_strings"`
}

// TriggerInfo is the parsed CREATE TRIGGER header, when one precedes DECLARE.
type TriggerInfo struct {
	Name       string   `json:"name"`
	Timing     string   `json:"timing"`
	Events     []string `json:"events"`
	Table      string   `json:"table"`
	ForEachRow bool     `json:"for_each_row"`
}

type Metadata struct {
	ParseTimestamp string       `json:"parse_timestamp"`
	ParserVersion  string       `json:"parser_version"`
	SourcePath     string       `json:"source_path,omitempty"`
	Header         []string     `json:"header,omitempty"`
	Trigger        *TriggerInfo `json:"trigger,omitempty"`
}

// Result is the analysis of one trigger body. When Violations is non-empty
// the result carries nothing else and serializes as {"error": [...]}.
type Result struct {
	Declarations Declarations
	Main         []Statement
	Comments     []string
	RestStrings  []string
	Warnings     []string
	Stats        Stats
	Metadata     Metadata
	Violations   []RuleViolation
}

// Failed reports whether the analysis was aborted by rule violations.
func (r *Result) Failed() bool {
	return len(r.Violations) > 0
}

func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error []RuleViolation `json:"error"`
		}{r.Violations})
	}
	return json.Marshal(struct {
		Declarations Declarations `json:"declarations"`
		Main         []Statement  `json:"main"`
		Comments     []string     `json:"sql_comments"`
		RestStrings  []string     `json:"rest_strings"`
		Warnings     []string     `json:"warnings,omitempty"`
		Stats        Stats        `json:"conversion_stats"`
		Metadata     Metadata     `json:"metadata"`
	}{r.Declarations, r.Main, r.Comments, r.RestStrings, r.Warnings, r.Stats, r.Metadata})
}
