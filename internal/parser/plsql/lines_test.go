package plsql

import (
	"strings"
	"testing"

	"github.com/maraichr/trigconv/internal/parser"
)

func TestSplitLines(t *testing.T) {
	input := "DECLARE\n  v NUMBER;\n\n  BEGIN\r\nEND;"
	lines := SplitLines(input)

	want := []parser.Line{
		{Indent: 0, Text: "DECLARE", LineNo: 1},
		{Indent: 2, Text: "v NUMBER;", LineNo: 2, Terminated: true},
		{Indent: 2, Text: "BEGIN", LineNo: 4},
		{Indent: 0, Text: "END;", LineNo: 5, Terminated: true},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %+v, got %+v", i, want[i], lines[i])
		}
	}
}

func TestSplitLinesEmpty(t *testing.T) {
	if got := SplitLines(""); len(got) != 0 {
		t.Errorf("expected no lines, got %d", len(got))
	}
	if got := SplitLines("\n   \n\t\n"); len(got) != 0 {
		t.Errorf("expected no lines for blank input, got %d", len(got))
	}
}

func TestSplitLinesPreservesText(t *testing.T) {
	input := `BEGIN
  UPDATE emp SET sal = sal * 1.1
  WHERE id = :NEW.id;
END;`
	var texts []string
	for _, l := range SplitLines(input) {
		texts = append(texts, l.Text)
	}
	got := strings.Join(texts, " ")
	want := strings.Join(strings.Fields(input), " ")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestStripComments(t *testing.T) {
	input := `BEGIN
  v := 1; -- set v
  /* block
  spans */ v := 2;
  s := 'a -- b'; /* x */ /* y */
END;`
	clean, comments, unterminated := stripComments(SplitLines(input))
	if unterminated {
		t.Error("expected all block comments to be closed")
	}

	wantComments := []string{"-- set v", "/* block\nspans */", "/* x */", "/* y */"}
	if len(comments) != len(wantComments) {
		t.Fatalf("expected %d comments, got %d: %q", len(wantComments), len(comments), comments)
	}
	for i := range wantComments {
		if comments[i] != wantComments[i] {
			t.Errorf("comment %d: expected %q, got %q", i, wantComments[i], comments[i])
		}
	}

	wantClean := []struct {
		text   string
		lineNo int
	}{
		{"BEGIN", 1},
		{"v := 1;", 2},
		{"v := 2;", 4},
		{"s := 'a -- b';", 5},
		{"END;", 6},
	}
	if len(clean) != len(wantClean) {
		t.Fatalf("expected %d clean lines, got %d", len(wantClean), len(clean))
	}
	for i, w := range wantClean {
		if clean[i].Text != w.text || clean[i].LineNo != w.lineNo {
			t.Errorf("line %d: expected %q@%d, got %q@%d", i, w.text, w.lineNo, clean[i].Text, clean[i].LineNo)
		}
	}
}

func TestStripCommentsUnterminated(t *testing.T) {
	clean, comments, unterminated := stripComments(SplitLines("BEGIN\n/* open\nEND;"))
	if !unterminated {
		t.Error("expected unterminated block comment to be reported")
	}
	if len(comments) != 1 || comments[0] != "/* open\nEND;" {
		t.Errorf("expected the open comment to be emitted, got %q", comments)
	}
	if len(clean) != 1 || clean[0].Text != "BEGIN" {
		t.Errorf("expected only BEGIN to remain, got %+v", clean)
	}
}

func TestStripInlineCommentEscapedQuote(t *testing.T) {
	clean, comments, _ := stripComments(SplitLines("s := 'it''s -- fine'; -- real"))
	if len(comments) != 1 || comments[0] != "-- real" {
		t.Errorf("expected one comment, got %q", comments)
	}
	if clean[0].Text != "s := 'it''s -- fine';" {
		t.Errorf("unexpected code text %q", clean[0].Text)
	}
}

func TestSplitSections(t *testing.T) {
	input := `CREATE OR REPLACE TRIGGER trg_emp
BEFORE INSERT OR UPDATE ON emp
FOR EACH ROW
DECLARE
  v NUMBER;
BEGIN
  NULL;
END;`
	sec := splitSections(SplitLines(input))
	if len(sec.header) != 3 {
		t.Errorf("expected 3 header lines, got %d", len(sec.header))
	}
	if len(sec.declarations) != 1 || sec.declarations[0].Text != "v NUMBER;" {
		t.Errorf("unexpected declarations %+v", sec.declarations)
	}
	if len(sec.body) != 3 || sec.body[0].Text != "BEGIN" {
		t.Errorf("expected body to start at BEGIN, got %+v", sec.body)
	}

	info := parseTriggerHeader(sec.header)
	if info == nil {
		t.Fatal("expected trigger header to be parsed")
	}
	if info.Name != "trg_emp" || info.Timing != "BEFORE" || info.Table != "emp" || !info.ForEachRow {
		t.Errorf("unexpected trigger info %+v", info)
	}
	if len(info.Events) != 2 || info.Events[0] != "INSERT" || info.Events[1] != "UPDATE" {
		t.Errorf("expected [INSERT UPDATE], got %v", info.Events)
	}
}

func TestSplitSectionsWithoutDeclareNoHeader(t *testing.T) {
	sec := splitSections(SplitLines("BEGIN\n  NULL;\nEND;"))
	if len(sec.declarations) != 0 || len(sec.header) != 0 {
		t.Errorf("expected no declarations or header, got %+v", sec)
	}
	if len(sec.body) != 3 {
		t.Errorf("expected whole input as body, got %d lines", len(sec.body))
	}
}

func TestParseTriggerHeaderNotATrigger(t *testing.T) {
	if info := parseTriggerHeader(SplitLines("SET SERVEROUTPUT ON")); info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}
