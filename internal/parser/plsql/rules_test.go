package plsql

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		codes []string
	}{
		{
			name:  "clean body",
			input: "BEGIN\n  IF a = 1 THEN\n    NULL;\n  ELSIF a = 2 THEN\n    NULL;\n  END IF;\nEND;",
		},
		{
			name:  "if split from then",
			input: "BEGIN\n  IF a = 1\n  THEN\n    NULL;\n  END IF;\nEND;",
			codes: []string{"if_then_split"},
		},
		{
			name:  "elsif split from then",
			input: "BEGIN\n  IF a = 1 THEN\n    NULL;\n  ELSIF a = 2\n  THEN\n    NULL;\n  END IF;\nEND;",
			codes: []string{"elsif_then_split"},
		},
		{
			name:  "when split from then",
			input: "BEGIN\n  CASE a\n    WHEN 1\n    THEN NULL;\n  END CASE;\nEND;",
			codes: []string{"when_then_split"},
		},
		{
			name:  "raise_application_error on one line",
			input: "BEGIN\n  RAISE_APPLICATION_ERROR(-20001, 'msg');\nEND;",
		},
		{
			name:  "raise_application_error over two lines",
			input: "BEGIN\n  RAISE_APPLICATION_ERROR(-20001,\n    'msg');\nEND;",
		},
		{
			name:  "raise_application_error never closed",
			input: "BEGIN\n  RAISE_APPLICATION_ERROR(-20001, 'msg'\nEND;",
			codes: []string{"raise_application_error_format"},
		},
		{
			name:  "raise_application_error without terminator",
			input: "BEGIN\n  RAISE_APPLICATION_ERROR(-20001, 'msg')\nEND;",
			codes: []string{"raise_application_error_format"},
		},
		{
			name:  "raise_application_error without parenthesis",
			input: "BEGIN\n  RAISE_APPLICATION_ERROR;\nEND;",
			codes: []string{"raise_application_error_format"},
		},
		{
			name:  "every violation reported",
			input: "BEGIN\n  IF a = 1\n  THEN\n    RAISE_APPLICATION_ERROR(-20001, 'x'\n  END IF;\nEND;",
			codes: []string{"if_then_split", "raise_application_error_format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validate(SplitLines(tt.input))
			if len(got) != len(tt.codes) {
				t.Fatalf("expected %d violations, got %d: %+v", len(tt.codes), len(got), got)
			}
			for i, code := range tt.codes {
				if got[i].Code != code {
					t.Errorf("violation %d: expected %s, got %s", i, code, got[i].Code)
				}
				if got[i].Rule == "" || got[i].Solution == "" {
					t.Errorf("violation %d: missing rule or solution text", i)
				}
			}
		})
	}
}

func TestValidateCitesStartingLine(t *testing.T) {
	got := validate(SplitLines("BEGIN\n\n  RAISE_APPLICATION_ERROR(-20001,\n    'msg'\nEND;"))
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(got))
	}
	if got[0].LineNo != 3 {
		t.Errorf("expected line 3, got %d", got[0].LineNo)
	}
}

func TestRules(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Rules() {
		if seen[r.Code] {
			t.Errorf("duplicate rule code %s", r.Code)
		}
		seen[r.Code] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 rules, got %d", len(seen))
	}
}
