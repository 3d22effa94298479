package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/parser"
	"github.com/maraichr/trigconv/internal/parser/plsql"
)

const triggerBody = `DECLARE
  v_total NUMBER(10,2) := 0;
  e_neg EXCEPTION;
BEGIN
  v_total := NVL(:NEW.amount, 0);
  IF v_total < 0 THEN
    RAISE e_neg;
  END IF;
  UPDATE totals SET updated = SYSDATE WHERE id = :NEW.id;
EXCEPTION
  WHEN e_neg THEN
    RAISE_APPLICATION_ERROR(-20001, 'negative total');
  WHEN NO_DATA_FOUND THEN
    NULL;
END;`

func TestRenderPostgreSQL(t *testing.T) {
	res := plsql.Analyze(triggerBody)
	require.False(t, res.Failed())

	out, err := New(mapping.Default()).Render(res, DialectPostgreSQL)
	require.NoError(t, err)

	want := `DECLARE
  v_total NUMERIC(10,2) := 0;
  -- e_neg EXCEPTION; raised as RAISE EXCEPTION 'e_neg'
BEGIN
  v_total := COALESCE(NEW.amount, 0);
  IF v_total < 0 THEN
    RAISE EXCEPTION 'e_neg';
  END IF;
  UPDATE totals SET updated = CURRENT_TIMESTAMP WHERE id = NEW.id;
EXCEPTION
  WHEN raise_exception THEN
    RAISE EXCEPTION '%', 'negative total' USING ERRCODE = '45001';
  WHEN no_data_found THEN
    NULL;
END;
`
	assert.Equal(t, want, out.SQL)

	assert.Equal(t, 1, out.Counts[CountDataTypes])
	assert.Equal(t, 3, out.Counts[CountFunctions])
	assert.Equal(t, 3, out.Counts[CountExceptions])
	assert.Equal(t, 2, out.Counts[CountBindVars])
	assert.Equal(t, 1, out.Counts[CountRestStrings])
	assert.Equal(t, 1, out.Counts[parser.TypeBeginEnd])
	assert.Equal(t, 1, out.Counts[parser.TypeIfElse])
	assert.Equal(t, 1, out.Counts[parser.TypeRaise])
	assert.Equal(t, 1, out.Counts[parser.TypeUpdate])
	assert.Equal(t, 1, out.Counts[parser.TypeFunctionCall])
}

func TestRenderOracleRoundTrip(t *testing.T) {
	res := plsql.Analyze(triggerBody)
	out, err := New(nil).Render(res, DialectOracle)
	require.NoError(t, err)
	assert.Equal(t, triggerBody+"\n", out.SQL)
	assert.Zero(t, out.Counts[CountFunctions])
	assert.NotContains(t, out.Counts, CountBindVars)
}

func TestRenderLoopAndCase(t *testing.T) {
	input := `BEGIN
  FOR r IN (SELECT id FROM emp) LOOP
    CASE r.id
      WHEN 1 THEN
        log_pkg.write(r.id);
      ELSE
        dbms_output.put_line('other');
    END CASE;
  END LOOP;
END;`
	res := plsql.Analyze(input)
	r := New(mapping.Default(), WithIndent(4))

	out, err := r.Render(res, "")
	require.NoError(t, err)
	want := `BEGIN
    FOR r IN SELECT id FROM emp LOOP
        CASE r.id
            WHEN 1 THEN
                PERFORM log_pkg.write(r.id);
            ELSE
                RAISE NOTICE '%', 'other';
        END CASE;
    END LOOP;
END;
`
	assert.Equal(t, want, out.SQL)
	assert.Equal(t, 1, out.Counts[parser.TypeForLoop])
	assert.Equal(t, 1, out.Counts[parser.TypeCaseWhen])
	assert.Equal(t, 2, out.Counts[parser.TypeFunctionCall])

	oracle, err := r.Render(res, DialectOracle)
	require.NoError(t, err)
	assert.Contains(t, oracle.SQL, "    FOR r IN (SELECT id FROM emp) LOOP\n")
	assert.Contains(t, oracle.SQL, "dbms_output.put_line('other');")
}

func TestRenderCursorsAndUnparsed(t *testing.T) {
	input := `DECLARE
  CURSOR c_emp (p_dept NUMBER) IS SELECT id FROM emp WHERE dept = p_dept;
  c_limit CONSTANT PLS_INTEGER := 10;
  PRAGMA AUTONOMOUS_TRANSACTION;
BEGIN
  NULL;
END;`
	res := plsql.Analyze(input)
	out, err := New(nil).Render(res, DialectPostgreSQL)
	require.NoError(t, err)

	assert.Contains(t, out.SQL, "  -- PRAGMA AUTONOMOUS_TRANSACTION\n")
	assert.Contains(t, out.SQL, "  c_limit CONSTANT INTEGER := 10;\n")
	assert.Contains(t, out.SQL, "  c_emp CURSOR (p_dept NUMERIC) FOR SELECT id FROM emp WHERE dept = p_dept;\n")
	assert.Equal(t, 1, out.Counts[CountUnparsed])
}

func TestRenderRejectsViolations(t *testing.T) {
	res := plsql.Analyze("BEGIN\n  IF a = 1\n  THEN NULL;\n  END IF;\nEND;")
	require.True(t, res.Failed())

	_, err := New(nil).Render(res, DialectPostgreSQL)
	assert.True(t, errors.Is(err, ErrViolations))
}

func TestRenderRejectsUnknownDialect(t *testing.T) {
	_, err := New(nil).Render(plsql.Analyze("BEGIN\n  NULL;\nEND;"), "tsql")
	assert.Error(t, err)
}

func TestSubstitute(t *testing.T) {
	table := map[string]string{"NVL": "COALESCE", "SYSDATE": "CURRENT_TIMESTAMP", "DATE": "TIMESTAMP"}
	tests := []struct {
		in   string
		want string
		n    int
	}{
		{"NVL(a, 'NVL') || t.nvl", "COALESCE(a, 'NVL') || t.nvl", 1},
		{"nvl(x, sysdate)", "COALESCE(x, CURRENT_TIMESTAMP)", 2},
		{"v_date DATE", "v_date TIMESTAMP", 1},
		{"emp.hire_date%TYPE", "emp.hire_date%TYPE", 0},
		{":sysdate + 1", ":sysdate + 1", 0},
		{`"NVL" + 1e5`, `"NVL" + 1e5`, 0},
	}
	for _, tt := range tests {
		got, n := substitute(tt.in, table)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.n, n, tt.in)
	}
}

func TestRewriteBinds(t *testing.T) {
	got, n := rewriteBinds(":NEW.id = :old.id AND s = ':NEW.x' AND v := 1")
	assert.Equal(t, "NEW.id = old.id AND s = ':NEW.x' AND v := 1", got)
	assert.Equal(t, 2, n)
}

func TestSQLState(t *testing.T) {
	assert.Equal(t, "45001", sqlState("-20001"))
	assert.Equal(t, "45999", sqlState("-20999"))
	assert.Equal(t, "P0001", sqlState("-1"))
	assert.Equal(t, "P0001", sqlState("v_code"))
}

func TestWrapTriggerFunction(t *testing.T) {
	got := WrapTriggerFunction("trg_fn", "BEGIN\n  NULL;\nEND;\n")
	want := `CREATE OR REPLACE FUNCTION trg_fn()
RETURNS trigger AS $$
BEGIN
  BEGIN
    NULL;
  END;
  RETURN COALESCE(NEW, OLD);
END;
$$ LANGUAGE plpgsql;
`
	assert.Equal(t, want, got)
	assert.Contains(t, WrapTriggerFunction("", "SELECT '$$';"), "AS $fn$")
}

func TestValidatePLpgSQL(t *testing.T) {
	res := plsql.Analyze(triggerBody)
	out, err := New(nil).Render(res, DialectPostgreSQL)
	require.NoError(t, err)

	assert.NoError(t, ValidatePLpgSQL(WrapTriggerFunction("trg_totals", out.SQL)))
	assert.Error(t, ValidatePLpgSQL("SELECT 1;"))
	assert.Error(t, ValidatePLpgSQL(WrapTriggerFunction("broken", "BEGIN\n  IF TRUE THEN\n    NULL;\nEND;")))
}

func TestFingerprintTracksMappingAndIndent(t *testing.T) {
	base := New(mapping.Default())
	assert.Equal(t, base.Fingerprint(), New(nil).Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), New(nil, WithIndent(4)).Fingerprint())

	custom := mapping.Default()
	custom.DataTypes["VARCHAR2"] = "TEXT"
	assert.NotEqual(t, base.Fingerprint(), New(custom).Fingerprint())
}

func TestRenderKeepsLengthSemantics(t *testing.T) {
	res := plsql.Analyze("DECLARE\n  v_name VARCHAR2(100 CHAR);\nBEGIN\n  NULL;\nEND;")
	require.False(t, res.Failed())

	r := New(mapping.Default())
	out, err := r.Render(res, DialectPostgreSQL)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "v_name VARCHAR(100);")

	out, err = r.Render(res, DialectOracle)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "v_name VARCHAR2(100 CHAR);")
}
