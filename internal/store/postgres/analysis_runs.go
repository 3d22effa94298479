package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Run status values.
const (
	RunStatusOK         = "ok"
	RunStatusViolations = "violations"
)

type AnalysisRun struct {
	ID            uuid.UUID          `json:"id"`
	FileName      string             `json:"file_name"`
	SourceHash    string             `json:"source_hash"`
	Status        string             `json:"status"`
	ParserVersion string             `json:"parser_version"`
	Violations    int32              `json:"violations"`
	RestStrings   int32              `json:"rest_strings"`
	Warnings      int32              `json:"warnings"`
	Stats         []byte             `json:"stats"`
	Objects       []string           `json:"objects"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

const analysisRunColumns = `id, file_name, source_hash, status, parser_version,
       violations, rest_strings, warnings, stats, objects, created_at`

type CreateAnalysisRunParams struct {
	ID            uuid.UUID
	FileName      string
	SourceHash    string
	Status        string
	ParserVersion string
	Violations    int32
	RestStrings   int32
	Warnings      int32
	Stats         []byte
	Objects       []string
}

func (q *Queries) CreateAnalysisRun(ctx context.Context, arg CreateAnalysisRunParams) (AnalysisRun, error) {
	if arg.Stats == nil {
		arg.Stats = []byte("{}")
	}
	if arg.Objects == nil {
		arg.Objects = []string{}
	}
	row := q.db.QueryRow(ctx,
		`INSERT INTO analysis_runs (id, file_name, source_hash, status, parser_version,
		                            violations, rest_strings, warnings, stats, objects)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+analysisRunColumns,
		arg.ID, arg.FileName, arg.SourceHash, arg.Status, arg.ParserVersion,
		arg.Violations, arg.RestStrings, arg.Warnings, arg.Stats, arg.Objects)
	return scanAnalysisRun(row)
}

func (q *Queries) GetAnalysisRun(ctx context.Context, id uuid.UUID) (AnalysisRun, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+analysisRunColumns+` FROM analysis_runs WHERE id = $1`, id)
	return scanAnalysisRun(row)
}

// ListAnalysisRuns returns the most recent runs first.
func (q *Queries) ListAnalysisRuns(ctx context.Context, limit int32) ([]AnalysisRun, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+analysisRunColumns+` FROM analysis_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []AnalysisRun{}
	for rows.Next() {
		i, err := scanAnalysisRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) SetAnalysisRunObjects(ctx context.Context, id uuid.UUID, objects []string) error {
	_, err := q.db.Exec(ctx, `UPDATE analysis_runs SET objects = $2 WHERE id = $1`, id, objects)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysisRun(row rowScanner) (AnalysisRun, error) {
	var i AnalysisRun
	err := row.Scan(
		&i.ID, &i.FileName, &i.SourceHash, &i.Status, &i.ParserVersion,
		&i.Violations, &i.RestStrings, &i.Warnings, &i.Stats, &i.Objects, &i.CreatedAt,
	)
	return i, err
}
