package handler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/parser"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/store/postgres"
)

// docSummary is the part of an analysis document needed to record a run.
type docSummary struct {
	Violations  []parser.RuleViolation `json:"error"`
	RestStrings []string               `json:"rest_strings"`
	Warnings    []string               `json:"warnings"`
	Stats       json.RawMessage        `json:"conversion_stats"`
}

func (s docSummary) failed() bool { return len(s.Violations) > 0 }

func analyzeDocument(a *plsql.Analyzer, name string, source []byte) ([]byte, error) {
	res, err := a.Parse(parser.FileInput{Path: name, Content: source, Language: parser.DialectPLSQL})
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return doc, nil
}

func summarize(doc []byte) (docSummary, error) {
	var s docSummary
	if err := json.Unmarshal(doc, &s); err != nil {
		return docSummary{}, fmt.Errorf("decode analysis: %w", err)
	}
	return s, nil
}

func runParams(id uuid.UUID, name string, source []byte, s docSummary, objects []string) postgres.CreateAnalysisRunParams {
	status := postgres.RunStatusOK
	if s.failed() {
		status = postgres.RunStatusViolations
	}
	return postgres.CreateAnalysisRunParams{
		ID:            id,
		FileName:      name,
		SourceHash:    parser.ContentHash(source),
		Status:        status,
		ParserVersion: plsql.Version,
		Violations:    int32(len(s.Violations)),
		RestStrings:   int32(len(s.RestStrings)),
		Warnings:      int32(len(s.Warnings)),
		Stats:         s.Stats,
		Objects:       objects,
	}
}
