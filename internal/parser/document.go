package parser

import (
	"encoding/json"
	"fmt"
	"time"
)

// FormatTimestamp renders t the way metadata.parse_timestamp is written.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// document mirrors the encoded Result so the metadata can be rewritten
// without decoding the statement tree.
type document struct {
	Declarations json.RawMessage `json:"declarations"`
	Main         json.RawMessage `json:"main"`
	Comments     json.RawMessage `json:"sql_comments"`
	RestStrings  json.RawMessage `json:"rest_strings"`
	Warnings     json.RawMessage `json:"warnings,omitempty"`
	Stats        json.RawMessage `json:"conversion_stats"`
	Metadata     *Metadata       `json:"metadata"`
}

// Restamp rewrites metadata.source_path and metadata.parse_timestamp of an
// encoded analysis, so one cached document can be served for every file
// with the same content. Violation documents have no metadata and are
// returned unchanged.
func Restamp(doc []byte, path string, at time.Time) ([]byte, error) {
	var d document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if d.Metadata == nil {
		return doc, nil
	}
	d.Metadata.SourcePath = path
	d.Metadata.ParseTimestamp = FormatTimestamp(at)
	return json.Marshal(d)
}
