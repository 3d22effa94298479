// Package mapping holds the Oracle to PostgreSQL lookup tables used by the
// renderer. Tables are loaded once and only read afterwards, so one value
// can be shared by every worker of a batch.
package mapping

import (
	"fmt"
	"maps"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables maps upper-cased Oracle names to their PostgreSQL replacements.
type Tables struct {
	DataTypes  map[string]string `yaml:"data_types" json:"data_types"`
	Functions  map[string]string `yaml:"functions" json:"functions"`
	Exceptions map[string]string `yaml:"exceptions" json:"exceptions"`
}

// Default returns the built-in tables.
func Default() *Tables {
	return &Tables{
		DataTypes: map[string]string{
			"VARCHAR2":       "VARCHAR",
			"NVARCHAR2":      "VARCHAR",
			"NCHAR":          "CHAR",
			"NUMBER":         "NUMERIC",
			"PLS_INTEGER":    "INTEGER",
			"BINARY_INTEGER": "INTEGER",
			"SIMPLE_INTEGER": "INTEGER",
			"BINARY_FLOAT":   "REAL",
			"BINARY_DOUBLE":  "DOUBLE PRECISION",
			"DATE":           "TIMESTAMP",
			"CLOB":           "TEXT",
			"NCLOB":          "TEXT",
			"LONG":           "TEXT",
			"BLOB":           "BYTEA",
			"RAW":            "BYTEA",
			"XMLTYPE":        "XML",
		},
		Functions: map[string]string{
			"NVL":          "COALESCE",
			"SYSDATE":      "CURRENT_TIMESTAMP",
			"SYSTIMESTAMP": "CURRENT_TIMESTAMP",
			"INSTR":        "STRPOS",
			"LENGTHB":      "OCTET_LENGTH",
			"USER":         "CURRENT_USER",
			"SQLCODE":      "SQLSTATE",
		},
		Exceptions: map[string]string{
			"NO_DATA_FOUND":       "NO_DATA_FOUND",
			"TOO_MANY_ROWS":       "TOO_MANY_ROWS",
			"DUP_VAL_ON_INDEX":    "UNIQUE_VIOLATION",
			"ZERO_DIVIDE":         "DIVISION_BY_ZERO",
			"VALUE_ERROR":         "DATA_EXCEPTION",
			"INVALID_NUMBER":      "INVALID_TEXT_REPRESENTATION",
			"INVALID_CURSOR":      "INVALID_CURSOR_STATE",
			"CURSOR_ALREADY_OPEN": "DUPLICATE_CURSOR",
			"OTHERS":              "OTHERS",
		},
	}
}

// Load reads a YAML mapping file and layers it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Tables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Merge(override)
	return t, nil
}

// Parse decodes YAML of the form
//
//	data_types:
//	  VARCHAR2: TEXT
//	functions:
//	  NVL: COALESCE
//	exceptions:
//	  DUP_VAL_ON_INDEX: UNIQUE_VIOLATION
//
// Keys are upper-cased; an empty value removes the default entry on Merge.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	t.DataTypes = normalize(t.DataTypes)
	t.Functions = normalize(t.Functions)
	t.Exceptions = normalize(t.Exceptions)
	return &t, nil
}

// Merge copies entries of o over t. Entries of o with an empty value delete
// the key from t.
func (t *Tables) Merge(o *Tables) {
	if o == nil {
		return
	}
	t.DataTypes = mergeTable(t.DataTypes, o.DataTypes)
	t.Functions = mergeTable(t.Functions, o.Functions)
	t.Exceptions = mergeTable(t.Exceptions, o.Exceptions)
}

// Clone returns a deep copy of t.
func (t *Tables) Clone() *Tables {
	return &Tables{
		DataTypes:  maps.Clone(t.DataTypes),
		Functions:  maps.Clone(t.Functions),
		Exceptions: maps.Clone(t.Exceptions),
	}
}

// Keys returns the keys of m, longest first, so that a replacement for
// "NVARCHAR2" is tried before one for "VARCHAR2" would be.
func Keys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func normalize(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func mergeTable(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		if v == "" {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return dst
}
