package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser // extension -> parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds p to every extension given, e.g. ".sql", ".trg".
func (r *Registry) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// ForFile returns the parser for a given file path, or nil if none matches.
func (r *Registry) ForFile(path string) Parser {
	return r.parsers[strings.ToLower(filepath.Ext(path))]
}

// ParseFile looks up the parser for input.Path and runs it.
func (r *Registry) ParseFile(input FileInput) (*Result, error) {
	p := r.ForFile(input.Path)
	if p == nil {
		return nil, fmt.Errorf("no parser for file: %s", input.Path)
	}
	if input.Language == "" {
		input.Language = DetectDialect(input.Content)
	}
	return p.Parse(input)
}

// SupportedExtensions returns all registered extensions in sorted order.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
