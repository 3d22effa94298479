package parser

// Parser turns one source file into an analysis result.
type Parser interface {
	// Parse analyzes a single file. Rule violations are reported inside the
	// result; a non-nil error means the input could not be processed at all.
	Parse(input FileInput) (*Result, error)

	// Languages returns the dialects this parser handles.
	Languages() []string
}

// FileInput represents a file to be parsed.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
}
