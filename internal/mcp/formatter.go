package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maraichr/trigconv/internal/parser"
	"github.com/maraichr/trigconv/internal/render"
)

const defaultMaxTokens = 4000

// ResponseBuilder constructs token-budgeted Markdown responses for MCP tools.
type ResponseBuilder struct {
	buf           strings.Builder
	tokenEstimate int
	maxTokens     int
	truncated     bool
}

// NewResponseBuilder creates a builder with the given token budget.
// If maxTokens <= 0, defaultMaxTokens is used.
func NewResponseBuilder(maxTokens int) *ResponseBuilder {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ResponseBuilder{maxTokens: maxTokens}
}

// AddHeader writes a header line to the response. Headers are never dropped.
func (rb *ResponseBuilder) AddHeader(text string) {
	line := text + "\n\n"
	rb.buf.WriteString(line)
	rb.tokenEstimate += len(line) / 4
}

// AddLine writes a single line to the response, returning false if budget exceeded.
func (rb *ResponseBuilder) AddLine(text string) bool {
	return rb.add(text + "\n")
}

// AddSection writes a section with a heading.
func (rb *ResponseBuilder) AddSection(heading string, content string) bool {
	return rb.add(fmt.Sprintf("### %s\n%s\n\n", heading, content))
}

// AddRawText writes raw text, respecting the budget.
func (rb *ResponseBuilder) AddRawText(text string) bool {
	return rb.add(text)
}

func (rb *ResponseBuilder) add(text string) bool {
	cost := len(text) / 4
	if rb.tokenEstimate+cost > rb.maxTokens {
		rb.truncated = true
		return false
	}
	rb.buf.WriteString(text)
	rb.tokenEstimate += cost
	return true
}

// Finalize appends a truncation notice when needed and returns the text.
func (rb *ResponseBuilder) Finalize() string {
	if rb.truncated {
		rb.buf.WriteString(fmt.Sprintf(
			"\n---\n*Response truncated to ~%d tokens. Increase `max_response_tokens` for the full output.*\n",
			rb.maxTokens))
	}
	return rb.buf.String()
}

// TokenEstimate returns the current estimated token count.
func (rb *ResponseBuilder) TokenEstimate() int {
	return rb.tokenEstimate
}

// IsTruncated returns whether the response was truncated.
func (rb *ResponseBuilder) IsTruncated() bool {
	return rb.truncated
}

// FormatAnalysis summarizes an analysis result as Markdown.
func FormatAnalysis(res *parser.Result, maxTokens int) string {
	rb := NewResponseBuilder(maxTokens)
	if res.Failed() {
		rb.AddHeader(fmt.Sprintf("## Analysis stopped: %d rule violation(s)", len(res.Violations)))
		for _, v := range res.Violations {
			if !rb.AddLine(fmt.Sprintf("- **line %d** `%s`: %s. Fix: %s", v.LineNo, v.Code, v.Rule, v.Solution)) {
				break
			}
		}
		return rb.Finalize()
	}

	title := "## Trigger analysis"
	if t := res.Metadata.Trigger; t != nil {
		title = fmt.Sprintf("## Trigger `%s` (%s %s ON %s)", t.Name, t.Timing, strings.Join(t.Events, " OR "), t.Table)
	}
	rb.AddHeader(title)

	d := res.Declarations
	rb.AddLine(fmt.Sprintf("- Lines: %d (%d code), comments: %d",
		res.Stats.TotalLines, res.Stats.CodeLines, res.Stats.CommentCount))
	rb.AddLine(fmt.Sprintf("- Declarations: %d variable(s), %d constant(s), %d exception(s), %d cursor(s)",
		len(d.Variables), len(d.Constants), len(d.Exceptions), len(d.Cursors)))
	rb.AddLine("")

	if counts := formatCounts(res.Stats.Statements); counts != "" {
		rb.AddSection("Statements", counts)
	}

	if len(d.Variables) > 0 {
		var b strings.Builder
		for _, v := range d.Variables {
			b.WriteString(fmt.Sprintf("- `%s` %s", v.Name, v.DataType))
			if v.DefaultValue != nil {
				b.WriteString(" := " + *v.DefaultValue)
			}
			b.WriteString("\n")
		}
		rb.AddSection("Variables", strings.TrimRight(b.String(), "\n"))
	}

	if len(res.RestStrings) > 0 {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("%d line(s) were not classified and need manual review:\n", len(res.RestStrings)))
		for _, s := range res.RestStrings {
			b.WriteString("- `" + s + "`\n")
		}
		rb.AddSection("Needs review", strings.TrimRight(b.String(), "\n"))
	}

	if len(res.Warnings) > 0 {
		rb.AddSection("Warnings", "- "+strings.Join(res.Warnings, "\n- "))
	}
	return rb.Finalize()
}

// FormatRendered presents rendered SQL in a fenced block followed by the counts.
func FormatRendered(out render.Output, dialect string, maxTokens int) string {
	rb := NewResponseBuilder(maxTokens)
	rb.AddHeader(fmt.Sprintf("## Rendered as %s", dialect))
	if !rb.AddRawText("```sql\n" + out.SQL + "```\n\n") {
		return rb.Finalize()
	}
	if counts := formatCounts(out.Counts); counts != "" {
		rb.AddSection("Counts", counts)
	}
	return rb.Finalize()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("- %s: %d", k, counts[k])
	}
	return strings.Join(lines, "\n")
}
