package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Table is structured tabular data lifted from a page.
type Table struct {
	Headers []string
	Rows    [][]string
}

// TableDetector finds tables in the plain text of a single page.
// Plain-text PDF extraction has no cell geometry, so detection is heuristic;
// the interface keeps room for a layout-aware implementation.
type TableDetector interface {
	DetectTables(pageText string) []Table
}

// LineTableDetector treats runs of consecutive lines sharing a column
// separator (pipe, tab, or 2+ spaces) and a matching column count as a table.
type LineTableDetector struct{}

var multiSpace = regexp.MustCompile(`\s{2,}|\t`)

func (LineTableDetector) DetectTables(pageText string) []Table {
	var tables []Table
	var run [][]string
	flush := func() {
		if len(run) >= 2 {
			tables = append(tables, Table{Headers: run[0], Rows: run[1:]})
		}
		run = nil
	}
	for _, line := range strings.Split(pageText, "\n") {
		cells := splitCells(line)
		if len(cells) >= 2 && (len(run) == 0 || len(cells) == len(run[0])) {
			run = append(run, cells)
			continue
		}
		flush()
	}
	flush()
	return tables
}

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var parts []string
	if strings.Contains(line, "|") {
		parts = strings.Split(strings.Trim(line, "|"), "|")
	} else {
		parts = multiSpace.Split(line, -1)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

const tableRowPreview = 5

// renderTable flattens a table into a readable chunk body, keeping the first
// few rows and noting how many were cut.
func renderTable(idx int, t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %d:\n", idx+1)
	if len(t.Headers) > 0 {
		b.WriteString("Headers: " + strings.Join(t.Headers, " | ") + "\n")
	}
	b.WriteString("Data:\n")
	limit := len(t.Rows)
	if limit > tableRowPreview {
		limit = tableRowPreview
	}
	for _, row := range t.Rows[:limit] {
		b.WriteString(strings.Join(row, " | ") + "\n")
	}
	if len(t.Rows) > tableRowPreview {
		fmt.Fprintf(&b, "... and %d more rows", len(t.Rows)-tableRowPreview)
	}
	return b.String()
}
