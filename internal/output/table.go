package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table renders aligned tabular data for text output. Cells must not
// contain tabs or newlines; the session fields rendered here never do.
type Table struct {
	headers  []string
	rows     [][]string
	noHeader bool
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table. Short rows render with empty cells.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetNoHeader suppresses the header row and its underline.
func (t *Table) SetNoHeader(noHeader bool) {
	t.noHeader = noHeader
}

// Render renders the table to the writer, columns padded to their
// widest cell.
func (t *Table) Render(w io.Writer) error {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !t.noHeader && len(t.headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(t.headers, "\t")); err != nil {
			return err
		}
		underline := make([]string, len(t.headers))
		for i, h := range t.headers {
			underline[i] = strings.Repeat("-", len(h))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(underline, "\t")); err != nil {
			return err
		}
	}

	for _, row := range t.rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// String returns the table as a string.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}
