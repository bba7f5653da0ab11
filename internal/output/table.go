package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table is a simple styled table renderer.
type Table struct {
	headers []string
	rows    [][]cell
	widths  []int
}

// cell is one table value with an optional style.
type cell struct {
	value string
	style *lipgloss.Style
}

// NewTable creates a new table with the given column headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		headers: headers,
		widths:  widths,
	}
}

// AddRow adds a row of unstyled values. The number of values should
// match the number of headers.
func (t *Table) AddRow(values ...string) {
	row := make([]cell, len(t.headers))
	for i := range t.headers {
		if i < len(values) {
			row[i].value = values[i]
		}
		if len(row[i].value) > t.widths[i] {
			t.widths[i] = len(row[i].value)
		}
	}
	t.rows = append(t.rows, row)
}

// StyleCell applies a style to one cell of the most recently added row.
// Widths are computed from the raw value, so styling never breaks
// column alignment.
func (t *Table) StyleCell(col int, style lipgloss.Style) {
	if len(t.rows) == 0 || col < 0 || col >= len(t.headers) {
		return
	}
	t.rows[len(t.rows)-1][col].style = &style
}

// Render returns the formatted table as a string.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	var sb strings.Builder

	// Header row.
	for i, h := range t.headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(StyleHeader.Render(pad(h, t.widths[i])))
	}
	sb.WriteString("\n")

	// Separator.
	for i, w := range t.widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(StyleMuted.Render(strings.Repeat("─", w)))
	}
	sb.WriteString("\n")

	// Data rows.
	for _, row := range t.rows {
		for i, c := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			padded := pad(c.value, t.widths[i])
			if c.style != nil && !noColor {
				sb.WriteString(c.style.Render(padded))
			} else {
				sb.WriteString(padded)
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.Render()
}

// Print writes the table to stdout.
func (t *Table) Print() {
	fmt.Print(t.Render())
}

// pad right-pads a string to the given width.
func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
