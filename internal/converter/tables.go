package converter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatTables reflows every Markdown table in content so columns are
// padded to a uniform display width. Width is measured in terminal cells,
// which keeps CJK text aligned. Non-table lines pass through unchanged.
func FormatTables(content string) string {
	lines := strings.Split(content, "\n")

	var out []string

	var buffer []string

	flush := func() {
		if len(buffer) > 0 {
			out = append(out, reflowTable(buffer)...)
			buffer = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			buffer = append(buffer, line)

			continue
		}

		flush()

		out = append(out, line)
	}

	flush()

	return strings.Join(out, "\n")
}

// reflowTable rewrites one run of table rows with padded cells. Runs too
// short to carry a header and separator are returned untouched.
func reflowTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, splitRow(row))
	}

	sepIdx := -1
	if len(table) > 1 && isSeparatorRow(table[1]) {
		sepIdx = 1
	}

	widths := columnWidths(table, sepIdx)

	result := make([]string, 0, len(table))
	for i, cells := range table {
		result = append(result, renderRow(cells, widths, i == sepIdx))
	}

	return result
}

// splitRow breaks a pipe-delimited row into trimmed cells.
func splitRow(row string) []string {
	parts := strings.Split(row, "|")

	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}

	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}

	return cells
}

// isSeparatorRow reports whether every cell is dashes and alignment colons.
func isSeparatorRow(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}

	return len(cells) > 0
}

// columnWidths computes the display width of the widest cell per column,
// ignoring the separator row and enforcing a three-dash minimum.
func columnWidths(table [][]string, sepIdx int) []int {
	cols := 0
	for _, row := range table {
		if len(row) > cols {
			cols = len(row)
		}
	}

	widths := make([]int, cols)

	for i, row := range table {
		if i == sepIdx {
			continue
		}

		for j, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}

	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	return widths
}

// renderRow reconstructs one row padded to the column widths.
func renderRow(cells []string, widths []int, separator bool) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range widths {
		sb.WriteString(" ")

		if separator {
			sb.WriteString(strings.Repeat("-", width))
		} else {
			content := ""
			if j < len(cells) {
				content = cells[j]
			}

			sb.WriteString(content)

			if pad := width - runewidth.StringWidth(content); pad > 0 {
				sb.WriteString(strings.Repeat(" ", pad))
			}
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
