package print

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/bgunnarsson/sqlagent/internal/db"
)

type Options struct {
	// MaxWidth is the max width of each column; 0 means 40. NoLimit prints
	// cells verbatim: nothing is cut and embedded newlines and tabs stay.
	MaxWidth int

	// Heading styles section titles in RenderTurn. Nil prints them plain.
	Heading func(string) string
}

// NoLimit as Options.MaxWidth keeps cell values intact.
const NoLimit = -1

func RenderTable(w io.Writer, rows *db.Rows, opts Options) {
	verbatim := opts.MaxWidth < 0
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 40
	}
	limit := func(n int) int {
		if verbatim {
			return n
		}
		return min(n, opts.MaxWidth)
	}

	cols := len(rows.Columns)
	if cols == 0 {
		fmt.Fprintln(w, "(no columns)")
		return
	}

	// cell text up front; widths are display widths, not bytes
	cells := make([][]string, len(rows.Data))
	for r, row := range rows.Data {
		cells[r] = make([]string, cols)
		for i := 0; i < cols && i < len(row); i++ {
			if verbatim {
				cells[r][i] = db.FormatValue(row[i])
			} else {
				cells[r][i] = cellText(row[i])
			}
		}
	}

	widths := make([]int, cols)
	for i, col := range rows.Columns {
		widths[i] = limit(textWidth(col.Name))
	}
	for _, row := range cells {
		for i, c := range row {
			if l := limit(textWidth(c)); l > widths[i] {
				widths[i] = l
			}
		}
	}
	right := numericColumns(rows, cols)

	sep := func(ch string) string {
		var b strings.Builder
		b.WriteString("+")
		for i := range widths {
			b.WriteString(strings.Repeat(ch, widths[i]+2))
			b.WriteString("+")
		}
		return b.String()
	}

	writeRow := func(row []string, align bool) {
		var b strings.Builder
		b.WriteString("|")
		for i, c := range row {
			if !verbatim {
				c = runewidth.Truncate(c, widths[i], "...")
			}
			b.WriteString(" ")
			b.WriteString(pad(c, widths[i], align && right[i]))
			b.WriteString(" |")
		}
		fmt.Fprintln(w, b.String())
	}

	// header
	fmt.Fprintln(w, sep("-"))
	header := make([]string, cols)
	for i, col := range rows.Columns {
		header[i] = col.Name
	}
	writeRow(header, false)
	fmt.Fprintln(w, sep("="))

	// data
	for _, row := range cells {
		writeRow(row, true)
	}
	fmt.Fprintln(w, sep("-"))
}

// textWidth is the display width of the widest line of s.
func textWidth(s string) int {
	width := 0
	for _, line := range strings.Split(s, "\n") {
		width = max(width, runewidth.StringWidth(line))
	}
	return width
}

// pad fills s up to width, measured on its last line.
func pad(s string, width int, right bool) string {
	last := s[strings.LastIndexByte(s, '\n')+1:]
	fill := strings.Repeat(" ", max(width-runewidth.StringWidth(last), 0))
	if right {
		return fill + s
	}
	return s + fill
}

// cellText keeps every cell on one line.
func cellText(v any) string {
	s := db.FormatValue(v)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
}

// numericColumns marks columns whose non-NULL values are all numbers.
func numericColumns(rows *db.Rows, cols int) []bool {
	out := make([]bool, cols)
	for i := 0; i < cols; i++ {
		seen := false
		numeric := true
		for _, row := range rows.Data {
			if i >= len(row) || row[i] == nil {
				continue
			}
			seen = true
			if !isNumber(row[i]) {
				numeric = false
				break
			}
		}
		out[i] = seen && numeric
	}
	return out
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}
