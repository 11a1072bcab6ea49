package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// SchemaOptions controls DescribeSchema.
type SchemaOptions struct {
	// SampleRows appends up to this many example rows per table. Zero disables.
	SampleRows int
}

// maxSampleValue caps each sample cell so one wide column cannot blow up the
// prompt.
const maxSampleValue = 100

// DescribeSchema renders every table as a CREATE TABLE-like block, optionally
// followed by a few sample rows in a comment. This is the schema text handed
// to the model.
func DescribeSchema(ctx context.Context, d DB, opts SchemaOptions) (string, error) {
	tables, err := d.ListTables(ctx)
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	if len(tables) == 0 {
		return "-- the database has no tables", nil
	}

	var b strings.Builder
	for i, table := range tables {
		cols, err := d.DescribeTable(ctx, table)
		if err != nil {
			return "", fmt.Errorf("describe table %s: %w", table, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		writeCreateTable(&b, table, cols)

		if opts.SampleRows <= 0 {
			continue
		}
		// Sampling is best effort: a view that fails to evaluate still has
		// a useful column list.
		rows, err := d.Query(ctx, d.SampleQuery(table, opts.SampleRows))
		if err != nil || len(rows.Data) == 0 {
			continue
		}
		writeSample(&b, table, rows)
	}
	return b.String(), nil
}

func writeCreateTable(b *strings.Builder, table string, cols []Column) {
	b.WriteString("CREATE TABLE ")
	b.WriteString(table)
	b.WriteString(" (\n")
	for i, c := range cols {
		b.WriteString("\t")
		b.WriteString(c.Name)
		if c.Type != "" {
			b.WriteString(" ")
			b.WriteString(c.Type)
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")\n")
}

func writeSample(b *strings.Builder, table string, rows *Rows) {
	fmt.Fprintf(b, "/*\n%d rows from %s table:\n", len(rows.Data), table)

	names := make([]string, len(rows.Columns))
	for i, c := range rows.Columns {
		names[i] = c.Name
	}
	b.WriteString(strings.Join(names, "\t"))
	b.WriteString("\n")

	for _, r := range rows.Data {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = clip(FormatValue(v), maxSampleValue)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteString("\n")
	}
	b.WriteString("*/\n")
}

// FormatValue renders a scanned value as display text.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case []byte:
		if !isPrintable(t) {
			return fmt.Sprintf("<blob %d bytes>", len(t))
		}
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return FormatTime(t)
	default:
		return fmt.Sprint(t)
	}
}

func isPrintable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 32 && r != '\n' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
