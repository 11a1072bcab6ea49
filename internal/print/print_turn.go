package print

import (
	"fmt"
	"io"
	"strings"

	"github.com/bgunnarsson/sqlagent/internal/agent"
	"github.com/bgunnarsson/sqlagent/internal/logging"
)

// RenderTurn writes the report for one answered question: the SQL that ran,
// the explanation, every statement's result and the error, if any.
func RenderTurn(w io.Writer, turn *agent.Turn, opts Options) {
	heading := opts.Heading
	if heading == nil {
		heading = func(s string) string { return s }
	}

	fmt.Fprintln(w, heading("Generated SQL:"))
	fmt.Fprintln(w, turn.SQL)
	if turn.Repaired && turn.RepairedFrom != "" {
		fmt.Fprintln(w, "(corrected after the first query failed)")
	}

	if turn.Explanation != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading("Explanation:"))
		fmt.Fprintln(w, turn.Explanation)
	}

	if len(turn.Results) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading("Result:"))
		for i, res := range turn.Results {
			if len(turn.Results) > 1 {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "-- %s\n", oneLine(res.SQL))
			}
			RenderResult(w, res, opts)
		}
	}

	if turn.Err != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading("Error:"))
		fmt.Fprintln(w, logging.Mask(turn.Err))
	}
}

// RenderResult writes a single statement's outcome.
func RenderResult(w io.Writer, res agent.StatementResult, opts Options) {
	switch {
	case res.Rows != nil && len(res.Rows.Columns) > 0:
		RenderTable(w, res.Rows, opts)
		fmt.Fprintln(w, rowCount(len(res.Rows.Data)))
	case res.Rows == nil && res.RowsAffected >= 0:
		if res.RowsAffected == 1 {
			fmt.Fprintln(w, "1 row affected")
		} else {
			fmt.Fprintf(w, "%d rows affected\n", res.RowsAffected)
		}
	default:
		fmt.Fprintln(w, "OK")
	}
}

func rowCount(n int) string {
	if n == 1 {
		return "(1 row)"
	}
	return fmt.Sprintf("(%d rows)", n)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
