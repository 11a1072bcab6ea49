package db

import (
	"context"
)

type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
}

type Row []any

type Rows struct {
	Columns []Column
	Data    []Row
}

// DB is a single open database connection as seen by the agent. Statements
// that produce a result set go through Query; everything else through Exec.
type DB interface {
	Close() error
	// Dialect names the SQL flavour for prompts, e.g. "SQLite" or "PostgreSQL".
	Dialect() string
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) ([]Column, error)
	// SampleQuery returns a statement selecting at most limit rows of table.
	SampleQuery(table string, limit int) string
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)
	// Exec runs a statement and reports affected rows, or -1 when the driver
	// cannot tell.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}
