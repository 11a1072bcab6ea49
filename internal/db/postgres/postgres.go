package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx stdlib driver

	"github.com/bgunnarsson/sqlagent/internal/db"
)

type PostgresDB struct {
	db.SQL
}

func Open(ctx context.Context, dsn string) (*PostgresDB, error) {
	sqldb, err := db.Connect(ctx, "pgx", dsn, db.SessionPool)
	if err != nil {
		return nil, err
	}
	return New(sqldb), nil
}

// New wraps an already open pool.
func New(sqldb *sql.DB) *PostgresDB {
	return &PostgresDB{db.SQL{
		Conn:      sqldb,
		Normalize: db.NormalizeText,
	}}
}

func (p *PostgresDB) Dialect() string { return "PostgreSQL" }

func (p *PostgresDB) ListTables(ctx context.Context) ([]string, error) {
	const q = `
SELECT table_schema || '.' || table_name AS name
FROM information_schema.tables
WHERE table_type IN ('BASE TABLE', 'VIEW')
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name;
`
	return p.Strings(ctx, q)
}

// DescribeTable returns column name + data type.
// Accepts either "table" or "schema.table".
func (p *PostgresDB) DescribeTable(ctx context.Context, table string) ([]db.Column, error) {
	schema, name := db.SplitQualified(table, "public")

	const q = `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1
  AND table_name = $2
ORDER BY ordinal_position;
`
	return p.InformationSchemaColumns(ctx, q, schema, name)
}

func (p *PostgresDB) SampleQuery(table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", db.QuoteIdent(table, `"`, `"`), limit)
}
