package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bgunnarsson/sqlagent/internal/db"
)

type MysqlDB struct {
	db.SQL
}

func Open(ctx context.Context, dsn string) (*MysqlDB, error) {
	sqldb, err := db.Connect(ctx, "mysql", dsn, db.SessionPool)
	if err != nil {
		return nil, err
	}
	return New(sqldb), nil
}

// New wraps an already open pool.
func New(sqldb *sql.DB) *MysqlDB {
	return &MysqlDB{db.SQL{
		Conn: sqldb,
		// MySQL returns TEXT/VARCHAR as []byte
		Normalize: db.NormalizeText,
	}}
}

func (m *MysqlDB) Dialect() string { return "MySQL" }

func (m *MysqlDB) ListTables(ctx context.Context) ([]string, error) {
	const q = `
SELECT table_name
FROM information_schema.tables
WHERE table_type IN ('BASE TABLE', 'VIEW')
  AND table_schema = DATABASE()
ORDER BY table_name;
`
	return m.Strings(ctx, q)
}

func (m *MysqlDB) DescribeTable(ctx context.Context, table string) ([]db.Column, error) {
	const q = `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = DATABASE()
  AND table_name = ?
ORDER BY ordinal_position;
`
	return m.InformationSchemaColumns(ctx, q, table)
}

func (m *MysqlDB) SampleQuery(table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", db.QuoteIdent(table, "`", "`"), limit)
}
