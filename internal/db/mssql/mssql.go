package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/azuread"

	"github.com/bgunnarsson/sqlagent/internal/db"
)

type MssqlDB struct {
	db.SQL
}

// Open opens a MSSQL connection.
// If the DSN contains "fedauth=", we use the Azure AD driver (azuresql)
// so things like ActiveDirectoryInteractive / AzCli work.
func Open(ctx context.Context, dsn string) (*MssqlDB, error) {
	sqldb, err := db.Connect(ctx, DriverName(dsn), dsn, db.SessionPool)
	if err != nil {
		return nil, err
	}
	return New(sqldb), nil
}

// DriverName picks the database/sql driver for a DSN.
func DriverName(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "fedauth=") {
		return azuread.DriverName // "azuresql"
	}
	return "sqlserver"
}

// New wraps an already open pool.
func New(sqldb *sql.DB) *MssqlDB {
	return &MssqlDB{db.SQL{
		Conn:      sqldb,
		Normalize: normalize,
	}}
}

func (m *MssqlDB) Dialect() string { return "Microsoft SQL Server (T-SQL)" }

func (m *MssqlDB) ListTables(ctx context.Context) ([]string, error) {
	const q = `
SELECT TABLE_SCHEMA + '.' + TABLE_NAME AS name
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
ORDER BY TABLE_SCHEMA, TABLE_NAME;
`
	return m.Strings(ctx, q)
}

// DescribeTable returns column name + data type.
// Accepts either "table" or "schema.table".
func (m *MssqlDB) DescribeTable(ctx context.Context, table string) ([]db.Column, error) {
	schema, name := db.SplitQualified(table, "dbo")

	const q = `
SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION;
`
	return m.InformationSchemaColumns(ctx, q, schema, name)
}

func (m *MssqlDB) SampleQuery(table string, limit int) string {
	return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, db.QuoteIdent(table, "[", "]"))
}

func normalize(v any, dbType string) any {
	switch x := v.(type) {
	case []byte:
		// NEVER string() binary; it wrecks the table.
		if dbType == "uniqueidentifier" {
			return formatUniqueIdentifier(x)
		}
		return fmt.Sprintf("0x%x", x)
	case time.Time:
		return db.FormatTime(x)
	default:
		return x
	}
}

// formatUniqueIdentifier undoes SQL Server's mixed-endian GUID layout.
func formatUniqueIdentifier(b []byte) string {
	if len(b) != 16 {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	)
}
