package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PoolOptions carries the connection pool knobs for Connect.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// SessionPool keeps exactly one connection open for the whole session, so
// BEGIN/COMMIT, SET and temporary tables carry over between statements.
var SessionPool = PoolOptions{
	MaxOpenConns: 1,
	MaxIdleConns: 1,
	PingTimeout:  5 * time.Second,
}

// Connect opens a database/sql pool and pings it. The pool is closed again
// if the ping fails.
func Connect(ctx context.Context, driverName, dsn string, opts PoolOptions) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty %s DSN", driverName)
	}

	sqldb, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return sqldb, nil
}

// SQL implements the row level half of DB over a *sql.DB. Driver packages
// embed it and add the catalog queries.
type SQL struct {
	Conn *sql.DB

	// Normalize rewrites a scanned value before it is stored in Rows. dbType
	// is the lower-cased database type name of the column. Nil keeps values
	// as the driver returned them.
	Normalize func(v any, dbType string) any

	// UpperTypes reports column types upper-cased instead of lower-cased.
	UpperTypes bool
}

func (s *SQL) Close() error {
	if s == nil || s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

func (s *SQL) Query(ctx context.Context, sqlQuery string, args ...any) (*Rows, error) {
	rows, err := s.Conn.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	header := make([]Column, len(colNames))
	dbTypes := make([]string, len(colNames))
	for i, name := range colNames {
		typ := ""
		if i < len(colTypes) && colTypes[i] != nil {
			typ = colTypes[i].DatabaseTypeName()
		}
		dbTypes[i] = strings.ToLower(typ)
		if s.UpperTypes {
			typ = strings.ToUpper(typ)
		} else {
			typ = strings.ToLower(typ)
		}
		header[i] = Column{Name: name, Type: typ}
	}

	data := []Row{}
	for rows.Next() {
		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		if s.Normalize != nil {
			for i, v := range values {
				values[i] = s.Normalize(v, dbTypes[i])
			}
		}
		data = append(data, Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Rows{
		Columns: header,
		Data:    data,
	}, nil
}

func (s *SQL) Exec(ctx context.Context, sqlQuery string, args ...any) (int64, error) {
	res, err := s.Conn.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// Strings runs a single-column query and collects the values.
func (s *SQL) Strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.Conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InformationSchemaColumns scans (column_name, data_type, is_nullable) rows
// as returned by information_schema.columns.
func (s *SQL) InformationSchemaColumns(ctx context.Context, q string, args ...any) ([]Column, error) {
	rows, err := s.Conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dataType string
		var nullable sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, Column{
			Name:    name,
			Type:    dataType,
			NotNull: strings.EqualFold(nullable.String, "NO"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrNoSuchTable
	}
	return cols, nil
}

// ErrNoSuchTable is returned by DescribeTable when the catalog has no
// columns for the requested table.
var ErrNoSuchTable = errors.New("no such table")

// NormalizeText turns driver byte slices into strings and times into
// stable text. Used by drivers that return TEXT columns as []byte.
func NormalizeText(v any, _ string) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return FormatTime(x)
	default:
		return x
	}
}

// FormatTime renders dates without a time part as YYYY-MM-DD and everything
// else as RFC3339.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// QuoteIdent quotes each dot separated part of an identifier with the given
// delimiters, doubling any embedded closing delimiter.
func QuoteIdent(id string, open, close string) string {
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = open + strings.ReplaceAll(p, close, close+close) + close
	}
	return strings.Join(parts, ".")
}

// SplitQualified splits "schema.table" into its parts, falling back to
// defaultSchema when no schema is given.
func SplitQualified(table, defaultSchema string) (schema, name string) {
	if dot := strings.Index(table, "."); dot != -1 {
		return table[:dot], table[dot+1:]
	}
	return defaultSchema, table
}
