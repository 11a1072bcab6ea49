package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register driver

	"github.com/bgunnarsson/sqlagent/internal/db"
)

type SqliteDB struct {
	db.SQL
}

// Open opens a SQLite database by plain path (or ":memory:") and enables
// foreign keys.
func Open(ctx context.Context, path string) (*SqliteDB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}

	// a second connection to ":memory:" would see a fresh empty database
	sqldb, err := db.Connect(ctx, "sqlite", path, db.SessionPool)
	if err != nil {
		return nil, err
	}

	if _, err := sqldb.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	return New(sqldb), nil
}

// New wraps an already open pool.
func New(sqldb *sql.DB) *SqliteDB {
	return &SqliteDB{db.SQL{
		Conn:       sqldb,
		UpperTypes: true,
	}}
}

func (s *SqliteDB) Dialect() string { return "SQLite" }

func (s *SqliteDB) ListTables(ctx context.Context) ([]string, error) {
	// tables + views, hiding internal sqlite_% objects
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY lower(name);
	`
	return s.Strings(ctx, q)
}

func (s *SqliteDB) DescribeTable(ctx context.Context, table string) ([]db.Column, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s);", quoteIdent(table))

	rows, err := s.Conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []db.Column
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, db.Column{
			Name:       name,
			Type:       strings.ToUpper(ctype),
			NotNull:    notnull != 0,
			PrimaryKey: pk != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, db.ErrNoSuchTable
	}
	return cols, nil
}

func (s *SqliteDB) SampleQuery(table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d;", quoteIdent(table), limit)
}

// very basic identifier quoting – enough for sqlite
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
