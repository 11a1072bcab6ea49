package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgunnarsson/sqlagent/internal/db"
	"github.com/bgunnarsson/sqlagent/internal/db/sqlite"
)

func openMemory(t *testing.T) *sqlite.SqliteDB {
	t.Helper()
	d, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDescribeSchemaEmptyDatabase(t *testing.T) {
	d := openMemory(t)

	got, err := db.DescribeSchema(context.Background(), d, db.SchemaOptions{})
	require.NoError(t, err)
	assert.Equal(t, "-- the database has no tables", got)
}

func TestDescribeSchema(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)

	_, err := d.Exec(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id))`)
	require.NoError(t, err)

	got, err := db.DescribeSchema(ctx, d, db.SchemaOptions{})
	require.NoError(t, err)

	want := "CREATE TABLE customers (\n" +
		"\tid INTEGER PRIMARY KEY,\n" +
		"\tname TEXT NOT NULL,\n" +
		"\temail TEXT\n" +
		")\n" +
		"\n" +
		"CREATE TABLE orders (\n" +
		"\tid INTEGER PRIMARY KEY,\n" +
		"\tcustomer_id INTEGER\n" +
		")\n"
	assert.Equal(t, want, got)
}

func TestDescribeSchemaWithSampleRows(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)

	_, err := d.Exec(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `INSERT INTO customers (name, email) VALUES ('Ada', NULL), ('Grace', 'grace@example.com'), ('Linus', NULL)`)
	require.NoError(t, err)

	got, err := db.DescribeSchema(ctx, d, db.SchemaOptions{SampleRows: 2})
	require.NoError(t, err)

	assert.Contains(t, got, "/*\n2 rows from customers table:\nid\tname\temail\n1\tAda\tNULL\n2\tGrace\tgrace@example.com\n*/\n")
	assert.NotContains(t, got, "Linus")
}
