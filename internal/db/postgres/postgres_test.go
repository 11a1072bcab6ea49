package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgunnarsson/sqlagent/internal/db"
)

func TestDescribeTableDefaultsToPublic(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	p := New(conn)
	defer p.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("id", "integer", "NO").
			AddRow("order_date", "date", "YES"))

	cols, err := p.DescribeTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, []db.Column{
		{Name: "id", Type: "integer", NotNull: true},
		{Name: "order_date", Type: "date"},
	}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTableQualified(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	p := New(conn)
	defer p.Close()

	mock.ExpectQuery("information_schema.columns").
		WithArgs("sales", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("id", "bigint", "NO"))

	_, err = p.DescribeTable(context.Background(), "sales.orders")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTables(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	p := New(conn)
	defer p.Close()

	mock.ExpectQuery("information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("public.customers").
			AddRow("public.orders"))

	tables, err := p.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"public.customers", "public.orders"}, tables)
}

func TestQueryNormalizesBytes(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	p := New(conn)
	defer p.Close()

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("Ada")))

	rows, err := p.Query(context.Background(), "SELECT name FROM customers")
	require.NoError(t, err)
	assert.Equal(t, []db.Row{{"Ada"}}, rows.Data)
}

func TestSampleQuery(t *testing.T) {
	p := New(nil)
	assert.Equal(t, `SELECT * FROM "public"."orders" LIMIT 3`, p.SampleQuery("public.orders", 3))
}

func TestCloseExpectsClose(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	require.NoError(t, New(conn).Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
