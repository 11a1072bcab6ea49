package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgunnarsson/sqlagent/internal/db"
	"github.com/bgunnarsson/sqlagent/internal/dsn"
	"github.com/bgunnarsson/sqlagent/internal/session"
)

type fakeDB struct {
	mu      sync.Mutex
	closed  int
	queries []string
	failing bool
}

func (f *fakeDB) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeDB) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed == 1
}

func (f *fakeDB) Dialect() string { return "SQLite" }
func (f *fakeDB) ListTables(context.Context) ([]string, error) { return []string{"t"}, nil }
func (f *fakeDB) SampleQuery(table string, limit int) string { return "SELECT * FROM t" }
func (f *fakeDB) Exec(context.Context, string, ...any) (int64, error) { return 1, nil }

func (f *fakeDB) DescribeTable(context.Context, string) ([]db.Column, error) {
	return []db.Column{{Name: "n", Type: "INTEGER"}}, nil
}

func (f *fakeDB) Query(_ context.Context, q string, _ ...any) (*db.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.failing {
		return nil, errors.New("no such column: nope")
	}
	return &db.Rows{
		Columns: []db.Column{{Name: "n"}},
		Data:    []db.Row{{int64(42)}},
	}, nil
}

type fixedLLM struct {
	answer string
	panics bool
}

func (l fixedLLM) Complete(context.Context, string) (string, error) {
	if l.panics {
		panic("model exploded")
	}
	return l.answer, nil
}

func withFakeDB(t *testing.T, f *fakeDB, openErr error) *dsn.Info {
	t.Helper()
	var got dsn.Info
	orig := openDB
	openDB = func(_ context.Context, info dsn.Info) (db.DB, error) {
		got = info
		if openErr != nil {
			return nil, openErr
		}
		return f, nil
	}
	t.Cleanup(func() { openDB = orig })
	return &got
}

func TestRunSessionClosesOnExit(t *testing.T) {
	f := &fakeDB{}
	info := withFakeDB(t, f, nil)

	var out bytes.Buffer
	err := Run(context.Background(), Options{
		DatabaseURL: "sqlite:///shop.db",
		LLM:         fixedLLM{answer: "SELECT 42 AS n"},
		In:          strings.NewReader("how many?\nexit\n"),
		Out:         &out,
	})
	require.NoError(t, err)

	assert.True(t, f.isClosed())
	assert.Equal(t, dsn.DriverSqlite, info.Driver)
	assert.Equal(t, "shop.db", info.DSN)
	assert.Contains(t, out.String(), session.Welcome)
	assert.Contains(t, out.String(), "SELECT 42 AS n")
	assert.Contains(t, out.String(), "42")
}

func TestRunClosesOnReadError(t *testing.T) {
	f := &fakeDB{}
	withFakeDB(t, f, nil)

	err := Run(context.Background(), Options{
		DatabaseURL: "example.db",
		LLM:         fixedLLM{answer: "SELECT 1"},
		In:          iotest.ErrReader(errors.New("tty gone")),
		Out:         &bytes.Buffer{},
	})
	require.ErrorContains(t, err, "tty gone")
	assert.True(t, f.isClosed())
}

func TestRunClosesOnPanic(t *testing.T) {
	f := &fakeDB{}
	withFakeDB(t, f, nil)

	assert.Panics(t, func() {
		_ = Run(context.Background(), Options{
			DatabaseURL: "example.db",
			LLM:         fixedLLM{panics: true},
			In:          strings.NewReader("boom\n"),
			Out:         &bytes.Buffer{},
		})
	})
	assert.True(t, f.isClosed())
}

func TestRunClosesOnCancel(t *testing.T) {
	f := &fakeDB{}
	withFakeDB(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// an input that never ends, so only the context can stop the loop
	err := Run(ctx, Options{
		DatabaseURL: "example.db",
		LLM:         fixedLLM{answer: "SELECT 1"},
		In:          blockingReader{},
		Out:         &bytes.Buffer{},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.isClosed())
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestRunOpenFailure(t *testing.T) {
	withFakeDB(t, nil, errors.New("connection refused"))

	err := Run(context.Background(), Options{
		DatabaseURL: "postgres://app:hunter2@db/shop",
		LLM:         fixedLLM{},
		In:          strings.NewReader(""),
		Out:         &bytes.Buffer{},
	})
	require.ErrorContains(t, err, "connection refused")
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestRunBadURL(t *testing.T) {
	withFakeDB(t, nil, errors.New("must not be called"))

	err := Run(context.Background(), Options{DatabaseURL: "oracle://x"})
	var pe *dsn.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestRunOnce(t *testing.T) {
	f := &fakeDB{}
	withFakeDB(t, f, nil)

	var out bytes.Buffer
	err := Run(context.Background(), Options{
		DatabaseURL: "example.db",
		LLM:         fixedLLM{answer: "SELECT 42 AS n"},
		Query:       "the answer",
		Out:         &out,
	})
	require.NoError(t, err)
	assert.True(t, f.isClosed())
	assert.Contains(t, out.String(), "Generated SQL:")
	assert.Contains(t, out.String(), "(1 row)")
	assert.NotContains(t, out.String(), session.Welcome)
}

func TestRunOnceFailedTurn(t *testing.T) {
	f := &fakeDB{failing: true}
	withFakeDB(t, f, nil)

	var out bytes.Buffer
	err := Run(context.Background(), Options{
		DatabaseURL: "example.db",
		LLM:         fixedLLM{answer: "SELECT nope FROM t"},
		Query:       "broken",
		Out:         &out,
	})
	require.ErrorIs(t, err, ErrTurnFailed)
	assert.True(t, f.isClosed())
	assert.Contains(t, out.String(), "Error:")
	assert.Contains(t, out.String(), "no such column: nope")

	// the first attempt and exactly one repair
	assert.Equal(t, []string{"SELECT nope FROM t", "SELECT nope FROM t"}, f.queries)
}
