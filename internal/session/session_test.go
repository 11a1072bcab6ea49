package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bgunnarsson/sqlagent/internal/agent"
	"github.com/bgunnarsson/sqlagent/internal/db"
	"github.com/bgunnarsson/sqlagent/internal/db/sqlite"
	"github.com/bgunnarsson/sqlagent/internal/print"
)

type fakeRunner struct {
	questions []string
	turn      *agent.Turn
	err       error
}

func (f *fakeRunner) Run(_ context.Context, q string) (*agent.Turn, error) {
	f.questions = append(f.questions, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.turn != nil {
		return f.turn, nil
	}
	return &agent.Turn{Question: q, SQL: "SELECT 1"}, nil
}

func run(t *testing.T, r Runner, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := New(r, strings.NewReader(input), &out, zap.NewNop()).Run(context.Background())
	return out.String(), err
}

func TestExitEndsSession(t *testing.T) {
	r := &fakeRunner{}
	out, err := run(t, r, "exit\nhow many customers?\n")
	require.NoError(t, err)

	assert.Empty(t, r.questions)
	assert.True(t, strings.HasPrefix(out, Welcome+"\n"+Hint+"\n"))
	assert.Equal(t, 1, strings.Count(out, Prompt))
}

func TestExitIsCaseInsensitive(t *testing.T) {
	r := &fakeRunner{}
	_, err := run(t, r, "first question\n  EXIT  \nsecond question\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"first question"}, r.questions)
}

func TestExitMustBeWholeLine(t *testing.T) {
	assert.True(t, IsExit("exit"))
	assert.True(t, IsExit(" Exit\t"))
	assert.False(t, IsExit("exit now"))
	assert.False(t, IsExit("quit"))
	assert.False(t, IsExit(""))
}

func TestEmptyLinesReprompt(t *testing.T) {
	r := &fakeRunner{}
	out, err := run(t, r, "\n   \nexit\n")
	require.NoError(t, err)
	assert.Empty(t, r.questions)
	assert.Equal(t, 3, strings.Count(out, Prompt))
}

func TestEndOfInputEndsSession(t *testing.T) {
	r := &fakeRunner{}
	_, err := run(t, r, "how many customers?")
	require.NoError(t, err)
	assert.Equal(t, []string{"how many customers?"}, r.questions)
}

func TestTurnIsPrintedVerbatim(t *testing.T) {
	turn := &agent.Turn{
		SQL: "SELECT name FROM customers",
		Results: []agent.StatementResult{{
			SQL: "SELECT name FROM customers",
			Rows: &db.Rows{
				Columns: []db.Column{{Name: "name"}},
				Data:    []db.Row{{"Alice"}, {"Bob"}},
			},
		}},
	}
	r := &fakeRunner{turn: turn}
	out, err := run(t, r, "names\nexit\n")
	require.NoError(t, err)

	var want bytes.Buffer
	print.RenderTurn(&want, turn, print.Options{MaxWidth: print.NoLimit})
	assert.Contains(t, out, want.String())
}

func TestErrorsAreReportedAndLoopContinues(t *testing.T) {
	r := &fakeRunner{err: errors.New("dial postgres://app:hunter2@db/shop: connection refused")}
	out, err := run(t, r, "one\ntwo\nexit\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, r.questions)
	assert.Equal(t, 2, strings.Count(out, "An error occurred: dial postgres://*:*@db/shop: connection refused"))
	assert.NotContains(t, out, "hunter2")
}

func TestReadErrorIsReturned(t *testing.T) {
	boom := errors.New("disk gone")
	var out bytes.Buffer
	err := New(&fakeRunner{}, iotest.ErrReader(boom), &out, nil).Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestCancelEndsSession(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&fakeRunner{}, pr, io.Discard, nil).Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
}

type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Complete(context.Context, string) (string, error) {
	if s.calls >= len(s.replies) {
		return "", errors.New("unexpected model call")
	}
	s.calls++
	return s.replies[s.calls-1], nil
}

func TestSessionWithAgentRepairsOnce(t *testing.T) {
	ctx := context.Background()
	d, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(ctx, `CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT, price REAL)`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `INSERT INTO products (name, price) VALUES ('Laptop', 999.99), ('Mouse', 19.99)`)
	require.NoError(t, err)

	model := &scriptedLLM{replies: []string{
		"SELECT nam FROM products",
		"SELECT name FROM products ORDER BY price",
	}}
	a := agent.New(d, model, zap.NewNop(), agent.Options{})

	out, err := run(t, a, "list products by price\nexit\n")
	require.NoError(t, err)

	assert.Equal(t, 2, model.calls)
	assert.Contains(t, out, "Generated SQL:\nSELECT name FROM products ORDER BY price\n")
	assert.Contains(t, out, "| Mouse  |\n| Laptop |\n")
	assert.Contains(t, out, "(2 rows)")
	assert.NotContains(t, out, "Error:")
}

func TestSessionKeepsValuesIntact(t *testing.T) {
	ctx := context.Background()
	d, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer d.Close()

	long := strings.Repeat("abcdefghij", 10)
	_, err = d.Exec(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `INSERT INTO notes (body) VALUES (?), (?)`, long, "line1\nline2")
	require.NoError(t, err)

	model := &scriptedLLM{replies: []string{"SELECT body FROM notes ORDER BY id"}}
	a := agent.New(d, model, zap.NewNop(), agent.Options{})

	out, err := run(t, a, "show the notes\nexit\n")
	require.NoError(t, err)

	assert.Contains(t, out, long)
	assert.Contains(t, out, "line1\nline2")
	assert.Contains(t, out, "(2 rows)")
}
