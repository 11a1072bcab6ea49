// Package agent runs one question through the text-to-SQL pipeline:
// describe the schema, ask the model for SQL, execute it, ask for a single
// correction if execution fails, and optionally ask for an explanation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bgunnarsson/sqlagent/internal/db"
	"github.com/bgunnarsson/sqlagent/internal/llm"
	"github.com/bgunnarsson/sqlagent/internal/logging"
)

var (
	// ErrEmptyCompletion means the model answered the question with no SQL.
	ErrEmptyCompletion = errors.New("no SQL query generated")
	// ErrReadOnly rejects a statement that would modify the database.
	ErrReadOnly = errors.New("statement rejected: session is read-only")

	errNoStatements = errors.New("completion contains no SQL statements")
)

// ErrRepairEmpty is the turn error when the correction request comes back
// empty.
const ErrRepairEmpty = "failed to generate corrected query"

// ExecError is a failure while executing model generated SQL. Only these
// errors are sent back to the model for a correction.
type ExecError struct {
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("error executing statement: %s: %v", e.Statement, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// StatementResult is the outcome of one executed statement. Rows is nil for
// statements run as exec.
type StatementResult struct {
	SQL          string
	Rows         *db.Rows
	RowsAffected int64
}

// Turn records one question's pass through the pipeline.
type Turn struct {
	Question string
	Schema   string

	// SQL is the query that was executed last.
	SQL string
	// RepairedFrom holds the first, failed query when a correction was
	// requested.
	RepairedFrom string

	Results     []StatementResult
	Explanation string

	// Err is the execution error shown to the user when the corrected
	// query failed as well.
	Err string

	Repaired bool
	Attempts int
	Elapsed  time.Duration
}

// Failed reports whether the turn surfaced an error.
func (t *Turn) Failed() bool { return t.Err != "" }

type Options struct {
	// Explain asks the model to describe a successful query.
	Explain bool
	// ReadOnly rejects statements that are not plain reads.
	ReadOnly bool
	// SampleRows adds example rows per table to the schema description.
	SampleRows int
}

type Agent struct {
	db     db.DB
	llm    llm.Client
	log    *zap.Logger
	opts   Options
	syntax Syntax

	mu     sync.Mutex
	schema string
}

func New(d db.DB, client llm.Client, log *zap.Logger, opts Options) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{db: d, llm: client, log: log, opts: opts, syntax: SyntaxFor(d.Dialect())}
}

// Schema returns the schema description sent to the model, describing the
// database on first use.
func (a *Agent) Schema(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schemaLocked(ctx)
}

func (a *Agent) schemaLocked(ctx context.Context) (string, error) {
	if a.schema != "" {
		return a.schema, nil
	}
	s, err := db.DescribeSchema(ctx, a.db, db.SchemaOptions{SampleRows: a.opts.SampleRows})
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}
	a.schema = s
	return s, nil
}

// Run answers question. Execution failures end up in Turn.Err; the returned
// error is reserved for everything else (schema, model API, cancellation).
func (a *Agent) Run(ctx context.Context, question string) (*Turn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	turn := &Turn{Question: question}
	defer func() { turn.Elapsed = time.Since(start) }()

	schema, err := a.schemaLocked(ctx)
	if err != nil {
		return nil, err
	}
	turn.Schema = schema

	completion, err := a.llm.Complete(ctx, QueryPrompt(a.db.Dialect(), schema, question))
	if err != nil {
		return nil, fmt.Errorf("generate sql: %w", err)
	}
	sql := CleanCompletion(completion)
	if sql == "" {
		return nil, ErrEmptyCompletion
	}
	turn.SQL = sql
	turn.Attempts = 1
	a.log.Debug("generated sql", zap.String("sql", sql))

	results, execErr := a.execute(ctx, sql)
	if execErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.log.Info("query failed, requesting a correction", logging.Error(execErr))

		fixed, err := a.llm.Complete(ctx, RepairPrompt(execErr.Error(), schema, question, sql))
		if err != nil {
			return nil, fmt.Errorf("repair sql: %w", err)
		}
		turn.Repaired = true
		turn.RepairedFrom = sql

		fixed = CleanCompletion(fixed)
		if fixed == "" {
			turn.Err = ErrRepairEmpty
			return turn, nil
		}
		turn.SQL = fixed
		turn.Attempts = 2
		a.log.Debug("corrected sql", zap.String("sql", fixed))

		results, execErr = a.execute(ctx, fixed)
		if execErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			turn.Results = results
			turn.Err = execErr.Error()
			return turn, nil
		}
	}
	turn.Results = results

	if a.opts.Explain {
		explanation, err := a.llm.Complete(ctx, ExplainPrompt(turn.SQL))
		if err != nil {
			a.log.Warn("explanation failed", logging.Error(err))
		} else {
			turn.Explanation = CleanExplanation(explanation)
		}
	}
	return turn, nil
}

// execute runs every statement of sql in order and stops at the first
// failure. Results of statements that ran before the failure are returned
// alongside the error.
func (a *Agent) execute(ctx context.Context, sql string) ([]StatementResult, error) {
	stmts := a.syntax.SplitStatements(sql)
	if len(stmts) == 0 {
		return nil, &ExecError{Statement: sql, Err: errNoStatements}
	}

	if a.opts.ReadOnly {
		for _, stmt := range stmts {
			if !a.syntax.IsReadOnly(stmt) {
				return nil, &ExecError{Statement: stmt, Err: ErrReadOnly}
			}
		}
	}

	var results []StatementResult
	wrote := false
	defer func() {
		if wrote {
			// DDL may have changed the tables
			a.schema = ""
		}
	}()

	for _, stmt := range stmts {
		res := StatementResult{SQL: stmt, RowsAffected: -1}

		if !a.syntax.IsReadOnly(stmt) {
			wrote = true
		}

		start := time.Now()
		var err error
		if a.syntax.ReturnsRows(stmt) {
			res.Rows, err = a.db.Query(ctx, stmt)
		} else {
			res.RowsAffected, err = a.db.Exec(ctx, stmt)
		}
		if err != nil {
			return results, &ExecError{Statement: stmt, Err: err}
		}
		a.log.Debug("statement executed", zap.String("sql", stmt), zap.Duration("took", time.Since(start)))
		results = append(results, res)
	}
	return results, nil
}
