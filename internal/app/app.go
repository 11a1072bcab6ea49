package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/bgunnarsson/sqlagent/internal/agent"
	"github.com/bgunnarsson/sqlagent/internal/db"
	"github.com/bgunnarsson/sqlagent/internal/db/mssql"
	"github.com/bgunnarsson/sqlagent/internal/db/mysql"
	"github.com/bgunnarsson/sqlagent/internal/db/postgres"
	"github.com/bgunnarsson/sqlagent/internal/db/sqlite"
	"github.com/bgunnarsson/sqlagent/internal/dsn"
	"github.com/bgunnarsson/sqlagent/internal/llm"
	"github.com/bgunnarsson/sqlagent/internal/session"
	"github.com/bgunnarsson/sqlagent/internal/ui"
)

// central factory, swapped out in tests
var openDB = func(ctx context.Context, info dsn.Info) (db.DB, error) {
	switch info.Driver {
	case dsn.DriverSqlite:
		return opened(sqlite.Open(ctx, info.DSN))
	case dsn.DriverPostgres:
		return opened(postgres.Open(ctx, info.DSN))
	case dsn.DriverMssql:
		return opened(mssql.Open(ctx, info.DSN))
	case dsn.DriverMysql:
		return opened(mysql.Open(ctx, info.DSN))
	default:
		return nil, fmt.Errorf("unsupported driver %q", info.Driver)
	}
}

// opened keeps a typed nil pointer from turning into a non-nil db.DB.
func opened[T db.DB](d T, err error) (db.DB, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Open parses a connection URL and connects to it.
func Open(ctx context.Context, rawURL string) (db.DB, dsn.Info, error) {
	info, err := dsn.Parse(rawURL)
	if err != nil {
		return nil, dsn.Info{}, err
	}
	d, err := openDB(ctx, info)
	if err != nil {
		return nil, info, fmt.Errorf("connect to %s: %w", info.Redacted(), err)
	}
	return d, info, nil
}

type Options struct {
	DatabaseURL string
	Agent       agent.Options
	LLM         llm.Client

	// Query runs a single question instead of a session.
	Query string
	// Plain forces the line oriented session even on a terminal.
	Plain bool

	In  io.Reader
	Out io.Writer
	Log *zap.Logger
}

// Run opens the database, answers questions through the chosen front end
// and closes the database again however the front end ends.
func Run(ctx context.Context, opts Options) error {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	d, info, err := Open(ctx, opts.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			log.Warn("close database", zap.Error(cerr))
		}
		log.Debug("database closed", zap.String("driver", string(info.Driver)))
	}()
	log.Debug("database opened",
		zap.String("driver", string(info.Driver)),
		zap.String("url", info.Redacted()))

	a := agent.New(d, opts.LLM, log, opts.Agent)

	switch {
	case opts.Query != "":
		return runOnce(ctx, a, opts.Query, opts.Out)
	case !opts.Plain && isTerminal(opts.In) && isTerminal(opts.Out):
		return ui.Run(ctx, a, d.Dialect()+" "+info.Redacted(), opts.In, opts.Out, log)
	default:
		return session.New(a, opts.In, opts.Out, log).Run(ctx)
	}
}

var isTerminal = func(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
