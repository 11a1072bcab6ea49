package app

import (
	"context"
	"errors"
	"io"

	"github.com/bgunnarsson/sqlagent/internal/print"
	"github.com/bgunnarsson/sqlagent/internal/session"
)

// ErrTurnFailed is returned by a one-shot run whose SQL could not be
// executed, after the report has been printed.
var ErrTurnFailed = errors.New("query failed")

func runOnce(ctx context.Context, r session.Runner, question string, out io.Writer) error {
	turn, err := r.Run(ctx, question)
	if err != nil {
		return err
	}

	print.RenderTurn(out, turn, print.Options{MaxWidth: print.NoLimit})
	if turn.Failed() {
		return ErrTurnFailed
	}
	return nil
}
