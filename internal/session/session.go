// Package session implements the line oriented question loop used when
// input is not a terminal (pipes, scripts, --plain).
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/bgunnarsson/sqlagent/internal/agent"
	"github.com/bgunnarsson/sqlagent/internal/logging"
	"github.com/bgunnarsson/sqlagent/internal/print"
)

const (
	Welcome = "Welcome to the Text-to-SQL Agent!"
	Hint    = "Type 'exit' to quit."
	Prompt  = "Enter your question (or 'exit' to quit): "

	maxLine = 1024 * 1024
)

// Runner answers one question.
type Runner interface {
	Run(ctx context.Context, question string) (*agent.Turn, error)
}

// IsExit reports whether line asks to end the session.
func IsExit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "exit")
}

type Session struct {
	runner Runner
	in     io.Reader
	out    io.Writer
	log    *zap.Logger
	layout print.Options
}

func New(r Runner, in io.Reader, out io.Writer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		runner: r,
		in:     in,
		out:    out,
		log:    log,
		layout: print.Options{MaxWidth: print.NoLimit},
	}
}

// Run reads questions until "exit", end of input or ctx is cancelled.
// Only read failures and cancellation are returned; a failed turn is
// reported and the loop goes on.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, Welcome)
	fmt.Fprintln(s.out, Hint)

	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	var readErr error
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		readErr = sc.Err()
	}()

	for {
		fmt.Fprint(s.out, "\n"+Prompt)

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return ctx.Err()
		case line, ok = <-lines:
		}

		if !ok {
			fmt.Fprintln(s.out)
			if readErr != nil {
				return fmt.Errorf("read input: %w", readErr)
			}
			return nil
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if IsExit(question) {
			return nil
		}

		s.turn(ctx, question)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Session) turn(ctx context.Context, question string) {
	turn, err := s.runner.Run(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("turn failed", zap.String("question", question), logging.Error(err))
		fmt.Fprintln(s.out)
		fmt.Fprintln(s.out, logging.PresentError("An error occurred", err))
		return
	}

	s.log.Debug("turn finished",
		zap.Int("attempts", turn.Attempts),
		zap.Bool("repaired", turn.Repaired),
		zap.Duration("took", turn.Elapsed),
	)
	fmt.Fprintln(s.out)
	print.RenderTurn(s.out, turn, s.layout)
}
