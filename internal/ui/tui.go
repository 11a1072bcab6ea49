package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/bgunnarsson/sqlagent/internal/agent"
	"github.com/bgunnarsson/sqlagent/internal/logging"
	"github.com/bgunnarsson/sqlagent/internal/print"
	"github.com/bgunnarsson/sqlagent/internal/session"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

// turnMsg carries a finished turn back to the UI goroutine.
type turnMsg struct {
	question string
	turn     *agent.Turn
	err      error
	took     time.Duration
}

// inflight tracks the running turn so Run can wait for it before the
// database is closed.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (f *inflight) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) end() { f.wg.Done() }

func (f *inflight) closeAndWait() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

type model struct {
	ctx    context.Context
	cancel context.CancelFunc
	turns  *inflight
	runner session.Runner
	label  string // e.g. "SQLite sqlite:///example.db"
	log    *zap.Logger

	input textinput.Model
	spin  spinner.Model

	busy   bool
	status string
	width  int
}

func newModel(ctx context.Context, r session.Runner, label string, log *zap.Logger) model {
	in := textinput.New()
	in.Prompt = "? "
	in.PromptStyle = promptStyle
	in.Placeholder = "ask a question about your data, or 'exit'"
	in.Focus()

	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)

	return model{
		ctx:    ctx,
		cancel: cancel,
		turns:  &inflight{},
		runner: r,
		label:  label,
		log:    log,
		input:  in,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(dimStyle)),
		status: label,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tea.Println(headingStyle.Render(session.Welcome)+"\n"+dimStyle.Render(session.Hint)),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, m.quit()
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			return m.submit()
		}
		if m.busy {
			// one turn at a time; typing waits
			return m, nil
		}

	case turnMsg:
		m.busy = false
		m.status = fmt.Sprintf("%s · %s", m.label, msg.took.Round(time.Millisecond))
		return m, tea.Println(m.render(msg))

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	if session.IsExit(question) {
		return m, m.quit()
	}

	m.input.Reset()
	m.busy = true
	m.status = "thinking..."

	echo := tea.Println(promptStyle.Render(m.input.Prompt) + question)
	return m, tea.Batch(m.spin.Tick, tea.Sequence(echo, m.ask(question)))
}

// quit cancels a turn still in flight and ends the program.
func (m model) quit() tea.Cmd {
	m.cancel()
	return tea.Quit
}

// stop cancels the turn in flight and waits for it to return.
func (m model) stop() {
	m.cancel()
	m.turns.closeAndWait()
}

// ask runs the turn off the UI goroutine.
func (m model) ask(question string) tea.Cmd {
	ctx, r, turns := m.ctx, m.runner, m.turns
	return func() tea.Msg {
		if !turns.begin() {
			return turnMsg{question: question, err: context.Canceled}
		}
		defer turns.end()

		start := time.Now()
		turn, err := r.Run(ctx, question)
		return turnMsg{question: question, turn: turn, err: err, took: time.Since(start)}
	}
}

func (m model) render(msg turnMsg) string {
	if msg.err != nil {
		m.log.Warn("turn failed", zap.String("question", msg.question), logging.Error(msg.err))
		return errorStyle.Render(logging.PresentError("An error occurred", msg.err)) + "\n"
	}

	var b bytes.Buffer
	print.RenderTurn(&b, msg.turn, print.Options{
		MaxWidth: columnWidth(m.width),
		Heading:  func(s string) string { return headingStyle.Render(s) },
	})
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func (m model) View() string {
	if m.busy {
		return m.spin.View() + " " + dimStyle.Render(m.status) + "\n"
	}
	return m.input.View() + "\n" + dimStyle.Render(m.status) + "\n"
}

// columnWidth caps table cells relative to the terminal width.
func columnWidth(termWidth int) int {
	if termWidth <= 0 {
		return 40
	}
	return min(max(termWidth/3, 12), 80)
}

// Run starts the interactive prompt. It returns when the user quits or ctx
// is cancelled, and never while a turn is still using the database.
func Run(ctx context.Context, r session.Runner, label string, in io.Reader, out io.Writer, log *zap.Logger) error {
	m := newModel(ctx, r, label, log)
	defer m.stop()

	p := tea.NewProgram(
		m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
