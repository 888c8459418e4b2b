package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// waitTask describes what the terminal is blocked on. Deadline is set when a
// wallet has a bounded time to answer.
type waitTask struct {
	Label    string
	Hint     string
	Deadline time.Time
}

type waitDoneMsg struct {
	err error
}

type waitSpinnerModel struct {
	spinner   spinner.Model
	task      waitTask
	now       func() time.Time
	work      tea.Cmd
	hintStyle lipgloss.Style
	lateStyle lipgloss.Style
	err       error
	done      bool
}

func newWaitSpinnerModel(task waitTask, now func() time.Time, work tea.Cmd) waitSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)
	if now == nil {
		now = time.Now
	}

	return waitSpinnerModel{
		spinner:   s,
		task:      task,
		now:       now,
		work:      work,
		hintStyle: lipgloss.NewStyle().Faint(true),
		lateStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (m waitSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m waitSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case waitDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m waitSpinnerModel) View() string {
	if m.done {
		return ""
	}

	line := fmt.Sprintf("%s %s", m.spinner.View(), m.task.Label)
	if !m.task.Deadline.IsZero() {
		line += " " + m.remaining()
	}
	if m.task.Hint != "" {
		line += "\n" + m.hintStyle.Render(m.task.Hint)
	}
	return line
}

// remaining renders the time the wallet has left to answer. The registry
// fails the attempt at the deadline, so past it only the expiry is pending.
func (m waitSpinnerModel) remaining() string {
	left := m.task.Deadline.Sub(m.now())
	if left <= 0 {
		return m.lateStyle.Render("(expiring)")
	}
	return fmt.Sprintf("(%s left)", left.Round(time.Second))
}

// runWithSpinner shows task on output while work runs. With quiet set it
// just runs work.
func runWithSpinner(ctx context.Context, output io.Writer, task waitTask, quiet bool, work func(context.Context) error) error {
	if quiet {
		return work(ctx)
	}

	workCmd := func() tea.Msg {
		return waitDoneMsg{err: work(ctx)}
	}

	p := tea.NewProgram(
		newWaitSpinnerModel(task, time.Now, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(waitSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
