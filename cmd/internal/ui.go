package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ScenarioStartedMsg announces a scenario before it runs.
type ScenarioStartedMsg struct {
	Name  string
	Index int
	Total int
}

// ScenarioDoneMsg carries a formatted result line.
type ScenarioDoneMsg struct {
	Line   string
	Failed bool
}

type doneMsg struct {
	err error
}

// RunUI shows progress while work runs. work receives a context that is
// cancelled when the user quits, and a function to push messages to the UI.
func RunUI(ctx context.Context, title string, work func(ctx context.Context, send func(tea.Msg)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newModel(title), tea.WithContext(ctx))

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx, program.Send)
		program.Send(doneMsg{err: err})
		errCh <- err
	}()

	_, runErr := program.Run()
	interrupted := ctx.Err() != nil
	cancel()
	workErr := <-errCh

	if workErr != nil {
		return workErr
	}
	if runErr != nil && !interrupted {
		return runErr
	}
	return nil
}

type model struct {
	title   string
	spinner spinner.Model

	current  string
	index    int
	total    int
	lines    []string
	failures int
	done     bool

	okStyle   lipgloss.Style
	failStyle lipgloss.Style
	dimStyle  lipgloss.Style
}

func newModel(title string) model {
	return model{
		title:     title,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		okStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")),
		failStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
		dimStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch x := msg.(type) {
	case tea.KeyMsg:
		switch x.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case ScenarioStartedMsg:
		m.current = x.Name
		m.index = x.Index
		m.total = x.Total
		return m, nil

	case ScenarioDoneMsg:
		style := m.okStyle
		if x.Failed {
			style = m.failStyle
			m.failures++
		}
		m.lines = append(m.lines, style.Render(x.Line))
		return m, nil

	case doneMsg:
		m.done = true
		if x.err != nil {
			m.lines = append(m.lines, m.failStyle.Render("error: "+x.err.Error()))
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(x)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(m.title)
	b.WriteString("\n\n")
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch {
	case m.done && m.failures > 0:
		b.WriteString(m.failStyle.Render(fmt.Sprintf("\n%d scenario(s) failed\n", m.failures)))
	case m.done:
		b.WriteString("\n")
	case m.current != "":
		b.WriteString(fmt.Sprintf("\n%s running %s (%d/%d)\n", m.spinner.View(), m.current, m.index+1, m.total))
		b.WriteString(m.dimStyle.Render("q quit") + "\n")
	default:
		b.WriteString(fmt.Sprintf("\n%s starting\n", m.spinner.View()))
	}

	return b.String()
}
