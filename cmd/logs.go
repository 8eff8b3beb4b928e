package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/olimci/lazycell/pkg/stress"
)

type outputStyle int

const (
	outputPlain outputStyle = iota
	outputRich
)

type resultPrinter struct {
	style outputStyle
	out   io.Writer
	mu    sync.Mutex

	okStyle     lipgloss.Style
	failStyle   lipgloss.Style
	nameStyle   lipgloss.Style
	detailStyle lipgloss.Style
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newResultPrinter(out io.Writer) *resultPrinter {
	p := &resultPrinter{
		style: outputPlain,
		out:   out,
	}
	if !isTerminal(out) {
		return p
	}

	p.style = outputRich
	p.okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))     // green
	p.failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))   // red
	p.nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4"))   // text
	p.detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")) // muted
	return p
}

func (p *resultPrinter) Print(r *stress.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, p.format(r))
}

func (p *resultPrinter) format(r *stress.Result) string {
	err := r.Check()
	if p.style != outputRich {
		return formatResultPlain(r, err)
	}

	status := p.okStyle.Render("OK  ")
	if err != nil {
		status = p.failStyle.Render("FAIL")
	}

	var b strings.Builder
	b.WriteString(status)
	b.WriteString(" ")
	b.WriteString(p.nameStyle.Render("[" + r.Scenario.Name + "]"))
	b.WriteString(" ")
	b.WriteString(summarizeResult(r))
	b.WriteString(" ")
	b.WriteString(p.detailStyle.Render(resultCounters(r)))
	if err != nil {
		b.WriteString(": ")
		b.WriteString(p.failStyle.Render(flattenErr(err)))
	}
	return b.String()
}

func formatResultPlain(r *stress.Result, err error) string {
	var b strings.Builder

	if err != nil {
		b.WriteString("FAIL")
	} else {
		b.WriteString("OK  ")
	}
	b.WriteString(" [")
	b.WriteString(r.Scenario.Name)
	b.WriteString("] ")
	b.WriteString(summarizeResult(r))
	b.WriteString(" ")
	b.WriteString(resultCounters(r))

	if err != nil {
		b.WriteString(": ")
		b.WriteString(flattenErr(err))
	}
	return b.String()
}

func summarizeResult(r *stress.Result) string {
	return fmt.Sprintf("%dx%d %s in %s",
		r.Scenario.Goroutines,
		r.Scenario.Calls,
		r.Scenario.Initializer,
		r.Duration.Truncate(time.Microsecond),
	)
}

func resultCounters(r *stress.Result) string {
	parts := []string{
		fmt.Sprintf("%d init", r.Invocations),
		fmt.Sprintf("%d contended (%d spins)", r.Contended, r.Spins),
		fmt.Sprintf("%d race lost", r.RaceLost),
		fmt.Sprintf("%d released", r.Releases),
	}
	if r.Poisoned > 0 {
		parts = append(parts, fmt.Sprintf("%d poisoned", r.Poisoned))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func flattenErr(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}
