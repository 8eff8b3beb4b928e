package stress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olimci/lazycell/pkg/version"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	gm "github.com/yuin/goldmark"
	gmext "github.com/yuin/goldmark/extension"
)

// Markdown renders results as a GFM report.
func Markdown(results []*Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# lazycell stress report\n\n")
	fmt.Fprintf(&b, "lazycell %s, %d scenarios\n\n", version.String(), len(results))

	b.WriteString("| scenario | goroutines | calls | initializer | invocations | pointers | contended | spins | race lost | poisoned | releases | time | status |\n")
	b.WriteString("|---|---:|---:|---|---:|---:|---:|---:|---:|---:|---:|---:|---|\n")

	var failures []string
	for _, r := range results {
		status := "ok"
		if err := r.Check(); err != nil {
			status = "FAIL"
			failures = append(failures, fmt.Sprintf("- **%s**: %s", r.Scenario.Name, strings.ReplaceAll(err.Error(), "\n", "; ")))
		}

		fmt.Fprintf(&b, "| %s | %d | %d | %s | %d | %d | %d | %d | %d | %d | %d | %s | %s |\n",
			r.Scenario.Name,
			r.Scenario.Goroutines,
			r.Scenario.Calls,
			r.Scenario.Initializer,
			r.Invocations,
			r.Pointers,
			r.Contended,
			r.Spins,
			r.RaceLost,
			r.Poisoned,
			r.Releases,
			r.Duration.Truncate(time.Microsecond),
			status,
		)
	}

	if len(failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		b.WriteString(strings.Join(failures, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

// WriteHTML renders the Markdown report as a minified standalone page.
func WriteHTML(w io.Writer, results []*Result) error {
	md := gm.New(gm.WithExtensions(gmext.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(results)), &body); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	m := minify.New()
	m.AddFunc("text/html", minhtml.Minify)

	mw := m.Writer("text/html", w)
	fmt.Fprintf(mw, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>lazycell stress report</title>\n</head>\n<body>\n%s</body>\n</html>\n", body.String())
	if err := mw.Close(); err != nil {
		return fmt.Errorf("minify report: %w", err)
	}
	return nil
}
