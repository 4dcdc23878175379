package console

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/robotomize/go-todorun/internal/exporter"
	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
)

var (
	_ observer.Observer          = (*Printer)(nil)
	_ observer.UnmatchedObserver = (*Printer)(nil)
)

type settings struct {
	verbose bool
	noColor bool
}

type Option func(s *settings)

// WithVerbose prints a line for every started and finished test.
func WithVerbose(verbose bool) Option {
	return func(s *settings) {
		s.verbose = verbose
	}
}

func WithNoColor(noColor bool) Option {
	return func(s *settings) {
		s.noColor = noColor
	}
}

func newSettings(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}

	return s
}

type palette struct {
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}

	if noColor {
		for _, c := range []*color.Color{p.green, p.red, p.yellow, p.cyan, p.bold} {
			c.DisableColor()
		}
	}

	return p
}

func (p palette) forStatus(s result.Status) *color.Color {
	switch s {
	case result.StatusPassed:
		return p.green
	case result.StatusFailed, result.StatusTimeout:
		return p.red
	case result.StatusSkipped:
		return p.yellow
	default:
		return p.cyan
	}
}

// Printer writes human readable run output. It is an observer for the live
// part of a run and renders the summary once the suite is sealed.
type Printer struct {
	w        io.Writer
	settings settings
	colors   palette
}

func New(w io.Writer, opts ...Option) *Printer {
	s := newSettings(opts)

	return &Printer{w: w, settings: s, colors: newPalette(s.noColor)}
}

func (p *Printer) TestStarted(t *result.Test) {
	if !p.settings.verbose {
		return
	}

	p.colors.cyan.Fprintf(p.w, "▶ %s\n", t.FullName())
}

func (p *Printer) TestFinished(t *result.Test) {
	if !p.settings.verbose {
		return
	}

	p.colors.forStatus(t.Status()).Fprintf(
		p.w, "%s %s [%s] (%s)\n", exporter.StatusGlyph(t.Status()), t.FullName(), t.Status(), formatDuration(t.Duration()),
	)

	if msg := t.ErrorMessage(); msg != "" {
		fmt.Fprintf(p.w, "    %s\n", msg)
	}
}

func (p *Printer) Progress(int, int) {}

func (p *Printer) UnmatchedFailure(line string) {
	p.colors.yellow.Fprintf(p.w, "⚠ failure matched no known test: %s\n", line)
}

// Summary prints the totals of a sealed suite and lists the failed tests.
func (p *Printer) Summary(suite *result.Suite) {
	r := exporter.NewReport(suite)

	fmt.Fprintln(p.w)
	p.colors.bold.Fprintf(p.w, "Tests: ")
	p.colors.green.Fprintf(p.w, "%d passed", r.Passed)
	fmt.Fprint(p.w, ", ")
	p.colors.red.Fprintf(p.w, "%d failed", r.Failed)
	fmt.Fprint(p.w, ", ")
	p.colors.yellow.Fprintf(p.w, "%d skipped", r.Skipped)
	fmt.Fprintf(p.w, ", %d total (%.1f%%) in %s\n", r.Total, r.SuccessRate, formatDuration(r.Duration))

	failed := r.FailedTests()
	if len(failed) > 0 {
		p.colors.red.Fprintln(p.w, "Failed tests:")
		for _, t := range failed {
			fmt.Fprintf(p.w, "  • %s.%s: %s\n", t.Class, t.Name, t.ErrorMessage)
		}
	}

	switch {
	case r.AllPassed:
		p.colors.green.Fprintln(p.w, "✓ All tests passed!")
	case r.Total == 0:
		p.colors.yellow.Fprintln(p.w, "✗ No tests were run")
	default:
		p.colors.red.Fprintf(p.w, "✗ %d test(s) failed\n", r.Failed)
	}
}

// Table renders every test of a sealed suite as a table grouped by class.
func (p *Printer) Table(suite *result.Suite) {
	r := exporter.NewReport(suite)

	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetTitle(fmt.Sprintf("Test results (%s)", formatDuration(r.Duration)))
	t.AppendHeader(table.Row{"Class", "Test", "Duration", "Status", "Error"})
	t.SetColumnConfigs(
		[]table.ColumnConfig{
			{Name: "Class", AutoMerge: true},
			{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
			{Name: "Duration", Align: text.AlignRight},
			{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		},
	)

	for _, c := range r.Classes {
		for _, tr := range c.Tests {
			t.AppendRow(
				table.Row{
					c.DisplayName,
					tr.Name,
					formatDuration(tr.Duration),
					exporter.StatusGlyph(tr.Status) + " " + tr.Status.String(),
					tr.ErrorMessage,
				},
			)
		}
		t.AppendSeparator()
	}

	t.AppendFooter(
		table.Row{
			"TOTAL",
			fmt.Sprintf("%d passed, %d failed, %d skipped", r.Passed, r.Failed, r.Skipped),
			formatDuration(r.Duration),
			fmt.Sprintf("%.1f%%", r.SuccessRate),
			"",
		},
	)

	t.SetStyle(table.StyleLight)
	if !p.settings.noColor {
		switch {
		case r.AllPassed:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		case r.Failed > 0:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		}
	}

	t.Render()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}
