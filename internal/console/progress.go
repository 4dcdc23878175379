package console

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
)

var _ observer.Observer = (*Progress)(nil)

// Progress draws a progress bar sized on the first Progress event.
type Progress struct {
	w      io.Writer
	colors palette
	bar    *progressbar.ProgressBar

	passed int
	failed int
}

func NewProgress(w io.Writer, opts ...Option) *Progress {
	s := newSettings(opts)

	return &Progress{w: w, colors: newPalette(s.noColor)}
}

func (p *Progress) TestStarted(*result.Test) {}

func (p *Progress) TestFinished(t *result.Test) {
	switch t.Status() {
	case result.StatusPassed:
		p.passed++
	case result.StatusFailed, result.StatusTimeout:
		p.failed++
	}
}

func (p *Progress) Progress(completed, total int) {
	if total <= 0 {
		return
	}

	if p.bar == nil {
		p.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(p.describe()),
			progressbar.OptionSetTheme(
				progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
					BarStart:      "│",
					BarEnd:        "│",
				},
			),
			progressbar.OptionEnableColorCodes(false),
			progressbar.OptionOnCompletion(
				func() {
					fmt.Fprint(p.w, "\n")
				},
			),
		)
	}

	p.bar.Describe(p.describe())
	_ = p.bar.Set(completed)
}

// Finish completes the bar when one was drawn.
func (p *Progress) Finish() {
	if p.bar == nil || p.bar.IsFinished() {
		return
	}

	_ = p.bar.Finish()
}

func (p *Progress) describe() string {
	return p.colors.cyan.Sprint("Running tests ") +
		p.colors.green.Sprintf("[passed: %d", p.passed) +
		" | " +
		p.colors.red.Sprintf("failed: %d]", p.failed)
}
