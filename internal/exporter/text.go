package exporter

import (
	"fmt"
	"strings"

	"github.com/robotomize/go-todorun/internal/result"
)

const textTitle = "TodoList Automated Test Report"

// StatusGlyph is the marker used by the text report and the console.
func StatusGlyph(s result.Status) string {
	switch s {
	case result.StatusPassed:
		return "✅"
	case result.StatusFailed:
		return "❌"
	case result.StatusSkipped:
		return "⏭️"
	case result.StatusTimeout:
		return "⏱️"
	default:
		return "❓"
	}
}

func marshalText(r Report) ([]byte, error) {
	var b strings.Builder

	b.WriteString(textTitle + "\n")
	b.WriteString(strings.Repeat("=", len(textTitle)) + "\n\n")

	overall := "FAILED"
	if r.AllPassed {
		overall = "PASSED"
	}

	b.WriteString("Summary:\n")
	fmt.Fprintf(&b, "  Run ID:       %s\n", r.RunID)
	fmt.Fprintf(&b, "  Start time:   %s\n", formatTime(r.StartTime))
	fmt.Fprintf(&b, "  End time:     %s\n", formatTime(r.EndTime))
	fmt.Fprintf(&b, "  Duration:     %s\n", r.Duration)
	fmt.Fprintf(&b, "  Total:        %d\n", r.Total)
	fmt.Fprintf(&b, "  Passed:       %d %s\n", r.Passed, StatusGlyph(result.StatusPassed))
	fmt.Fprintf(&b, "  Failed:       %d %s\n", r.Failed, StatusGlyph(result.StatusFailed))
	fmt.Fprintf(&b, "  Skipped:      %d %s\n", r.Skipped, StatusGlyph(result.StatusSkipped))
	fmt.Fprintf(&b, "  Success rate: %.1f%%\n", r.SuccessRate)
	fmt.Fprintf(&b, "  Overall:      %s\n\n", overall)

	b.WriteString("Details:\n")
	b.WriteString("========\n")

	for _, c := range r.Classes {
		fmt.Fprintf(&b, "\n%s (%s):\n", c.DisplayName, c.Name)
		fmt.Fprintf(&b, "   Passed: %d, Failed: %d, Skipped: %d, Total: %d\n", c.Passed, c.Failed, c.Skipped, c.Total)

		for _, t := range c.Tests {
			fmt.Fprintf(
				&b, "   %s %s [%s] (%dms)\n", StatusGlyph(t.Status), t.Name, t.Status, t.Duration.Milliseconds(),
			)

			if t.DisplayName != "" && t.DisplayName != t.Name {
				fmt.Fprintf(&b, "      Display name: %s\n", t.DisplayName)
			}

			fmt.Fprintf(&b, "      Started: %s, finished: %s\n", formatTime(t.StartTime), formatTime(t.EndTime))

			if t.ErrorMessage != "" {
				fmt.Fprintf(&b, "      Error: %s\n", t.ErrorMessage)
			}

			if t.ScreenshotPath != "" {
				fmt.Fprintf(&b, "      Screenshot: %s\n", t.ScreenshotPath)
			}
		}
	}

	if failed := r.FailedTests(); len(failed) > 0 {
		b.WriteString("\nFailed tests:\n")
		b.WriteString("=============\n")

		for _, t := range failed {
			fmt.Fprintf(&b, "• %s.%s: %s\n", t.Class, t.Name, t.ErrorMessage)
		}
	}

	return []byte(b.String()), nil
}
