package exporter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robotomize/go-todorun/internal/result"
	"github.com/robotomize/go-todorun/internal/slice"
)

// ErrUnsupportedFormat is wrapped by SerializationError.
var ErrUnsupportedFormat = errors.New("unsupported output format")

const timeLayout = "2006-01-02 15:04:05"

type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatText Format = "text"
)

var Formats = []Format{FormatJSON, FormatXML, FormatText}

type SerializationError struct {
	Format string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %q: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := slice.Find(Formats, func(v Format) bool { return v == f }); !ok {
		return "", &SerializationError{Format: s, Err: ErrUnsupportedFormat}
	}

	return f, nil
}

// Marshal renders a sealed suite. Nothing is returned unless the whole document rendered.
func Marshal(suite *result.Suite, format Format) ([]byte, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	report := NewReport(suite)

	var (
		b   []byte
		err error
	)

	switch format {
	case FormatJSON:
		b, err = marshalJSON(report)
	case FormatXML:
		b, err = marshalXML(report)
	case FormatText:
		b, err = marshalText(report)
	}

	if err != nil {
		return nil, &SerializationError{Format: string(format), Err: err}
	}

	return b, nil
}

// Report is the flattened, read-only view every format is rendered from.
type Report struct {
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	SuccessRate float64
	AllPassed   bool
	Classes     []ClassReport
}

type ClassReport struct {
	Name        string
	DisplayName string
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	Tests       []TestReport
}

type TestReport struct {
	Name           string
	DisplayName    string
	Class          string
	Category       string
	Status         result.Status
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	ErrorMessage   string
	ScreenshotPath string
}

// NewReport flattens a suite for rendering.
func NewReport(suite *result.Suite) Report {
	counts := suite.Counts()

	return Report{
		RunID:       suite.ID,
		StartTime:   suite.StartTime(),
		EndTime:     suite.EndTime(),
		Duration:    suite.Duration(),
		Total:       counts.Total,
		Passed:      counts.Passed,
		Failed:      counts.Failed,
		Skipped:     counts.Skipped,
		SuccessRate: suite.SuccessRate(),
		AllPassed:   suite.AllPassed(),
		Classes: slice.Map(
			suite.Classes(), func(c *result.Class) ClassReport {
				cc := c.Counts()
				return ClassReport{
					Name:        c.Name,
					DisplayName: c.DisplayName,
					Total:       cc.Total,
					Passed:      cc.Passed,
					Failed:      cc.Failed,
					Skipped:     cc.Skipped,
					Tests:       slice.Map(c.Tests(), newTestReport),
				}
			},
		),
	}
}

func newTestReport(t *result.Test) TestReport {
	return TestReport{
		Name:           t.Name,
		DisplayName:    t.DisplayName,
		Class:          t.Class,
		Category:       t.Category,
		Status:         t.Status(),
		StartTime:      t.StartTime(),
		EndTime:        t.EndTime(),
		Duration:       t.Duration(),
		ErrorMessage:   t.ErrorMessage(),
		ScreenshotPath: t.ScreenshotPath(),
	}
}

// FailedTests returns the failed tests in report order.
func (r Report) FailedTests() []TestReport {
	all := slice.Flat(slice.Map(r.Classes, func(c ClassReport) []TestReport { return c.Tests }))
	return slice.Filter(
		all, func(t TestReport) bool {
			return t.Status == result.StatusFailed || t.Status == result.StatusTimeout
		},
	)
}
