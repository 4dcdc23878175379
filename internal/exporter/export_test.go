package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/robotomize/go-todorun/internal/result"
)

var start = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func completed(class, name string, status result.Status, msg string, d time.Duration) *result.Test {
	tr := result.NewTest(class, name, name+" display")
	if status != result.StatusSkipped {
		_ = tr.Start(start)
	}
	_ = tr.Complete(status, msg, start.Add(d))
	return tr
}

func sampleSuite(t *testing.T, withFailure bool) *result.Suite {
	t.Helper()

	s := result.NewSuite(start)

	c := result.NewClass("TodoServiceTests", "TodoService tests")
	c.Add(completed("TodoServiceTests", "A", result.StatusPassed, "", 120*time.Millisecond))
	if withFailure {
		failed := completed("TodoServiceTests", "B", result.StatusFailed, "boom", 30*time.Millisecond)
		require.NoError(t, failed.AttachScreenshot("shots/B.txt"))
		c.Add(failed)
	}
	c.Add(completed("TodoServiceTests", "C", result.StatusSkipped, "flaky", 0))
	require.NoError(t, s.AddClass(c))

	other := result.NewClass("IntegrationTests", "")
	other.Add(completed("IntegrationTests", "D", result.StatusPassed, "", time.Second))
	require.NoError(t, s.AddClass(other))

	require.NoError(t, s.Seal(start.Add(2*time.Second)))

	return s
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{input: "json", expected: FormatJSON},
		{input: "XML", expected: FormatXML},
		{input: " text ", expected: FormatText},
		{input: "html", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(
			"test_"+tc.input, func(t *testing.T) {
				t.Parallel()

				got, err := ParseFormat(tc.input)
				if tc.wantErr {
					var sErr *SerializationError
					require.True(t, errors.As(err, &sErr))
					require.ErrorIs(t, err, ErrUnsupportedFormat)
					return
				}

				require.NoError(t, err)
				require.Equal(t, tc.expected, got)
			},
		)
	}
}

type counts struct {
	Total, Passed, Failed, Skipped int
}

func countsFromJSON(t *testing.T, b []byte) counts {
	t.Helper()

	var doc jsonSuite
	require.NoError(t, json.Unmarshal(b, &doc))

	return counts{doc.TotalTestCount, doc.PassedCount, doc.FailedCount, doc.SkippedCount}
}

func countsFromXML(t *testing.T, b []byte) counts {
	t.Helper()

	var doc xmlSuite
	require.NoError(t, xml.Unmarshal(b, &doc))

	return counts{doc.TotalTestCount, doc.PassedCount, doc.FailedCount, doc.SkippedCount}
}

func countsFromText(t *testing.T, b []byte) counts {
	t.Helper()

	field := func(name string) int {
		m := regexp.MustCompile(`(?m)^  ` + name + `:\s+(\d+)`).FindSubmatch(b)
		require.NotNil(t, m, "field %s", name)
		n, err := strconv.Atoi(string(m[1]))
		require.NoError(t, err)
		return n
	}

	return counts{field("Total"), field("Passed"), field("Failed"), field("Skipped")}
}

func TestMarshal_CountsAgreeAcrossFormats(t *testing.T) {
	t.Parallel()

	suite := sampleSuite(t, true)
	want := counts{Total: 4, Passed: 2, Failed: 1, Skipped: 1}

	parsers := map[Format]func(*testing.T, []byte) counts{
		FormatJSON: countsFromJSON,
		FormatXML:  countsFromXML,
		FormatText: countsFromText,
	}

	for format, parse := range parsers {
		t.Run(
			string(format), func(t *testing.T) {
				t.Parallel()

				b, err := Marshal(suite, format)
				require.NoError(t, err)

				if diff := cmp.Diff(want, parse(t, b)); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}
}

func TestMarshal_JSON(t *testing.T) {
	t.Parallel()

	b, err := Marshal(sampleSuite(t, true), FormatJSON)
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(b, []byte("{\n  \"runId\"")), "output is not indented")

	var doc jsonSuite
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.TestClasses, 2)
	require.InDelta(t, 50.0, doc.SuccessRate, 1e-9)
	require.False(t, doc.AllTestsPassed)

	tests := doc.TestClasses[0].Tests
	require.Equal(t, "Failed", tests[1].Status)
	require.Equal(t, "boom", tests[1].ErrorMessage)
	require.Equal(t, "shots/B.txt", tests[1].ScreenshotPath)
	require.Equal(t, "flaky", tests[2].ErrorMessage)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	first := raw["testClasses"].([]any)[0].(map[string]any)["tests"].([]any)[0].(map[string]any)
	_, hasErr := first["errorMessage"]
	_, hasShot := first["screenshotPath"]
	require.False(t, hasErr, "empty errorMessage must be omitted")
	require.False(t, hasShot, "empty screenshotPath must be omitted")
}

func TestMarshal_XML(t *testing.T) {
	t.Parallel()

	b, err := Marshal(sampleSuite(t, true), FormatXML)
	require.NoError(t, err)

	var doc xmlSuite
	require.NoError(t, xml.Unmarshal(b, &doc))

	require.Equal(t, "2024-05-01 10:00:00", doc.StartTime)
	require.Equal(t, "2024-05-01 10:00:02", doc.EndTime)
	require.Equal(t, "50.00", doc.SuccessRate)
	require.Len(t, doc.TestClasses, 2)

	cls := doc.TestClasses[0]
	want := xmlClass{
		Name:         "TodoServiceTests",
		DisplayName:  "TodoService tests",
		PassedCount:  1,
		FailedCount:  1,
		SkippedCount: 1,
		TotalCount:   3,
	}
	if diff := cmp.Diff(want, cls, cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".Tests" }, cmp.Ignore())); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	require.Equal(t, "boom", cls.Tests[1].ErrorMessage)
	require.Equal(t, "120ms", cls.Tests[0].Duration)
	require.Equal(t, "B display", cls.Tests[1].DisplayName)
	require.False(t, strings.Contains(string(b), "<ErrorMessage></ErrorMessage>"))
}

func TestMarshal_Text(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		withFailure bool
		wantRollup  bool
		wantOverall string
	}{
		{name: "test_with_failure", withFailure: true, wantRollup: true, wantOverall: "FAILED"},
		{name: "test_all_passed", withFailure: false, wantRollup: false, wantOverall: "PASSED"},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				b, err := Marshal(sampleSuite(t, tc.withFailure), FormatText)
				require.NoError(t, err)

				out := string(b)
				require.True(t, strings.HasPrefix(out, textTitle))
				require.Contains(t, out, "Overall:      "+tc.wantOverall)
				require.Equal(t, tc.wantRollup, strings.Contains(out, "Failed tests:"))
				require.Contains(t, out, "✅ A [Passed] (120ms)")
				require.Contains(t, out, "⏭️ C [Skipped]")

				if tc.withFailure {
					require.Contains(t, out, "• TodoServiceTests.B: boom")
					require.Contains(t, out, "Screenshot: shots/B.txt")
				}
			},
		)
	}
}

func TestMarshal_EmptySuite(t *testing.T) {
	t.Parallel()

	s := result.NewSuite(start)
	require.NoError(t, s.Seal(start))

	for _, f := range Formats {
		b, err := Marshal(s, f)
		require.NoError(t, err)
		require.NotEmpty(t, b)
	}
}

func TestMarshal_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	b, err := Marshal(sampleSuite(t, false), Format("yaml"))
	require.Nil(t, b)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriter_WriteReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	pth := filepath.Join(dir, "nested", "report.xml")

	console := &bytes.Buffer{}
	w := NewWriter(WriteToFile(pth), WriteReportTo(console))
	require.NoError(t, w.WriteReport(ctx, sampleSuite(t, true), FormatXML))

	b, err := os.ReadFile(pth)
	require.NoError(t, err)
	require.Equal(t, console.Bytes(), b)
	require.True(t, bytes.HasPrefix(b, []byte(xml.Header)))
}

func TestWriter_UnsupportedFormatWritesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pth := filepath.Join(t.TempDir(), "report.out")

	console := &bytes.Buffer{}
	err := NewWriter(WriteToFile(pth), WriteReportTo(console)).WriteReport(ctx, sampleSuite(t, false), Format("csv"))

	var sErr *SerializationError
	require.True(t, errors.As(err, &sErr))
	require.Zero(t, console.Len())

	_, statErr := os.Stat(pth)
	require.True(t, os.IsNotExist(statErr))
}

func TestWriter_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWriter().WriteReport(ctx, sampleSuite(t, false), FormatJSON)
	require.ErrorIs(t, err, context.Canceled)
}
