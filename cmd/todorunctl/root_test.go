package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/robotomize/go-todorun/internal/harness"
)

type report struct {
	TotalTestCount int  `json:"totalTestCount"`
	PassedCount    int  `json:"passedCount"`
	FailedCount    int  `json:"failedCount"`
	SkippedCount   int  `json:"skippedCount"`
	AllTestsPassed bool `json:"allTestsPassed"`
	TestClasses    []struct {
		ClassName string `json:"className"`
		Tests     []struct {
			Name         string `json:"testName"`
			Status       string `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"tests"`
	} `json:"testClasses"`
}

func decodeReport(t *testing.T, b []byte) report {
	t.Helper()

	var r report
	require.NoError(t, json.Unmarshal(b, &r))

	return r
}

// baseArgs keeps the tests away from a .env in the working directory.
func baseArgs(t *testing.T, args ...string) []string {
	t.Helper()

	return append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "--no-progress", "--no-color"}, args...)
}

func TestExecute_InProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "reports", "result.json")
	metricsPath := filepath.Join(dir, "todorun.prom")

	var stdout, stderr bytes.Buffer
	code := execute(
		context.Background(),
		baseArgs(t, "-o", reportPath, "--metrics-file", metricsPath, "--log-level", "warn"),
		&stdout, &stderr,
	)
	require.Equal(t, exitPassed, code, stderr.String())
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), "All tests passed")

	b, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	r := decodeReport(t, b)
	require.Equal(t, 23, r.TotalTestCount)
	require.Equal(t, 22, r.PassedCount)
	require.Equal(t, 1, r.SkippedCount)
	require.True(t, r.AllTestsPassed)

	m, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(m), `todorun_suite_tests{result="passed"} 22`)
}

func TestExecute_Formats(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		format string
		prefix string
	}{
		{name: "test_json", format: "json", prefix: "{"},
		{name: "test_xml", format: "xml", prefix: "<?xml"},
		{name: "test_text", format: "text", prefix: "TodoList Automated Test Report"},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				var stdout, stderr bytes.Buffer
				code := execute(context.Background(), baseArgs(t, "-f", tc.format, "--log-level", "error"), &stdout, &stderr)
				require.Equal(t, exitPassed, code, stderr.String())
				require.True(t, bytes.HasPrefix(stdout.Bytes(), []byte(tc.prefix)), stdout.String())
			},
		)
	}
}

func TestExecute_Crash(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{name: "test_bad_format", args: []string{"-f", "html"}},
		{name: "test_bad_log_level", args: []string{"--log-level", "loud"}},
		{name: "test_missing_config", args: []string{"-c", "/nonexistent/todorun.yaml"}},
		{name: "test_unknown_flag", args: []string{"--bogus"}},
		{name: "test_unexpected_arg", args: []string{"everything"}},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				var stdout, stderr bytes.Buffer
				code := execute(context.Background(), baseArgs(t, tc.args...), &stdout, &stderr)
				require.Equal(t, exitCrash, code)
				require.Contains(t, stderr.String(), "Error:")
				require.Empty(t, stdout.String())
			},
		)
	}
}

func TestExecute_List(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"list"}, &stdout, &stderr)
	require.Equal(t, exitPassed, code, stderr.String())

	out := stdout.String()
	require.Contains(t, out, "TodoService tests (TodoServiceTests)\n")
	require.Contains(t, out, "  AddTodo_ValidTitle_ShouldSucceed")
	require.Contains(t, out, "Compatibility_DataFormat_ShouldSupportLegacy")
	require.Contains(t, out, "(disabled: legacy import format is not available in the in-memory store)")
	require.Contains(t, out, "23 tests\n")
}

func TestExecute_Version(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitPassed, execute(context.Background(), []string{"version"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "todorunctl version")
}

// scriptedRunner answers the list command with a listing and any other
// command with the run output.
type scriptedRunner struct {
	listing []string
	run     []string
	exit    int
}

func (r scriptedRunner) Run(_ context.Context, c harness.Command, onLine func(string)) (harness.Output, error) {
	if slices.Contains(c.Args, "--list-tests") {
		for _, line := range r.listing {
			onLine(line)
		}

		return harness.Output{}, nil
	}

	for _, line := range r.run {
		onLine(line)
	}

	return harness.Output{ExitCode: r.exit}, nil
}

func solutionDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TodoList.sln"), nil, 0o600))

	return dir
}

func TestExecute_External(t *testing.T) {
	t.Parallel()

	listing := []string{
		"The following Tests are available:",
		"    TodoList.Tests.TodoServiceTests.AddTodo_ValidTitle_ShouldSucceed",
		"    TodoList.Tests.TodoServiceTests.DeleteTodo_ExistingTodo_ShouldSucceed",
		"    TodoList.Tests.ViewModelTests.Refresh_ShouldReload",
	}

	testCases := []struct {
		name     string
		run      []string
		exit     int
		code     int
		expected map[string]string
	}{
		{
			name: "test_all_passed",
			run: []string{
				"  Passed AddTodo_ValidTitle_ShouldSucceed [PASS]",
				"  Passed DeleteTodo_ExistingTodo_ShouldSucceed [PASS]",
			},
			code: exitPassed,
			expected: map[string]string{
				"AddTodo_ValidTitle_ShouldSucceed":      "Passed",
				"DeleteTodo_ExistingTodo_ShouldSucceed": "Passed",
				"Refresh_ShouldReload":                  "Passed",
			},
		},
		{
			name: "test_failure_sets_exit_code",
			run: []string{
				"  Passed AddTodo_ValidTitle_ShouldSucceed [PASS]",
				"  Failed Refresh_ShouldReload [FAIL]",
			},
			exit: 1,
			code: exitFailed,
			expected: map[string]string{
				"AddTodo_ValidTitle_ShouldSucceed":      "Passed",
				"DeleteTodo_ExistingTodo_ShouldSucceed": "Passed",
				"Refresh_ShouldReload":                  "Failed",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				var stdout, stderr bytes.Buffer
				code := execute(
					context.Background(),
					baseArgs(t, "external", "--log-level", "error"),
					&stdout, &stderr,
					harness.WithRunner(scriptedRunner{listing: listing, run: tc.run, exit: tc.exit}),
					harness.WithRootDirs(solutionDir(t)),
				)
				require.Equal(t, tc.code, code, stderr.String())

				r := decodeReport(t, stdout.Bytes())

				got := make(map[string]string)
				for _, c := range r.TestClasses {
					for _, tr := range c.Tests {
						got[tr.Name] = tr.Status
					}
				}

				if diff := cmp.Diff(tc.expected, got); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}
}

func TestExecute_ExternalHarnessError(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := execute(
		context.Background(),
		baseArgs(t, "external"),
		&stdout, &stderr,
		harness.WithRunner(scriptedRunner{}),
		harness.WithRootDirs(t.TempDir()),
	)
	require.Equal(t, exitCrash, code)
	require.Contains(t, stderr.String(), "harness discover")
	require.Empty(t, stdout.String())
}

func TestExecute_ListExternal(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := execute(
		context.Background(),
		baseArgs(t, "list", "--external"),
		&stdout, &stderr,
		harness.WithRunner(
			scriptedRunner{listing: []string{"TodoList.Tests.A.One", "TodoList.Tests.A.Two", "TodoList.Tests.dll"}},
		),
		harness.WithRootDirs(solutionDir(t)),
	)
	require.Equal(t, exitPassed, code, stderr.String())
	require.Equal(t, "TodoList.Tests.A.One\nTodoList.Tests.A.Two\n2 tests\n", stdout.String())
}
