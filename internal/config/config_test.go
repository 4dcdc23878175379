package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/robotomize/go-todorun/internal/exporter"
	"github.com/robotomize/go-todorun/internal/harness"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	pth := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(pth, []byte(content), 0o600))

	return pth
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "json", cfg.Format)
	require.Equal(t, "screenshots", cfg.ArtifactsDir)
	require.Equal(t, 30*time.Second, cfg.TestTimeout)

	if diff := cmp.Diff(harness.DefaultConfig(), cfg.HarnessConfig()); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestLoad_Layers(t *testing.T) {
	t.Parallel()

	yamlFile := writeFile(
		t, "todorun.yaml", `
format: xml
verbose: true
test_timeout: 45s
log:
  level: debug
harness:
  root_marker: "*.slnx"
  run_command: ["dotnet", "test", "--logger", "console"]
  namespace_prefix: TodoList.Tests.
  protocol: json
`,
	)

	dotenvFile := writeFile(
		t, ".env", `
TODORUN_FORMAT=text
TODORUN_HARNESS_CANCEL_POLICY=detach
TODORUN_HARNESS_PINNED_FAILURES=One, Two,,
`,
	)

	testCases := []struct {
		name    string
		path    string
		envFile string
		env     map[string]string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "test_yaml_over_defaults",
			path: yamlFile,
			check: func(t *testing.T, cfg Config) {
				require.Equal(t, "xml", cfg.Format)
				require.True(t, cfg.Verbose)
				require.Equal(t, 45*time.Second, cfg.TestTimeout)
				require.Equal(t, "debug", cfg.Log.Level)
				require.Equal(t, "text", cfg.Log.Format)
				require.Equal(t, []string{"dotnet", "test", "--logger", "console"}, cfg.Harness.RunCommand)
				require.Equal(t, harness.DefaultConfig().ListCommand, cfg.Harness.ListCommand)
				require.Equal(t, harness.ProtocolJSON, cfg.HarnessConfig().Protocol)
			},
		},
		{
			name:    "test_dotenv_over_yaml",
			path:    yamlFile,
			envFile: dotenvFile,
			check: func(t *testing.T, cfg Config) {
				require.Equal(t, "text", cfg.Format)
				require.Equal(t, harness.CancelDetach, cfg.HarnessConfig().CancelPolicy)
				require.Equal(t, []string{"One", "Two"}, cfg.Harness.PinnedFailures)
			},
		},
		{
			name:    "test_process_env_over_dotenv",
			path:    yamlFile,
			envFile: dotenvFile,
			env: map[string]string{
				"TODORUN_FORMAT":               "json",
				"TODORUN_HARNESS_LIST_COMMAND": "mytest  --list",
				"TODORUN_PROGRESS":             "false",
			},
			check: func(t *testing.T, cfg Config) {
				require.Equal(t, "json", cfg.Format)
				require.Equal(t, []string{"mytest", "--list"}, cfg.Harness.ListCommand)
				require.False(t, cfg.Progress)
				require.Equal(t, harness.CancelDetach, cfg.HarnessConfig().CancelPolicy)
			},
		},
		{
			name:    "test_missing_dotenv_is_fine",
			envFile: filepath.Join(t.TempDir(), "absent.env"),
			check: func(t *testing.T, cfg Config) {
				require.Equal(t, Default(), cfg)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				cfg, err := load(tc.path, tc.envFile, envMap(tc.env))
				require.NoError(t, err)
				require.NoError(t, cfg.Validate())

				tc.check(t, cfg)
			},
		)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		path string
		env  map[string]string
	}{
		{
			name: "test_missing_yaml",
			path: filepath.Join(t.TempDir(), "absent.yaml"),
		},
		{
			name: "test_broken_yaml",
			path: writeFile(t, "broken.yaml", "format: [json"),
		},
		{
			name: "test_bad_bool",
			env:  map[string]string{"TODORUN_VERBOSE": "sometimes"},
		},
		{
			name: "test_bad_duration",
			env:  map[string]string{"TODORUN_TEST_TIMEOUT": "soon"},
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				_, err := load(tc.path, "", envMap(tc.env))
				require.Error(t, err)
			},
		)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(c *Config)
		target error
	}{
		{
			name:   "test_bad_format",
			mutate: func(c *Config) { c.Format = "html" },
			target: exporter.ErrUnsupportedFormat,
		},
		{
			name:   "test_bad_level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
		},
		{
			name:   "test_bad_protocol",
			mutate: func(c *Config) { c.Harness.Protocol = "xml" },
		},
		{
			name:   "test_bad_cancel_policy",
			mutate: func(c *Config) { c.Harness.CancelPolicy = "ignore" },
		},
		{
			name:   "test_empty_run_command",
			mutate: func(c *Config) { c.Harness.RunCommand = nil },
		},
		{
			name:   "test_artifacts_without_dir",
			mutate: func(c *Config) { c.Artifacts, c.ArtifactsDir = true, "" },
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				cfg := Default()
				tc.mutate(&cfg)

				err := cfg.Validate()
				require.Error(t, err)

				if tc.target != nil {
					require.ErrorIs(t, err, tc.target)
				}
			},
		)
	}
}
