package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/robotomize/go-todorun/internal/exporter"
	"github.com/robotomize/go-todorun/internal/harness"
	"github.com/robotomize/go-todorun/internal/logging"
)

const envPrefix = "TODORUN_"

type Config struct {
	Format       string        `yaml:"format"`
	Output       string        `yaml:"output"`
	Verbose      bool          `yaml:"verbose"`
	Progress     bool          `yaml:"progress"`
	Artifacts    bool          `yaml:"artifacts"`
	ArtifactsDir string        `yaml:"artifacts_dir"`
	TestTimeout  time.Duration `yaml:"test_timeout"`
	MetricsFile  string        `yaml:"metrics_file"`

	Log     Log     `yaml:"log"`
	Harness Harness `yaml:"harness"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Harness struct {
	RootMarker      string   `yaml:"root_marker"`
	ListCommand     []string `yaml:"list_command"`
	RunCommand      []string `yaml:"run_command"`
	NamespacePrefix string   `yaml:"namespace_prefix"`
	ArtifactMarkers []string `yaml:"artifact_markers"`
	PinnedFailures  []string `yaml:"pinned_failures"`
	Protocol        string   `yaml:"protocol"`
	CancelPolicy    string   `yaml:"cancel_policy"`
}

func Default() Config {
	h := harness.DefaultConfig()

	return Config{
		Format:       string(exporter.FormatJSON),
		Progress:     true,
		ArtifactsDir: "screenshots",
		TestTimeout:  30 * time.Second,
		Log: Log{
			Level:  "info",
			Format: logging.FormatText,
		},
		Harness: Harness{
			RootMarker:      h.RootMarker,
			ListCommand:     h.ListCommand,
			RunCommand:      h.RunCommand,
			NamespacePrefix: h.NamespacePrefix,
			ArtifactMarkers: h.ArtifactMarkers,
			PinnedFailures:  h.PinnedFailures,
			Protocol:        string(h.Protocol),
			CancelPolicy:    string(h.CancelPolicy),
		},
	}
}

// Load layers the defaults, the YAML file at path, the dotenv file at envFile
// and finally TODORUN_* process environment variables. Empty paths are
// skipped. A missing dotenv file is not an error.
func Load(path, envFile string) (Config, error) {
	return load(path, envFile, os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config Load: %w", err)
		}

		if err = yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config Load: yaml.Unmarshal %s: %w", path, err)
		}
	}

	var dotenv map[string]string
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config Load: godotenv.Read %s: %w", envFile, err)
		}
		dotenv = m
	}

	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}

		v, ok := dotenv[key]

		return v, ok
	}

	if err := cfg.applyEnv(env); err != nil {
		return Config{}, fmt.Errorf("config Load: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := env(envPrefix + name); ok {
			*dst = v
		}
	}

	fields := func(name string, dst *[]string) {
		if v, ok := env(envPrefix + name); ok {
			*dst = strings.Fields(v)
		}
	}

	list := func(name string, dst *[]string) {
		if v, ok := env(envPrefix + name); ok {
			*dst = splitList(v)
		}
	}

	var errs []error

	boolean := func(name string, dst *bool) {
		if v, ok := env(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("FORMAT", &c.Format)
	str("OUTPUT", &c.Output)
	boolean("VERBOSE", &c.Verbose)
	boolean("PROGRESS", &c.Progress)
	boolean("ARTIFACTS", &c.Artifacts)
	str("ARTIFACTS_DIR", &c.ArtifactsDir)
	str("METRICS_FILE", &c.MetricsFile)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := env(envPrefix + "TEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTEST_TIMEOUT: %w", envPrefix, err))
		} else {
			c.TestTimeout = d
		}
	}

	str("HARNESS_ROOT_MARKER", &c.Harness.RootMarker)
	fields("HARNESS_LIST_COMMAND", &c.Harness.ListCommand)
	fields("HARNESS_RUN_COMMAND", &c.Harness.RunCommand)
	str("HARNESS_NAMESPACE_PREFIX", &c.Harness.NamespacePrefix)
	list("HARNESS_ARTIFACT_MARKERS", &c.Harness.ArtifactMarkers)
	list("HARNESS_PINNED_FAILURES", &c.Harness.PinnedFailures)
	str("HARNESS_PROTOCOL", &c.Harness.Protocol)
	str("HARNESS_CANCEL_POLICY", &c.Harness.CancelPolicy)

	return errors.Join(errs...)
}

// splitList splits a comma separated value, dropping empty items.
func splitList(v string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func (c Config) Validate() error {
	var errs []error

	if _, err := exporter.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if _, err := harness.ParseProtocol(c.Harness.Protocol); err != nil {
		errs = append(errs, err)
	}

	if _, err := harness.ParseCancelPolicy(c.Harness.CancelPolicy); err != nil {
		errs = append(errs, err)
	}

	if len(c.Harness.ListCommand) == 0 {
		errs = append(errs, errors.New("harness list_command is empty"))
	}

	if len(c.Harness.RunCommand) == 0 {
		errs = append(errs, errors.New("harness run_command is empty"))
	}

	if c.Harness.RootMarker == "" {
		errs = append(errs, errors.New("harness root_marker is empty"))
	}

	if c.Artifacts && c.ArtifactsDir == "" {
		errs = append(errs, errors.New("artifacts enabled without artifacts_dir"))
	}

	if c.TestTimeout < 0 {
		errs = append(errs, errors.New("test_timeout is negative"))
	}

	return errors.Join(errs...)
}

// HarnessConfig converts the validated harness section.
func (c Config) HarnessConfig() harness.Config {
	protocol, _ := harness.ParseProtocol(c.Harness.Protocol)
	policy, _ := harness.ParseCancelPolicy(c.Harness.CancelPolicy)

	return harness.Config{
		RootMarker:      c.Harness.RootMarker,
		ListCommand:     c.Harness.ListCommand,
		RunCommand:      c.Harness.RunCommand,
		NamespacePrefix: c.Harness.NamespacePrefix,
		ArtifactMarkers: c.Harness.ArtifactMarkers,
		PinnedFailures:  c.Harness.PinnedFailures,
		Protocol:        protocol,
		CancelPolicy:    policy,
	}
}
