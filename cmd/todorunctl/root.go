package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/robotomize/go-todorun/internal/config"
	"github.com/robotomize/go-todorun/internal/console"
	"github.com/robotomize/go-todorun/internal/engine"
	"github.com/robotomize/go-todorun/internal/exporter"
	"github.com/robotomize/go-todorun/internal/harness"
	"github.com/robotomize/go-todorun/internal/logging"
	"github.com/robotomize/go-todorun/internal/metrics"
	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
	"github.com/robotomize/go-todorun/internal/suites"
)

const (
	exitPassed = 0
	exitFailed = 1
	exitCrash  = 2
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}

	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func crash(err error) error {
	return &exitError{code: exitCrash, err: err}
}

type flags struct {
	configPath   string
	envFile      string
	verbose      bool
	output       string
	format       string
	artifacts    bool
	artifactsDir string
	metricsFile  string
	noProgress   bool
	noColor      bool
	logLevel     string
	logFormat    string
}

// execute runs the command line and returns the process exit code. hopts are
// appended to the harness options of the external commands.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, hopts ...harness.Option) int {
	cmd := newRootCmd(stdout, stderr, hopts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitPassed
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}

		return ee.code
	}

	// Flag and argument errors from cobra itself.
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)

	return exitCrash
}

func newRootCmd(stdout, stderr io.Writer, hopts []harness.Option) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "todorunctl",
		Long:          "Run the TodoList test suites and write a JSON, XML or text report",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInProcess(cmd, f)
		},
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVarP(
		&f.configPath,
		"config",
		"c",
		"",
		"path to a yaml config file: -c todorun.yaml",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.envFile,
		"env-file",
		"",
		".env",
		"dotenv file with TODORUN_* overrides, ignored when missing",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&f.verbose,
		"verbose",
		"v",
		false,
		"print every test and a result table",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.output,
		"output",
		"o",
		"",
		"report file path, stdout when empty: -o reports/result.json",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.format,
		"format",
		"f",
		"",
		"report format: json, xml or text",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&f.artifacts,
		"artifacts",
		"a",
		false,
		"write a failure note for every failed test",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.artifactsDir,
		"artifacts-dir",
		"",
		"",
		"directory for failure notes: --artifacts-dir screenshots",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.metricsFile,
		"metrics-file",
		"",
		"",
		"write prometheus metrics in the textfile format: --metrics-file todorun.prom",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&f.noProgress,
		"no-progress",
		"",
		false,
		"disable the progress bar",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&f.noColor,
		"no-color",
		"",
		false,
		"disable colored console output",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.logLevel,
		"log-level",
		"",
		"",
		"log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVarP(
		&f.logFormat,
		"log-format",
		"",
		"",
		"log format: text or json",
	)

	rootCmd.AddCommand(newExternalCmd(&f, hopts), newListCmd(&f, hopts), newVersionCmd())

	return rootCmd
}

// loadConfig layers the config file, dotenv and environment, then the flags
// the user actually set.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return config.Config{}, err
	}

	changed := func(name string) bool {
		return cmd.Flags().Changed(name)
	}

	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("format") {
		cfg.Format = f.format
	}
	if changed("artifacts") {
		cfg.Artifacts = f.artifacts
	}
	if changed("artifacts-dir") {
		cfg.ArtifactsDir = f.artifactsDir
		cfg.Artifacts = true
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if changed("no-progress") {
		cfg.Progress = !f.noProgress
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}

	if err = cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config Validate: %w", err)
	}

	return cfg, nil
}

// session holds what every run command shares: config, logger and the
// console and metrics observers.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	stdout   io.Writer
	printer  *console.Printer
	progress *console.Progress
	metrics  *metrics.Recorder
}

func newSession(cmd *cobra.Command, f flags) (*session, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("logging.New: %w", err)
	}

	s := session{
		cfg:     cfg,
		logger:  logger,
		stdout:  cmd.OutOrStdout(),
		printer: console.New(cmd.ErrOrStderr(), console.WithVerbose(cfg.Verbose), console.WithNoColor(f.noColor)),
		metrics: metrics.NewRecorder(),
	}

	// The bar and the per-test lines would overwrite each other.
	if cfg.Progress && !cfg.Verbose {
		s.progress = console.NewProgress(cmd.ErrOrStderr(), console.WithNoColor(f.noColor))
	}

	return &s, nil
}

func (s *session) observer() observer.Observer {
	observers := []observer.Observer{s.printer, s.metrics}
	if s.progress != nil {
		observers = append(observers, s.progress)
	}

	return observer.Multi(observers...)
}

// finish reports a sealed suite and maps it to the exit code. runErr is the
// cancellation error of a partial run, if any.
func (s *session) finish(ctx context.Context, suite *result.Suite, runErr error) error {
	if s.progress != nil {
		s.progress.Finish()
	}

	s.printer.Summary(suite)
	if s.cfg.Verbose {
		s.printer.Table(suite)
	}

	s.metrics.RecordSuite(suite)
	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.logger.Warn("metrics textfile", slog.String("error", err.Error()))
		}
	}

	format, err := exporter.ParseFormat(s.cfg.Format)
	if err != nil {
		return crash(err)
	}

	var opts []exporter.WriterOption
	if s.cfg.Output != "" {
		opts = append(opts, exporter.WriteToFile(s.cfg.Output))
	} else {
		opts = append(opts, exporter.WriteReportTo(s.stdout))
	}

	// A canceled run still gets its report.
	if err = exporter.NewWriter(opts...).WriteReport(context.WithoutCancel(ctx), suite, format); err != nil {
		return crash(fmt.Errorf("exporter WriteReport: %w", err))
	}

	if s.cfg.Output != "" {
		s.logger.Info("report written", slog.String("path", s.cfg.Output), slog.String("format", string(format)))
	}

	if runErr != nil {
		s.logger.Warn("run interrupted", slog.String("error", runErr.Error()))
		return &exitError{code: exitFailed}
	}

	if !suite.AllPassed() {
		return &exitError{code: exitFailed}
	}

	return nil
}

func runInProcess(cmd *cobra.Command, f flags) error {
	ctx := cmd.Context()

	s, err := newSession(cmd, f)
	if err != nil {
		return crash(err)
	}

	cat, err := suites.Default()
	if err != nil {
		return crash(fmt.Errorf("suites Default: %w", err))
	}

	opts := []engine.Option{
		engine.WithObserver(s.observer()),
		engine.WithLogger(s.logger),
		engine.WithTestTimeout(s.cfg.TestTimeout),
	}

	if s.cfg.Artifacts {
		opts = append(opts, engine.WithCapturer(engine.NewFileCapturer(s.cfg.ArtifactsDir)))
	}

	suite, runErr := engine.New(cat, opts...).Run(ctx)
	if suite == nil {
		return crash(fmt.Errorf("engine Run: %w", runErr))
	}

	return s.finish(ctx, suite, runErr)
}
