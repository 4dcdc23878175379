package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/robotomize/go-todorun/internal/harness"
)

func newExternalCmd(f *flags, hopts []harness.Option) *cobra.Command {
	return &cobra.Command{
		Use:          "external",
		Short:        "run the project's own test runner",
		Long:         "Discover and run the tests of the project's test runner, correlating its console output with the discovered tests",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExternal(cmd, *f, hopts)
		},
	}
}

func runExternal(cmd *cobra.Command, f flags, hopts []harness.Option) error {
	ctx := cmd.Context()

	s, err := newSession(cmd, f)
	if err != nil {
		return crash(err)
	}

	opts := append(
		[]harness.Option{
			harness.WithObserver(s.observer()),
			harness.WithLogger(s.logger),
		}, hopts...,
	)

	h := harness.New(s.cfg.HarnessConfig(), opts...)

	suite, runErr := h.Execute(ctx)
	if suite == nil {
		var hErr *harness.HarnessError
		if errors.As(runErr, &hErr) {
			s.logger.Error(
				"harness failed",
				slog.String("phase", string(hErr.Phase)),
				slog.String("stderr", hErr.Stderr),
			)
		}

		return crash(fmt.Errorf("harness Execute: %w", runErr))
	}

	if unmatched := h.UnmatchedFailures(); len(unmatched) > 0 {
		s.logger.Warn("failures matched no test", slog.Int("count", len(unmatched)))
	}

	return s.finish(ctx, suite, runErr)
}
