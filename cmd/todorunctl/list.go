package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robotomize/go-todorun/internal/catalog"
	"github.com/robotomize/go-todorun/internal/harness"
	"github.com/robotomize/go-todorun/internal/suites"
)

func newListCmd(f *flags, hopts []harness.Option) *cobra.Command {
	var external bool

	cmd := &cobra.Command{
		Use:          "list",
		Short:        "list tests without running them",
		Long:         "Print the built-in test catalog, or with --external the tests discovered from the project's test runner",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if external {
				return listExternal(cmd, *f, hopts)
			}

			return listCatalog(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&external, "external", "x", false, "list the tests of the project's test runner")

	return cmd
}

func listCatalog(w io.Writer) error {
	cat, err := suites.Default()
	if err != nil {
		return crash(fmt.Errorf("suites Default: %w", err))
	}

	for _, cls := range cat.Classes() {
		_, _ = fmt.Fprintf(w, "%s (%s)\n", cls.DisplayName, cls.Name)
		for _, m := range cls.Methods {
			_, _ = fmt.Fprintf(w, "  %s\n", describeMethod(m))
		}
	}

	_, _ = fmt.Fprintf(w, "%d tests\n", cat.Total())

	return nil
}

func describeMethod(m catalog.MethodSpec) string {
	line := m.Name
	if m.Category != "" {
		line += " [" + m.Category + "]"
	}

	if !m.Enabled {
		line += " (disabled: " + m.SkipReason + ")"
	}

	return line
}

func listExternal(cmd *cobra.Command, f flags, hopts []harness.Option) error {
	s, err := newSession(cmd, f)
	if err != nil {
		return crash(err)
	}

	h := harness.New(s.cfg.HarnessConfig(), append([]harness.Option{harness.WithLogger(s.logger)}, hopts...)...)

	suite, err := h.Discover(cmd.Context())
	if err != nil {
		return crash(fmt.Errorf("harness Discover: %w", err))
	}

	w := cmd.OutOrStdout()
	for _, t := range suite.Tests() {
		_, _ = fmt.Fprintln(w, t.FullName())
	}

	_, _ = fmt.Fprintf(w, "%d tests\n", len(suite.Tests()))

	return nil
}
