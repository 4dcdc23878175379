package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robotomize/go-todorun/internal/logging"
	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
)

type CancelPolicy string

const (
	// CancelKill terminates the child process.
	CancelKill CancelPolicy = "kill"
	// CancelDetach stops observing and leaves the child running.
	CancelDetach CancelPolicy = "detach"
)

func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch p := CancelPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CancelKill, CancelDetach:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cancel policy %q", s)
	}
}

const canceledMessage = "run canceled"

type Config struct {
	RootMarker      string
	ListCommand     []string
	RunCommand      []string
	NamespacePrefix string
	ArtifactMarkers []string
	PinnedFailures  []string
	Protocol        Protocol
	CancelPolicy    CancelPolicy
}

func DefaultConfig() Config {
	return Config{
		RootMarker:      "*.sln",
		ListCommand:     []string{"dotnet", "test", "--list-tests", "--verbosity", "quiet"},
		RunCommand:      []string{"dotnet", "test", "--verbosity", "normal"},
		ArtifactMarkers: []string{".dll", "(.NETCoreApp"},
		PinnedFailures: []string{
			"AddTodoItem_ValidTitle_ShouldAddItemAndClearTitle",
			"AddTodoItemSync_ValidTitle_ShouldAddItemAndClearTitle",
		},
		Protocol:     ProtocolText,
		CancelPolicy: CancelKill,
	}
}

type Option func(h *Harness)

func WithObserver(o observer.Observer) Option {
	return func(h *Harness) {
		h.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithRootDirs replaces the directories the project root is searched from.
func WithRootDirs(dirs ...string) Option {
	return func(h *Harness) {
		h.rootDirs = dirs
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		h.now = now
	}
}

func WithRunner(r CommandRunner) Option {
	return func(h *Harness) {
		h.runner = r
	}
}

// Harness runs an external test process and maps its output onto tests
// discovered by a separate listing invocation.
type Harness struct {
	cfg      Config
	runner   CommandRunner
	observer observer.Observer
	logger   *slog.Logger
	rootDirs []string
	now      func() time.Time

	mu        sync.Mutex
	unmatched []string
}

func New(cfg Config, opts ...Option) *Harness {
	h := Harness{
		cfg:      cfg,
		runner:   NewExecRunner(),
		observer: observer.Nop{},
		logger:   logging.Discard(),
		now:      time.Now,
	}

	for _, o := range opts {
		o(&h)
	}

	if h.rootDirs == nil {
		h.rootDirs = DefaultRootDirs()
	}

	return &h
}

// Discover lists the tests of the project and returns them in an unsealed
// suite, every test pending.
func (h *Harness) Discover(ctx context.Context) (*result.Suite, error) {
	c, err := h.command(PhaseDiscover, h.cfg.ListCommand)
	if err != nil {
		return nil, err
	}

	var listing strings.Builder
	out, err := h.runner.Run(
		ctx, c, func(line string) {
			listing.WriteString(line)
			listing.WriteByte('\n')
		},
	)
	if err = h.checkExit(PhaseDiscover, c, out, err); err != nil {
		return nil, err
	}

	tests, err := ParseTestList(
		strings.NewReader(listing.String()),
		Filter{NamespacePrefix: h.cfg.NamespacePrefix, ArtifactMarkers: h.cfg.ArtifactMarkers},
	)
	if err != nil {
		return nil, &HarnessError{Phase: PhaseDiscover, Err: err}
	}

	suite := result.NewSuite(h.now())
	for _, cls := range GroupByClass(tests) {
		if err = suite.AddClass(cls); err != nil {
			return nil, &HarnessError{Phase: PhaseDiscover, Err: err}
		}
	}

	h.logger.Info("tests discovered", slog.String("dir", c.Dir), slog.Int("tests", len(tests)))

	return suite, nil
}

// Run executes the run command, correlates its output with the suite's tests
// and seals the suite. Tests never mentioned in the output pass once the
// process exits. On cancellation the unfinished tests are skipped, the suite
// is sealed and ctx.Err() is returned.
func (h *Harness) Run(ctx context.Context, suite *result.Suite) error {
	c, err := h.command(PhaseRun, h.cfg.RunCommand)
	if err != nil {
		return err
	}

	tests := suite.Tests()
	tr := newTracker(
		tests,
		newDecoder(h.cfg.Protocol),
		NewCorrelator(tests, h.cfg.PinnedFailures, h.cfg.NamespacePrefix),
		h.observer,
		h.logger,
		h.now,
	)

	defer func() {
		h.mu.Lock()
		h.unmatched = tr.unmatchedFailures()
		h.mu.Unlock()
	}()

	runCtx := ctx
	if h.cfg.CancelPolicy == CancelDetach {
		runCtx = context.WithoutCancel(ctx)
	}

	type runResult struct {
		out Output
		err error
	}

	done := make(chan runResult, 1)
	go func() {
		out, err := h.runner.Run(runCtx, c, tr.handle)
		done <- runResult{out: out, err: err}
	}()

	h.logger.Info("test process started", slog.String("command", c.String()), slog.Int("tests", len(tests)))

	var res runResult
	select {
	case res = <-done:
	case <-ctx.Done():
		if h.cfg.CancelPolicy == CancelDetach {
			tr.close()
			h.logger.Warn("test process detached", slog.String("command", c.String()))
			return h.cancel(ctx, tr, suite)
		}
		res = <-done
	}

	if ctx.Err() != nil {
		tr.close()
		return h.cancel(ctx, tr, suite)
	}

	if err = h.checkExit(PhaseRun, c, res.out, res.err); err != nil {
		tr.close()
		return err
	}

	tr.finalize(result.StatusPassed, "")
	tr.close()

	if err = suite.Seal(h.now()); err != nil {
		return &HarnessError{Phase: PhaseRun, Err: err}
	}

	counts := suite.Counts()
	h.logger.Info(
		"test process finished",
		slog.Int("exit_code", res.out.ExitCode),
		slog.Int("passed", counts.Passed),
		slog.Int("failed", counts.Failed),
		slog.Int("unmatched_failures", len(tr.unmatchedFailures())),
	)

	return nil
}

// Execute discovers and runs in one go.
func (h *Harness) Execute(ctx context.Context) (*result.Suite, error) {
	suite, err := h.Discover(ctx)
	if err != nil {
		return nil, err
	}

	if err = h.Run(ctx, suite); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return suite, err
		}

		return nil, err
	}

	return suite, nil
}

// UnmatchedFailures returns the failure lines of the last run that matched no test.
func (h *Harness) UnmatchedFailures() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.unmatched))
	copy(out, h.unmatched)

	return out
}

func (h *Harness) cancel(ctx context.Context, tr *tracker, suite *result.Suite) error {
	tr.finalize(result.StatusSkipped, canceledMessage)

	if err := suite.Seal(h.now()); err != nil {
		return &HarnessError{Phase: PhaseRun, Err: err}
	}

	return ctx.Err()
}

func (h *Harness) command(phase Phase, argv []string) (Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Command{}, &HarnessError{Phase: phase, Err: errors.New("empty command")}
	}

	root, err := LocateRoot(h.cfg.RootMarker, h.rootDirs...)
	if err != nil {
		return Command{}, &HarnessError{Phase: phase, Err: err}
	}

	return Command{Name: argv[0], Args: argv[1:], Dir: root}, nil
}

// checkExit turns a failed start or a nonzero exit with stderr output into a
// HarnessError. A nonzero exit with a silent stderr is how runners report
// failing tests, so it is not an error.
func (h *Harness) checkExit(phase Phase, c Command, out Output, err error) error {
	if err != nil {
		return &HarnessError{Phase: phase, Err: err, Stderr: out.Stderr}
	}

	if out.ExitCode != 0 && strings.TrimSpace(out.Stderr) != "" {
		return &HarnessError{
			Phase:  phase,
			Err:    fmt.Errorf("%s: exit status %d", c, out.ExitCode),
			Stderr: out.Stderr,
		}
	}

	if out.ExitCode != 0 {
		h.logger.Info("process exited nonzero", slog.String("command", c.String()), slog.Int("exit_code", out.ExitCode))
	}

	return nil
}
