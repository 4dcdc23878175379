package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robotomize/go-todorun/internal/catalog"
	"github.com/robotomize/go-todorun/internal/logging"
	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
)

// Capturer collects a failure artifact for a failed test and returns its path.
type Capturer interface {
	Capture(ctx context.Context, t *result.Test) (string, error)
}

type Option func(e *Engine)

func WithObserver(o observer.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

func WithCapturer(c Capturer) Option {
	return func(e *Engine) {
		e.capturer = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTestTimeout gives every body a context with a deadline. Bodies are never
// interrupted: a body that returns the deadline error once it has passed is
// recorded as Timeout. Zero disables the deadline.
func WithTestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.testTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs a catalog in-process, one test at a time.
type Engine struct {
	catalog  *catalog.Catalog
	observer observer.Observer
	capturer Capturer
	logger   *slog.Logger
	now      func() time.Time

	testTimeout time.Duration

	total     int
	completed int
}

func New(cat *catalog.Catalog, opts ...Option) *Engine {
	e := Engine{
		catalog:  cat,
		observer: observer.Nop{},
		logger:   logging.Discard(),
		now:      time.Now,
	}

	for _, o := range opts {
		o(&e)
	}

	return &e
}

// Run executes every class and every test. A failing test never stops the run.
// Cancellation is checked between tests; the tests that already ran are
// returned in a sealed suite together with ctx.Err().
func (e *Engine) Run(ctx context.Context) (*result.Suite, error) {
	suite := result.NewSuite(e.now())

	e.total = e.catalog.Total()
	e.completed = 0

	e.logger.Info("starting run", slog.String("run_id", suite.ID), slog.Int("tests", e.total))

	var runErr error
	for _, cls := range e.catalog.Classes() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if err := e.runClass(ctx, suite, cls); err != nil {
			runErr = err
			break
		}
	}

	if err := suite.Seal(e.now()); err != nil {
		return nil, fmt.Errorf("suite Seal: %w", err)
	}

	counts := suite.Counts()
	e.logger.Info(
		"run finished",
		slog.String("run_id", suite.ID),
		slog.Int("passed", counts.Passed),
		slog.Int("failed", counts.Failed),
		slog.Int("skipped", counts.Skipped),
		slog.Duration("duration", suite.Duration()),
	)

	return suite, runErr
}

func (e *Engine) runClass(ctx context.Context, suite *result.Suite, cls catalog.ClassSpec) error {
	classResult := result.NewClass(cls.Name, cls.DisplayName)
	if err := suite.AddClass(classResult); err != nil {
		return err
	}

	// Bodies and hooks never see the run's cancellation.
	hookCtx := context.WithoutCancel(ctx)
	logger := e.logger.With(slog.String("class", cls.Name))

	var initErr error
	if cls.Initialize != nil {
		if initErr = safeCall(hookCtx, cls.Initialize); initErr != nil {
			logger.Error("class initialize failed", slog.String("error", initErr.Error()))
		}
	}

	defer func() {
		if cls.Cleanup == nil {
			return
		}

		if err := safeCall(hookCtx, func(ctx context.Context) error {
			cls.Cleanup(ctx)
			return nil
		}); err != nil {
			logger.Error("class cleanup failed", slog.String("error", err.Error()))
		}
	}()

	for _, m := range cls.Methods {
		if err := ctx.Err(); err != nil {
			return err
		}

		tr := result.NewTest(cls.Name, m.Name, m.DisplayName)
		tr.Category = m.Category
		tr.Description = m.Description
		tr.ExpectedDuration = m.ExpectedDuration
		classResult.Add(tr)

		e.runMethod(hookCtx, logger, tr, m, initErr)

		e.completed++
		e.observer.Progress(e.completed, e.total)
	}

	return nil
}

func (e *Engine) runMethod(ctx context.Context, logger *slog.Logger, tr *result.Test, m catalog.MethodSpec, initErr error) {
	logger = logger.With(slog.String("test", m.Name))

	if !m.Enabled {
		e.complete(logger, tr, result.StatusSkipped, m.SkipReason)
		logger.Info("test skipped", slog.String("reason", m.SkipReason))
		return
	}

	if err := tr.Start(e.now()); err != nil {
		logger.Error("test start", slog.String("error", err.Error()))
	}
	e.observer.TestStarted(tr)

	err := initErr
	if err != nil {
		err = fmt.Errorf("initialize: %w", err)
	} else {
		err = e.callBody(ctx, m.Body)
	}

	if err == nil {
		e.complete(logger, tr, result.StatusPassed, "")
		logger.Info("test passed", slog.Duration("duration", tr.Duration()))
		return
	}

	if errors.Is(err, errTimedOut) {
		e.complete(logger, tr, result.StatusTimeout, err.Error())
		logger.Info("test timed out", slog.Duration("timeout", e.testTimeout))
		e.capture(ctx, logger, tr)
		return
	}

	e.complete(logger, tr, result.StatusFailed, err.Error())
	logger.Info("test failed", slog.String("error", err.Error()))

	e.capture(ctx, logger, tr)
}

func (e *Engine) complete(logger *slog.Logger, tr *result.Test, status result.Status, message string) {
	if err := tr.Complete(status, message, e.now()); err != nil {
		logger.Error("test complete", slog.String("error", err.Error()))
		return
	}

	e.observer.TestFinished(tr)
}

// capture is best effort: a capture error is logged and the status stays as is.
func (e *Engine) capture(ctx context.Context, logger *slog.Logger, tr *result.Test) {
	if e.capturer == nil {
		return
	}

	pth, err := e.capturer.Capture(ctx, tr)
	if err != nil {
		logger.Warn("failure capture", slog.String("error", err.Error()))
		return
	}

	if pth == "" {
		return
	}

	if err = tr.AttachScreenshot(pth); err != nil {
		logger.Warn("attach capture", slog.String("error", err.Error()))
		return
	}

	logger.Info("failure captured", slog.String("path", pth))
}

var errTimedOut = errors.New("test timed out")

func (e *Engine) callBody(ctx context.Context, body catalog.Body) error {
	if e.testTimeout <= 0 {
		return safeCall(ctx, body)
	}

	bodyCtx, cancel := context.WithTimeout(ctx, e.testTimeout)
	defer cancel()

	err := safeCall(bodyCtx, body)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && bodyCtx.Err() != nil {
		return fmt.Errorf("%w after %s: %w", errTimedOut, e.testTimeout, err)
	}

	return err
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx)
}
