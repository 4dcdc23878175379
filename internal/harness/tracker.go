package harness

import (
	"log/slog"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
	"github.com/robotomize/go-todorun/internal/slice"
)

// tracker owns every status transition of one run. All of its methods take
// the same lock, so observers see events one at a time.
type tracker struct {
	mu sync.Mutex

	tests      []*result.Test
	decoder    decoder
	correlator *Correlator
	observer   observer.Observer
	logger     *slog.Logger
	now        func() time.Time

	closed    bool
	unmatched []string
}

func newTracker(
	tests []*result.Test, dec decoder, correlator *Correlator, obs observer.Observer, logger *slog.Logger,
	now func() time.Time,
) *tracker {
	return &tracker{
		tests:      tests,
		decoder:    dec,
		correlator: correlator,
		observer:   obs,
		logger:     logger,
		now:        now,
	}
}

// handle processes one stdout line. Lines arriving after close are ignored.
func (t *tracker) handle(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	ev := t.decoder.decode(stripansi.Strip(line))

	switch ev.kind {
	case eventStart:
		t.start(ev)
	case eventPass:
		t.outcome(ev, result.StatusPassed, false)
	case eventFail:
		t.outcome(ev, result.StatusFailed, true)
	case eventSkip:
		t.outcome(ev, result.StatusSkipped, false)
	case eventFinish:
		t.finalizeLocked(result.StatusPassed, "")
	}
}

func (t *tracker) start(ev event) {
	if ev.test != "" {
		if tr := t.resolve(ev, false); tr != nil {
			t.startTest(tr)
		}
		return
	}

	for _, tr := range t.tests {
		if tr.Status() == result.StatusNotStarted {
			t.startTest(tr)
		}
	}
}

func (t *tracker) startTest(tr *result.Test) {
	if err := tr.Start(t.now()); err != nil {
		t.logger.Debug("start ignored", slog.String("test", tr.FullName()), slog.String("error", err.Error()))
		return
	}

	t.observer.TestStarted(tr)
}

func (t *tracker) outcome(ev event, status result.Status, failed bool) {
	tr := t.resolve(ev, failed)
	if tr == nil {
		if failed {
			t.unmatched = append(t.unmatched, ev.line)
			t.logger.Warn("failure line matched no test", slog.String("line", ev.line))

			if u, ok := t.observer.(observer.UnmatchedObserver); ok {
				u.UnmatchedFailure(ev.line)
			}
		}
		return
	}

	if t.complete(tr, status, ev.message) {
		t.progress()
	}
}

func (t *tracker) resolve(ev event, failed bool) *result.Test {
	if ev.test != "" {
		if tr, ok := slice.Find(
			t.tests, func(tr *result.Test) bool {
				return tr.Name == ev.test && (ev.class == "" || tr.Class == ev.class)
			},
		); ok {
			return tr
		}

		marker := markerPass
		if failed {
			marker = markerFail
		}

		tr, tier := t.correlator.Match(ev.test+" "+marker, failed)
		t.logMatch(ev.line, tr, tier)

		return tr
	}

	tr, tier := t.correlator.Match(ev.line, failed)
	t.logMatch(ev.line, tr, tier)

	return tr
}

func (t *tracker) logMatch(line string, tr *result.Test, tier Tier) {
	if tr == nil {
		return
	}

	t.logger.Debug(
		"line correlated",
		slog.String("test", tr.FullName()),
		slog.String("tier", tier.String()),
		slog.String("line", line),
	)
}

// complete reports whether the test changed status. A result for a test that
// already finished keeps the first outcome.
func (t *tracker) complete(tr *result.Test, status result.Status, message string) bool {
	if err := tr.Complete(status, message, t.now()); err != nil {
		t.logger.Debug("outcome ignored", slog.String("test", tr.FullName()), slog.String("error", err.Error()))
		return false
	}

	t.observer.TestFinished(tr)

	return true
}

func (t *tracker) progress() {
	completed := slice.Count(t.tests, func(tr *result.Test) bool { return tr.Status().IsTerminal() })
	t.observer.Progress(completed, len(t.tests))
}

// finalize moves every unfinished test to status.
func (t *tracker) finalize(status result.Status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finalizeLocked(status, message)
}

func (t *tracker) finalizeLocked(status result.Status, message string) {
	var changed bool
	for _, tr := range t.tests {
		if !tr.Status().IsTerminal() && t.complete(tr, status, message) {
			changed = true
		}
	}

	if changed {
		t.progress()
	}
}

func (t *tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
}

func (t *tracker) unmatchedFailures() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.unmatched))
	copy(out, t.unmatched)

	return out
}
