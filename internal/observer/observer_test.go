package observer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robotomize/go-todorun/internal/result"
)

type recorder struct {
	events []string
}

func (r *recorder) TestStarted(t *result.Test)  { r.events = append(r.events, "start:"+t.Name) }
func (r *recorder) TestFinished(t *result.Test) { r.events = append(r.events, "finish:"+t.Name) }
func (r *recorder) Progress(completed, total int) {
	r.events = append(r.events, "progress")
}

type unmatchedRecorder struct {
	recorder
	lines []string
}

func (u *unmatchedRecorder) UnmatchedFailure(line string) {
	u.lines = append(u.lines, line)
}

func TestMulti(t *testing.T) {
	t.Parallel()

	a := &recorder{}
	b := &unmatchedRecorder{}
	m := Multi(a, nil, b)

	tr := result.NewTest("C", "T", "")
	m.TestStarted(tr)
	m.TestFinished(tr)
	m.Progress(1, 1)

	u, ok := m.(UnmatchedObserver)
	if !ok {
		t.Fatalf("multi observer does not forward unmatched failures")
	}
	u.UnmatchedFailure("X [FAIL]")

	want := []string{"start:T", "finish:T", "progress"}
	if diff := cmp.Diff(want, a.events); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	if diff := cmp.Diff(want, b.events); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"X [FAIL]"}, b.lines); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}
