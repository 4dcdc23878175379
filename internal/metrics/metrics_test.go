package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
)

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func finished(t *testing.T, class, name string, status result.Status, d time.Duration) *result.Test {
	t.Helper()

	tr := result.NewTest(class, name, "")
	require.NoError(t, tr.Start(epoch))
	require.NoError(t, tr.Complete(status, "", epoch.Add(d)))

	return tr
}

func TestRecorder_Observer(t *testing.T) {
	t.Parallel()

	r := NewRecorder()

	var obs observer.Observer = observer.Multi(observer.Nop{}, r)

	obs.TestFinished(finished(t, "TodoServiceTests", "A", result.StatusPassed, 100*time.Millisecond))
	obs.TestFinished(finished(t, "TodoServiceTests", "B", result.StatusPassed, 200*time.Millisecond))
	obs.TestFinished(finished(t, "TodoServiceTests", "C", result.StatusFailed, time.Second))
	obs.Progress(3, 5)

	obs.(observer.UnmatchedObserver).UnmatchedFailure("Mystery [FAIL]")

	require.Equal(t, 2.0, testutil.ToFloat64(r.testsTotal.WithLabelValues("TodoServiceTests", "Passed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.testsTotal.WithLabelValues("TodoServiceTests", "Failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.unmatchedFailures))
	require.Equal(t, 3.0, testutil.ToFloat64(r.completed))
	require.Equal(t, 5.0, testutil.ToFloat64(r.total))
	require.Equal(t, 1, testutil.CollectAndCount(r.testDuration))
}

func TestRecorder_RecordSuite(t *testing.T) {
	t.Parallel()

	cls := result.NewClass("TodoServiceTests", "")
	cls.Add(finished(t, "TodoServiceTests", "A", result.StatusPassed, time.Second))
	cls.Add(finished(t, "TodoServiceTests", "B", result.StatusPassed, time.Second))
	cls.Add(finished(t, "TodoServiceTests", "C", result.StatusFailed, time.Second))
	cls.Add(finished(t, "TodoServiceTests", "D", result.StatusSkipped, 0))

	suite := result.NewSuite(epoch)
	require.NoError(t, suite.AddClass(cls))
	require.NoError(t, suite.Seal(epoch.Add(4*time.Second)))

	r := NewRecorder()
	r.RecordSuite(suite)

	testCases := []struct {
		label    string
		expected float64
	}{
		{label: "passed", expected: 2},
		{label: "failed", expected: 1},
		{label: "skipped", expected: 1},
		{label: "total", expected: 4},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, testutil.ToFloat64(r.suiteResults.WithLabelValues(tc.label)), tc.label)
	}

	require.Equal(t, 4.0, testutil.ToFloat64(r.suiteDuration))
	require.Equal(t, 50.0, testutil.ToFloat64(r.successRate))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.TestFinished(finished(t, "IntegrationTests", "A", result.StatusPassed, time.Millisecond))

	pth := filepath.Join(t.TempDir(), "nested", "todorun.prom")
	require.NoError(t, r.WriteTextfile(pth))

	b, err := os.ReadFile(pth)
	require.NoError(t, err)
	require.Contains(t, string(b), `todorun_tests_total{class="IntegrationTests",status="Passed"} 1`)
	require.Contains(t, string(b), "todorun_test_duration_seconds_bucket")
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	t.Parallel()

	a, b := NewRecorder(), NewRecorder()
	a.UnmatchedFailure("x")

	require.Equal(t, 1.0, testutil.ToFloat64(a.unmatchedFailures))
	require.Equal(t, 0.0, testutil.ToFloat64(b.unmatchedFailures))
	require.NotSame(t, a.Registry(), b.Registry())
}
