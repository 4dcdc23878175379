package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robotomize/go-todorun/internal/observer"
	"github.com/robotomize/go-todorun/internal/result"
)

const Namespace = "todorun"

var (
	_ observer.Observer          = (*Recorder)(nil)
	_ observer.UnmatchedObserver = (*Recorder)(nil)
)

// Recorder is an observer that keeps run metrics in its own registry, so
// several runs in one process never share counters.
type Recorder struct {
	registry *prometheus.Registry

	testsTotal        *prometheus.CounterVec
	testDuration      *prometheus.HistogramVec
	unmatchedFailures prometheus.Counter
	completed         prometheus.Gauge
	total             prometheus.Gauge
	suiteResults      *prometheus.GaugeVec
	suiteDuration     prometheus.Gauge
	successRate       prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		testsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tests_total",
				Help:      "Tests that reached a terminal status",
			}, []string{"class", "status"},
		),
		testDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "test_duration_seconds",
				Help:      "Duration of finished tests",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			}, []string{"class"},
		),
		unmatchedFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "unmatched_failures_total",
				Help:      "Failure lines of the external process that matched no known test",
			},
		),
		completed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "run_completed_tests",
				Help:      "Tests finished so far in the current run",
			},
		),
		total: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "run_total_tests",
				Help:      "Tests in the current run",
			},
		),
		suiteResults: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "suite_tests",
				Help:      "Tests of the sealed suite by result",
			}, []string{"result"},
		),
		suiteDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "suite_duration_seconds",
				Help:      "Wall time of the sealed suite",
			},
		),
		successRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "suite_success_rate",
				Help:      "Passed tests as a percentage of all tests",
			},
		),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) TestStarted(*result.Test) {}

func (r *Recorder) TestFinished(t *result.Test) {
	r.testsTotal.WithLabelValues(t.Class, t.Status().String()).Inc()
	r.testDuration.WithLabelValues(t.Class).Observe(t.Duration().Seconds())
}

func (r *Recorder) Progress(completed, total int) {
	r.completed.Set(float64(completed))
	r.total.Set(float64(total))
}

func (r *Recorder) UnmatchedFailure(string) {
	r.unmatchedFailures.Inc()
}

// RecordSuite publishes the rollup of a sealed suite.
func (r *Recorder) RecordSuite(s *result.Suite) {
	c := s.Counts()

	r.suiteResults.WithLabelValues("passed").Set(float64(c.Passed))
	r.suiteResults.WithLabelValues("failed").Set(float64(c.Failed))
	r.suiteResults.WithLabelValues("skipped").Set(float64(c.Skipped))
	r.suiteResults.WithLabelValues("total").Set(float64(c.Total))
	r.suiteDuration.Set(s.Duration().Seconds())
	r.successRate.Set(s.SuccessRate())
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (r *Recorder) WriteTextfile(pth string) error {
	if dir := filepath.Dir(pth); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("metrics WriteTextfile: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(pth, r.registry); err != nil {
		return fmt.Errorf("metrics WriteTextfile: %w", err)
	}

	return nil
}
