package result

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robotomize/go-todorun/internal/slice"
)

var (
	ErrSealed     = errors.New("suite is sealed")
	ErrUnfinished = errors.New("suite has unfinished tests")
)

// Counts are always derived from the tests. Timeout is counted as failed.
type Counts struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Pending int
}

func (c Counts) add(o Counts) Counts {
	return Counts{
		Total:   c.Total + o.Total,
		Passed:  c.Passed + o.Passed,
		Failed:  c.Failed + o.Failed,
		Skipped: c.Skipped + o.Skipped,
		Pending: c.Pending + o.Pending,
	}
}

type Class struct {
	Name        string
	DisplayName string

	tests []*Test
}

func NewClass(name, displayName string) *Class {
	if displayName == "" {
		displayName = name
	}

	return &Class{Name: name, DisplayName: displayName}
}

func (c *Class) Add(t *Test) {
	c.tests = append(c.tests, t)
}

// Tests returns the tests in insertion order.
func (c *Class) Tests() []*Test {
	tests := make([]*Test, len(c.tests))
	copy(tests, c.tests)

	return tests
}

func (c *Class) Counts() Counts {
	statusFn := func(statuses ...Status) func(t *Test) bool {
		return func(t *Test) bool {
			for _, s := range statuses {
				if t.status == s {
					return true
				}
			}
			return false
		}
	}

	return Counts{
		Total:   len(c.tests),
		Passed:  slice.Count(c.tests, statusFn(StatusPassed)),
		Failed:  slice.Count(c.tests, statusFn(StatusFailed, StatusTimeout)),
		Skipped: slice.Count(c.tests, statusFn(StatusSkipped)),
		Pending: slice.Count(c.tests, statusFn(StatusNotStarted, StatusRunning)),
	}
}

// Suite is the root of a run. It is created at run start and sealed once
// every test has a terminal status.
type Suite struct {
	ID string

	classes []*Class
	start   time.Time
	end     time.Time
	sealed  bool
}

func NewSuite(now time.Time) *Suite {
	return &Suite{ID: uuid.New().String(), start: now}
}

func (s *Suite) AddClass(c *Class) error {
	if s.sealed {
		return fmt.Errorf("add class %s: %w", c.Name, ErrSealed)
	}

	s.classes = append(s.classes, c)

	return nil
}

func (s *Suite) Classes() []*Class {
	classes := make([]*Class, len(s.classes))
	copy(classes, s.classes)

	return classes
}

// Tests returns every test across classes in order.
func (s *Suite) Tests() []*Test {
	return slice.Flat(slice.Map(s.classes, func(c *Class) []*Test { return c.tests }))
}

func (s *Suite) Seal(now time.Time) error {
	if s.sealed {
		return ErrSealed
	}

	if pending := s.Counts().Pending; pending > 0 {
		return fmt.Errorf("%d pending: %w", pending, ErrUnfinished)
	}

	s.end = now
	s.sealed = true

	return nil
}

func (s *Suite) Sealed() bool         { return s.sealed }
func (s *Suite) StartTime() time.Time { return s.start }
func (s *Suite) EndTime() time.Time   { return s.end }

func (s *Suite) Duration() time.Duration {
	if !s.sealed {
		return 0
	}

	return s.end.Sub(s.start)
}

func (s *Suite) Counts() Counts {
	var total Counts
	for _, c := range s.classes {
		total = total.add(c.Counts())
	}

	return total
}

// SuccessRate is passed/total*100, or 0 for an empty suite.
func (s *Suite) SuccessRate() float64 {
	c := s.Counts()
	if c.Total == 0 {
		return 0
	}

	return float64(c.Passed) / float64(c.Total) * 100
}

func (s *Suite) AllPassed() bool {
	c := s.Counts()
	return c.Failed == 0 && c.Total > 0
}
