package result

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyCompleted  = errors.New("test already completed")
)

type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusPassed
	StatusFailed
	StatusSkipped
	StatusTimeout
)

// StatusPending is the name the harness uses for a discovered test that has not been observed yet.
const StatusPending = StatusNotStarted

var statusNames = map[Status]string{
	StatusNotStarted: "NotStarted",
	StatusRunning:    "Running",
	StatusPassed:     "Passed",
	StatusFailed:     "Failed",
	StatusSkipped:    "Skipped",
	StatusTimeout:    "Timeout",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped || s == StatusTimeout
}

func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}

	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for k, v := range statusNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}

	return fmt.Errorf("unknown status %q", string(b))
}

// Test is the outcome of one test method. The status only moves forward:
// NotStarted -> Running -> Passed|Failed|Skipped|Timeout.
type Test struct {
	Name             string
	DisplayName      string
	Class            string
	Category         string
	Description      string
	ExpectedDuration time.Duration

	status         Status
	start          time.Time
	end            time.Time
	errorMessage   string
	screenshotPath string
}

func NewTest(class, name, displayName string) *Test {
	if displayName == "" {
		displayName = name
	}

	return &Test{Class: class, Name: name, DisplayName: displayName}
}

// FullName returns class.name.
func (t *Test) FullName() string {
	if t.Class == "" {
		return t.Name
	}

	return t.Class + "." + t.Name
}

func (t *Test) Status() Status         { return t.status }
func (t *Test) StartTime() time.Time   { return t.start }
func (t *Test) EndTime() time.Time     { return t.end }
func (t *Test) ErrorMessage() string   { return t.errorMessage }
func (t *Test) ScreenshotPath() string { return t.screenshotPath }
func (t *Test) IsPending() bool        { return !t.status.IsTerminal() }

// Duration is zero until the test reaches a terminal status.
func (t *Test) Duration() time.Duration {
	if !t.status.IsTerminal() || t.end.Before(t.start) {
		return 0
	}

	return t.end.Sub(t.start)
}

// Start moves a not started test to Running.
func (t *Test) Start(now time.Time) error {
	if t.status != StatusNotStarted {
		return fmt.Errorf("%s: %s -> %s: %w", t.FullName(), t.status, StatusRunning, ErrInvalidTransition)
	}

	t.status = StatusRunning
	t.start = now

	return nil
}

// Complete records a terminal status. A test completed straight from NotStarted gets
// a zero-length run at now.
func (t *Test) Complete(status Status, message string, now time.Time) error {
	if t.status.IsTerminal() {
		return fmt.Errorf("%s is %s: %w", t.FullName(), t.status, ErrAlreadyCompleted)
	}

	if !status.IsTerminal() {
		return fmt.Errorf("%s: %s -> %s: %w", t.FullName(), t.status, status, ErrInvalidTransition)
	}

	if t.status == StatusNotStarted {
		t.start = now
	}

	t.status = status
	t.end = now

	if status != StatusPassed {
		t.errorMessage = message
	}

	return nil
}

// AttachScreenshot is the only mutation allowed after completion.
func (t *Test) AttachScreenshot(pth string) error {
	if !t.status.IsTerminal() {
		return fmt.Errorf("%s is %s: %w", t.FullName(), t.status, ErrInvalidTransition)
	}

	t.screenshotPath = pth

	return nil
}
