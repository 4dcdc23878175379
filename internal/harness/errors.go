package harness

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRootNotFound means no directory above the start points holds the root marker.
var ErrRootNotFound = errors.New("project root not found")

type Phase string

const (
	PhaseDiscover Phase = "discover"
	PhaseRun      Phase = "run"
)

// HarnessError reports that the external process could not be started, or
// exited nonzero while writing to stderr.
type HarnessError struct {
	Phase  Phase
	Err    error
	Stderr string
}

func (e *HarnessError) Error() string {
	msg := fmt.Sprintf("harness %s: %v", e.Phase, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + firstLine(stderr)
	}

	return msg
}

func (e *HarnessError) Unwrap() error {
	return e.Err
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}

	return s
}
