package observer

import (
	"github.com/robotomize/go-todorun/internal/result"
)

// Observer receives run events. Engine and harness call it from the goroutine
// that owns the run, never concurrently for the same run.
type Observer interface {
	TestStarted(t *result.Test)
	TestFinished(t *result.Test)
	Progress(completed, total int)
}

// UnmatchedObserver is implemented by observers that want failure lines the
// harness could not attribute to any known test.
type UnmatchedObserver interface {
	UnmatchedFailure(line string)
}

var _ Observer = Nop{}

type Nop struct{}

func (Nop) TestStarted(*result.Test)  {}
func (Nop) TestFinished(*result.Test) {}
func (Nop) Progress(int, int)         {}

// Multi fans every event out to each observer in order.
func Multi(observers ...Observer) Observer {
	list := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}

	return list
}

type multi []Observer

func (m multi) TestStarted(t *result.Test) {
	for _, o := range m {
		o.TestStarted(t)
	}
}

func (m multi) TestFinished(t *result.Test) {
	for _, o := range m {
		o.TestFinished(t)
	}
}

func (m multi) Progress(completed, total int) {
	for _, o := range m {
		o.Progress(completed, total)
	}
}

func (m multi) UnmatchedFailure(line string) {
	for _, o := range m {
		if u, ok := o.(UnmatchedObserver); ok {
			u.UnmatchedFailure(line)
		}
	}
}
