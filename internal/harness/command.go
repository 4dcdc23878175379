package harness

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	maxLineSize = 1 << 20
	waitDelay   = 2 * time.Second
)

type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current process environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Output is what is left of a finished process besides its stdout lines.
type Output struct {
	ExitCode int
	Stderr   string
}

// CommandRunner starts a process and feeds every stdout line to onLine as it
// arrives. A nonzero exit is reported in Output, not as an error. The error is
// reserved for processes that could not be started or read, and for ctx
// cancellation.
type CommandRunner interface {
	Run(ctx context.Context, c Command, onLine func(line string)) (Output, error)
}

func NewExecRunner() CommandRunner {
	return execRunner{}
}

type execRunner struct{}

// Run kills the process when ctx is canceled.
func (execRunner) Run(ctx context.Context, c Command, onLine func(line string)) (Output, error) {
	pr, pw := io.Pipe()
	stderr := bytes.NewBuffer(make([]byte, 0, 1024))

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader("")
	cmd.Stdout = pw
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("command Start %s: %w", c, err)
	}

	var (
		waitErr error
		wg      errgroup.Group
	)

	wg.Go(
		func() error {
			waitErr = cmd.Wait()
			return pw.Close()
		},
	)

	wg.Go(
		func() error {
			return scanLines(pr, onLine)
		},
	)

	pumpErr := wg.Wait()
	out := Output{Stderr: stderr.String()}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	if pumpErr != nil {
		return out, fmt.Errorf("read stdout %s: %w", c, pumpErr)
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	if waitErr != nil {
		return out, fmt.Errorf("command Wait %s: %w", c, waitErr)
	}

	return out, nil
}

// scanLines drains r even after a scan error so the writer never blocks.
func scanLines(r io.Reader, onLine func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		onLine(strings.TrimRight(scanner.Text(), "\r"))
	}

	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("bufio.Scanner.Err: %w", err)
	}

	return nil
}
