package harness

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is re-executed as the child
// process by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("TODORUN_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}

	if len(args) < 2 {
		os.Exit(2)
	}

	switch args[1] {
	case "list":
		fmt.Println("The following Tests are available:")
		fmt.Println("    Foo.Bar.Test1")
		fmt.Println("    Foo.Bar.Test2")
		fmt.Println("    Foo.Baz.Test3")
	case "run":
		fmt.Println("Starting: Foo")
		fmt.Println("\x1b[32m    Test1 [PASS]\x1b[0m")
		fmt.Println("    Foo.Baz.Test3 [FAIL]\r")
		os.Exit(1)
	case "crash":
		fmt.Fprintln(os.Stderr, "fatal: no project")
		os.Exit(4)
	case "hang":
		fmt.Println("Starting: Foo")
		time.Sleep(time.Minute)
	}

	os.Exit(0)
}

func helperCommand(scenario string) []string {
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--", scenario}
}

type helperRunner struct {
	CommandRunner
}

func (r helperRunner) Run(ctx context.Context, c Command, onLine func(string)) (Output, error) {
	c.Env = append(c.Env, "TODORUN_HELPER_PROCESS=1")
	return r.CommandRunner.Run(ctx, c, onLine)
}

func TestExecRunner_Lines(t *testing.T) {
	t.Parallel()

	argv := helperCommand("run")

	var lines []string
	out, err := NewExecRunner().Run(
		context.Background(),
		Command{Name: argv[0], Args: argv[1:], Env: []string{"TODORUN_HELPER_PROCESS=1"}},
		func(line string) { lines = append(lines, line) },
	)
	require.NoError(t, err)
	require.Equal(t, 1, out.ExitCode)
	require.Empty(t, strings.TrimSpace(out.Stderr))
	require.Contains(t, lines, "    Foo.Baz.Test3 [FAIL]")
}

func TestExecRunner_StartFailure(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner().Run(context.Background(), Command{Name: "todorun-no-such-binary"}, func(string) {})
	require.Error(t, err)
}

func TestExecRunner_KillOnCancel(t *testing.T) {
	t.Parallel()

	argv := helperCommand("hang")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var once bool

	go func() {
		<-started
		cancel()
	}()

	begin := time.Now()
	_, err := NewExecRunner().Run(
		ctx,
		Command{Name: argv[0], Args: argv[1:], Env: []string{"TODORUN_HELPER_PROCESS=1"}},
		func(string) {
			if !once {
				once = true
				close(started)
			}
		},
	)

	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(begin), 30*time.Second)
}

func TestHarness_RealProcess(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ListCommand = helperCommand("list")
	cfg.RunCommand = helperCommand("run")

	obs := &recordingObserver{}
	h := New(
		cfg,
		WithRunner(helperRunner{NewExecRunner()}),
		WithRootDirs(projectDir(t)),
		WithObserver(obs),
	)

	suite, err := h.Execute(context.Background())
	require.NoError(t, err)

	expected := statusByName{"Foo.Bar.Test1": "Passed", "Foo.Bar.Test2": "Passed", "Foo.Baz.Test3": "Failed"}
	require.Equal(t, expected, statuses(suite))
	require.Empty(t, h.UnmatchedFailures())
	require.Equal(t, [2]int{3, 3}, obs.progress[len(obs.progress)-1])
}

func TestHarness_RealProcessCrash(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ListCommand = helperCommand("crash")

	h := New(cfg, WithRunner(helperRunner{NewExecRunner()}), WithRootDirs(projectDir(t)))

	_, err := h.Discover(context.Background())

	var hErr *HarnessError
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, PhaseDiscover, hErr.Phase)
	require.Contains(t, hErr.Stderr, "fatal: no project")
	require.Contains(t, err.Error(), "exit status 4")
}
