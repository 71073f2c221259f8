// Package simrun launches the external exploration simulator and captures
// its output.
package simrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/explore.replay/internal/monitoring"
	"github.com/banshee-data/explore.replay/internal/timeutil"
)

// DefaultTimeout bounds a simulator run when Runner.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// waitDelay is how long Run waits for output pipes to drain after the
// process group has been killed.
const waitDelay = 2 * time.Second

var (
	// ErrProcessTimeout is returned when the simulator exceeds its timeout.
	ErrProcessTimeout = errors.New("simrun: simulator timed out")
	// ErrNoBinary is returned when no simulator executable is configured.
	ErrNoBinary = errors.New("simrun: no simulator binary configured")
)

// ProcessFailure reports a simulator that could not be started or exited
// with a non-zero status. ExitCode is -1 when the process never ran.
type ProcessFailure struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessFailure) Error() string {
	msg := fmt.Sprintf("simulator failed with exit code %d", e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + firstLine(s)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessFailure) Unwrap() error { return e.Err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Result is the captured outcome of one run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner runs the simulator binary with an argument template in which
// "{map}" and "{seed}" are replaced by the run's map file and seed.
type Runner struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	Dir     string // working directory; empty means the current one
	Clock   timeutil.Clock
}

// Command returns the argument vector for a run, binary first.
func (r *Runner) Command(mapFile string, seed int64) []string {
	repl := strings.NewReplacer("{map}", mapFile, "{seed}", strconv.FormatInt(seed, 10))
	argv := make([]string, 0, len(r.Args)+1)
	argv = append(argv, r.Binary)
	for _, a := range r.Args {
		argv = append(argv, repl.Replace(a))
	}
	return argv
}

// Run executes the simulator to completion and returns its captured
// output. Standard output is fully buffered before Run returns.
//
// On timeout the whole process group is killed and the error wraps
// ErrProcessTimeout. A non-zero exit is returned as *ProcessFailure with
// the partial Result still populated.
func (r *Runner) Run(ctx context.Context, mapFile string, seed int64) (Result, error) {
	if r.Binary == "" {
		return Result{}, ErrNoBinary
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clock := timeutil.OrReal(r.Clock)
	log := monitoring.Component("simrun")

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := r.Command(mapFile, seed)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Info().Strs("argv", argv).Dur("timeout", timeout).Msg("starting simulator")
	start := clock.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: clock.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		log.Error().Dur("timeout", timeout).Msg("simulator timed out")
		return res, fmt.Errorf("%w after %s", ErrProcessTimeout, timeout)
	case ctx.Err() != nil:
		return res, ctx.Err()
	case err != nil:
		log.Error().Err(err).Int("exit_code", res.ExitCode).Msg("simulator failed")
		return res, &ProcessFailure{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}

	log.Info().
		Int("stdout_bytes", len(res.Stdout)).
		Dur("duration", res.Duration).
		Msg("simulator finished")
	return res, nil
}
