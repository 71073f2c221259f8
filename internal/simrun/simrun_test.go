package simrun

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/explore.replay/internal/monitoring"
	"github.com/banshee-data/explore.replay/internal/timeutil"
)

func shellRunner(t *testing.T, script string) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	monitoring.Disable()
	return &Runner{
		Binary:  "/bin/sh",
		Args:    []string{"-c", script, "sim", "{map}", "{seed}"},
		Timeout: 10 * time.Second,
	}
}

func TestCommandExpandsPlaceholders(t *testing.T) {
	r := &Runner{Binary: "./run_simulation.sh", Args: []string{"--map_file", "{map}", "--seed", "{seed}"}}
	assert.Equal(t,
		[]string{"./run_simulation.sh", "--map_file", "maps/room.map", "--seed", "42"},
		r.Command("maps/room.map", 42))

	r = &Runner{Binary: "explorer", Args: []string{"{map}", "{seed}"}}
	assert.Equal(t, []string{"explorer", "a.map", "0"}, r.Command("a.map", 0))
}

func TestRunCapturesOutput(t *testing.T) {
	r := shellRunner(t, `echo "=== Tick 0 ==="; echo "map=$1 seed=$2"; echo warn >&2`)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	clock.SetStep(3 * time.Second)
	r.Clock = clock

	res, err := r.Run(context.Background(), "maps/a.map", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "=== Tick 0 ===\nmap=maps/a.map seed=7\n", res.Stdout)
	assert.Equal(t, "warn\n", res.Stderr)
	assert.Equal(t, 3*time.Second, res.Duration)
}

func TestRunRunsInDir(t *testing.T) {
	r := shellRunner(t, `pwd`)
	dir := t.TempDir()
	r.Dir = dir

	res, err := r.Run(context.Background(), "x.map", 1)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(filepath.Clean(res.Stdout[:len(res.Stdout)-1]))
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunNonZeroExit(t *testing.T) {
	r := shellRunner(t, `echo "partial"; echo "Failed to load map: $1" >&2; exit 3`)

	res, err := r.Run(context.Background(), "missing.map", 42)
	require.Error(t, err)

	var pf *ProcessFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, 3, pf.ExitCode)
	assert.Equal(t, "Failed to load map: missing.map\n", pf.Stderr)
	assert.Contains(t, err.Error(), "exit code 3: Failed to load map")
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, errors.Is(err, ErrProcessTimeout))
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	r := shellRunner(t, `sleep 30 & sleep 30; wait`)
	r.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, err := r.Run(context.Background(), "a.map", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunParentCancelled(t *testing.T) {
	r := shellRunner(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "a.map", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrProcessTimeout))
}

func TestRunMissingBinary(t *testing.T) {
	monitoring.Disable()
	r := &Runner{Binary: filepath.Join(t.TempDir(), "no-such-simulator"), Args: []string{"{map}"}}

	res, err := r.Run(context.Background(), "a.map", 1)
	var pf *ProcessFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, -1, pf.ExitCode)
	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = (&Runner{}).Run(context.Background(), "a.map", 1)
	assert.ErrorIs(t, err, ErrNoBinary)
}
