package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/explore.replay/internal/db"
	"github.com/banshee-data/explore.replay/internal/explog"
	"github.com/banshee-data/explore.replay/internal/fsutil"
	"github.com/banshee-data/explore.replay/internal/monitoring"
	"github.com/banshee-data/explore.replay/internal/simrun"
	"github.com/banshee-data/explore.replay/internal/testutil"
)

const roomMap = "#####\n#...#\n#...#\n#####\n"

var roomLog = testutil.NewSimLog().
	Tick(0).
	Robot(0, 1, 1, "InitialWallFind").
	Map(0, "#####", "#R   ", "#    ", "     ").
	Line("Robot 0 moves from (1, 1) to (2, 1)").
	Tick(1).
	Robot(0, 2, 1, "InitialWallFind").
	Map(0, "#####", "#.R  ", "#..  ", "     ").
	Line("Simulation stopped after 2 ticks.").
	String()

type fakeSim struct {
	stdout  string
	err     error
	mapFile string
	seed    int64
}

func (f *fakeSim) Run(_ context.Context, mapFile string, seed int64) (simrun.Result, error) {
	f.mapFile, f.seed = mapFile, seed
	return simrun.Result{Stdout: f.stdout}, f.err
}

func setup(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	monitoring.Disable()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("maps/room.map", []byte(roomMap))
	return fsys
}

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunFromSimulator(t *testing.T) {
	fsys := setup(t)
	sim := &fakeSim{stdout: roomLog}
	store := openStore(t)
	p := New(fsys, sim, store)

	res, err := p.Run(context.Background(), Config{
		MapFile:   "maps/room.map",
		Seed:      42,
		GIFPath:   "out/run.gif",
		ChartPath: "out/coverage.html",
	})
	require.NoError(t, err)

	assert.Equal(t, "maps/room.map", sim.mapFile)
	assert.Equal(t, int64(42), sim.seed)
	assert.Len(t, res.Frames, 2)
	assert.Zero(t, res.Report.Total(), res.Report.Summary())
	assert.Equal(t, explog.Bounds{Width: 5, Height: 4}, res.Bounds)
	assert.Equal(t, []string{"out/run.gif", "out/coverage.html"}, res.Outputs)

	gifData, err := fsys.ReadFile("out/run.gif")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(gifData), "GIF89a"))
	html, err := fsys.ReadFile("out/coverage.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "Union")

	// Tick 1 carries 11 explored cells of the 20 known ones.
	assert.Equal(t, 11, res.Coverage.FinalUnion)
	assert.InDelta(t, 0.55, res.Coverage.FinalFraction, 1e-9)
	assert.NotEmpty(t, res.RunID)

	run, err := store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "simulator", run.Source)
	assert.Equal(t, res.Bounds, run.Bounds)
}

func TestRunFromCapturedLog(t *testing.T) {
	fsys := setup(t)
	fsys.AddFile("capture.log", []byte(roomLog))
	p := New(fsys, nil, nil)

	res, err := p.Run(context.Background(), Config{LogPath: "capture.log"})
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	assert.Empty(t, res.Outputs)
	// No map file: bounds come from the frames, which reach (4, 2).
	assert.Equal(t, explog.Bounds{Width: 5, Height: 3}, res.Bounds)
	assert.Equal(t, 11, res.Coverage.FinalUnion)
}

func TestRunEmptyFrameSequence(t *testing.T) {
	fsys := setup(t)
	for _, log := range []string{"", "=== Tick 0 ===\n", "Loading map...\nSimulation complete.\n"} {
		p := New(fsys, &fakeSim{stdout: log}, nil)
		_, err := p.Run(context.Background(), Config{MapFile: "maps/room.map", GIFPath: "out.gif"})
		assert.ErrorIs(t, err, ErrEmptyFrameSequence, "log %q", log)
	}
	assert.False(t, fsutil.Exists(fsys, "out.gif"))
}

func TestRunSimulatorFailures(t *testing.T) {
	fsys := setup(t)

	p := New(fsys, &fakeSim{err: fmt.Errorf("%w after 2m0s", simrun.ErrProcessTimeout)}, nil)
	_, err := p.Run(context.Background(), Config{MapFile: "maps/room.map"})
	assert.ErrorIs(t, err, simrun.ErrProcessTimeout)

	p = New(fsys, &fakeSim{stdout: roomLog, err: &simrun.ProcessFailure{ExitCode: 1, Stderr: "Failed to load map"}}, nil)
	_, err = p.Run(context.Background(), Config{MapFile: "maps/room.map"})
	var pf *simrun.ProcessFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, 1, pf.ExitCode)

	p = New(fsys, nil, nil)
	_, err = p.Run(context.Background(), Config{})
	testutil.AssertError(t, err)
}

func TestRunMissingLog(t *testing.T) {
	p := New(setup(t), nil, nil)
	_, err := p.Run(context.Background(), Config{LogPath: "missing.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read log")
}

func TestReplay(t *testing.T) {
	fsys := setup(t)
	store := openStore(t)
	p := New(fsys, &fakeSim{stdout: roomLog}, store)

	first, err := p.Run(context.Background(), Config{MapFile: "maps/room.map", Seed: 7})
	testutil.AssertNoError(t, err)

	res, err := p.Replay(context.Background(), first.RunID, Config{GIFPath: "replay.gif"})
	require.NoError(t, err)
	assert.Equal(t, first.Bounds, res.Bounds)
	assert.Equal(t, first.Coverage.FinalUnion, res.Coverage.FinalUnion)
	assert.True(t, fsutil.Exists(fsys, "replay.gif"))

	_, err = p.Replay(context.Background(), "nope", Config{})
	assert.ErrorIs(t, err, db.ErrRunNotFound)

	_, err = New(fsys, nil, nil).Replay(context.Background(), first.RunID, Config{})
	assert.Error(t, err)
}
