// Package pipeline ties the replay tools together: obtain a simulator log,
// parse it into frames, check there is something to show, then render the
// animation and coverage chart and persist the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/banshee-data/explore.replay/internal/coverage"
	"github.com/banshee-data/explore.replay/internal/db"
	"github.com/banshee-data/explore.replay/internal/explog"
	"github.com/banshee-data/explore.replay/internal/fsutil"
	"github.com/banshee-data/explore.replay/internal/mapfile"
	"github.com/banshee-data/explore.replay/internal/monitoring"
	"github.com/banshee-data/explore.replay/internal/render"
	"github.com/banshee-data/explore.replay/internal/simrun"
)

// ErrEmptyFrameSequence means the log produced no frames, so there is
// nothing to visualize.
var ErrEmptyFrameSequence = errors.New("pipeline: no frames to visualize")

// Simulator produces a log for a map and seed. *simrun.Runner implements it.
type Simulator interface {
	Run(ctx context.Context, mapFile string, seed int64) (simrun.Result, error)
}

// Store persists runs. *db.DB implements it.
type Store interface {
	SaveRun(ctx context.Context, meta db.RunMeta, frames []explog.Frame, report *explog.Report) (string, error)
	GetRun(ctx context.Context, runID string) (db.Run, error)
	LoadFrames(ctx context.Context, runID string) ([]explog.Frame, error)
}

// Config selects the inputs and outputs of one run.
type Config struct {
	MapFile string // passed to the simulator; also fixes the world bounds
	Seed    int64
	LogPath string // when set, parse this capture instead of running the simulator

	GIFPath   string // "" disables the animation
	ChartPath string // "" disables the coverage chart

	Parser explog.Options
	Render render.Options
}

// Result is what a run produced.
type Result struct {
	RunID    string // empty when persistence is disabled
	Frames   []explog.Frame
	Report   *explog.Report // nil for replays
	Bounds   explog.Bounds
	Coverage coverage.Summary
	Outputs  []string
}

// Pipeline holds the collaborators. Sim may be nil when only captured logs
// are parsed; Store may be nil to disable persistence.
type Pipeline struct {
	FS    fsutil.FileSystem
	Sim   Simulator
	Store Store
	log   zerolog.Logger
}

// New returns a Pipeline reading and writing through fsys.
func New(fsys fsutil.FileSystem, sim Simulator, store Store) *Pipeline {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Pipeline{FS: fsys, Sim: sim, Store: store, log: monitoring.Component("pipeline")}
}

// Run executes one full pass. Simulator failures and timeouts are returned
// wrapped and abort the run before parsing; a log without frames yields
// ErrEmptyFrameSequence.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*Result, error) {
	text, source, err := p.readLog(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, report := explog.Parse(text, cfg.Parser)
	p.log.Info().
		Int("frames", store.Len()).
		Int("anomalies", report.Total()).
		Msg("log parsed")
	if report.Total() > 0 {
		p.log.Warn().Msg("parse anomalies:\n" + report.Summary())
	}
	if store.Len() == 0 {
		return nil, ErrEmptyFrameSequence
	}

	res := &Result{Frames: store.Frames(), Report: report}
	total, grid := p.resolveBounds(cfg, res)
	if err := p.writeOutputs(cfg, res, total, grid); err != nil {
		return res, err
	}

	if p.Store != nil {
		meta := db.RunMeta{Source: source, MapFile: cfg.MapFile, Seed: cfg.Seed, Bounds: res.Bounds}
		id, err := p.Store.SaveRun(ctx, meta, res.Frames, report)
		if err != nil {
			return res, fmt.Errorf("failed to persist run: %w", err)
		}
		res.RunID = id
		p.log.Info().Str("run_id", id).Msg("run stored")
	}
	return res, nil
}

// Replay re-renders a stored run. Bounds come from the stored run unless
// cfg.MapFile can be loaded.
func (p *Pipeline) Replay(ctx context.Context, runID string, cfg Config) (*Result, error) {
	if p.Store == nil {
		return nil, errors.New("pipeline: replay needs a run database")
	}
	run, err := p.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	frames, err := p.Store.LoadFrames(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if len(frames) == 0 {
		return nil, ErrEmptyFrameSequence
	}

	res := &Result{RunID: runID, Frames: frames}
	if cfg.MapFile == "" {
		cfg.MapFile = run.MapFile
	}
	total, grid := p.resolveBounds(cfg, res)
	if grid == nil && !run.Bounds.Empty() {
		res.Bounds, total = run.Bounds, run.Bounds.Area()
	}
	return res, p.writeOutputs(cfg, res, total, grid)
}

func (p *Pipeline) readLog(ctx context.Context, cfg Config) (text, source string, err error) {
	if cfg.LogPath != "" {
		data, err := p.FS.ReadFile(cfg.LogPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to read log: %w", err)
		}
		return string(data), cfg.LogPath, nil
	}
	if p.Sim == nil {
		return "", "", errors.New("pipeline: no simulator configured and no log given")
	}
	res, err := p.Sim.Run(ctx, cfg.MapFile, cfg.Seed)
	if err != nil {
		return "", "", fmt.Errorf("simulator run failed: %w", err)
	}
	return res.Stdout, "simulator", nil
}

// resolveBounds sets res.Bounds from the map file when it loads, else from
// the frames, and returns the number of explorable cells used for coverage
// fractions. grid is nil when no map was loaded.
func (p *Pipeline) resolveBounds(cfg Config, res *Result) (total int, grid *mapfile.Grid) {
	if cfg.MapFile != "" {
		g, err := mapfile.Load(p.FS, cfg.MapFile)
		if err == nil {
			res.Bounds = explog.Bounds{Width: g.Width, Height: g.Height}
			return g.KnownCells(), g
		}
		p.log.Warn().Err(err).Msg("map file unusable, deriving bounds from frames")
	}
	res.Bounds = explog.FrameBounds(res.Frames)
	return res.Bounds.Area(), nil
}

func (p *Pipeline) writeOutputs(cfg Config, res *Result, total int, grid *mapfile.Grid) error {
	series := coverage.Compute(res.Frames, res.Bounds)
	res.Coverage = coverage.Summarize(series, total)
	p.log.Info().
		Int("union_cells", res.Coverage.FinalUnion).
		Float64("fraction", res.Coverage.FinalFraction).
		Int("tick_to_half", res.Coverage.TickToHalf).
		Msg("coverage")

	if cfg.GIFPath != "" {
		opts := cfg.Render
		if opts.Truth == nil && grid != nil {
			opts.Truth = grid
		}
		err := p.writeFile(cfg.GIFPath, func(w io.Writer) error {
			return render.GIF(w, res.Frames, res.Bounds, opts)
		})
		if err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, cfg.GIFPath)
	}

	if cfg.ChartPath != "" {
		subtitle := fmt.Sprintf("%d frames, %d of %d cells", len(res.Frames), res.Coverage.FinalUnion, total)
		err := p.writeFile(cfg.ChartPath, func(w io.Writer) error {
			return render.CoverageChart(w, series, subtitle)
		})
		if err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, cfg.ChartPath)
	}
	return nil
}

func (p *Pipeline) writeFile(path string, fn func(io.Writer) error) (err error) {
	w, err := fsutil.CreateAll(p.FS, path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := fn(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	p.log.Info().Str("path", path).Msg("output written")
	return nil
}
