// Command explore-replay runs the exploration simulator (or reads a captured
// log), parses the log into per-tick frames and renders the run as an
// animated GIF plus an optional coverage chart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/banshee-data/explore.replay/internal/config"
	"github.com/banshee-data/explore.replay/internal/db"
	"github.com/banshee-data/explore.replay/internal/explog"
	"github.com/banshee-data/explore.replay/internal/fsutil"
	"github.com/banshee-data/explore.replay/internal/monitoring"
	"github.com/banshee-data/explore.replay/internal/pipeline"
	"github.com/banshee-data/explore.replay/internal/render"
	"github.com/banshee-data/explore.replay/internal/simrun"
	"github.com/banshee-data/explore.replay/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	configPath string
	mapFile    string
	seed       int64
	sim        string
	timeout    string
	logPath    string
	gifPath    string
	chartPath  string
	dbPath     string
	replay     string
	list       bool
	version    bool
	verbose    bool

	set map[string]bool // flags given explicitly on the command line
}

func newFlagSet(o *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("explore-replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "TOML config file")
	fs.StringVar(&o.mapFile, "map", config.DefaultMapFile, "Map file passed to the simulator")
	fs.Int64Var(&o.seed, "seed", config.DefaultSeed, "Simulator random seed")
	fs.StringVar(&o.sim, "sim", "", "Simulator binary")
	fs.StringVar(&o.timeout, "timeout", config.DefaultTimeout.String(), "Simulator timeout")
	fs.StringVar(&o.logPath, "log", "", "Parse this captured log instead of running the simulator")
	fs.StringVar(&o.gifPath, "gif", config.DefaultGIFPath, "Animation output path (empty disables)")
	fs.StringVar(&o.chartPath, "chart", "", "Coverage chart HTML output path")
	fs.StringVar(&o.dbPath, "db", "", "SQLite run database (empty disables persistence)")
	fs.StringVar(&o.replay, "replay", "", "Re-render a stored run by id")
	fs.BoolVar(&o.list, "list", false, "List stored runs and exit")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.BoolVar(&o.verbose, "v", false, "Debug logging")
	return fs
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet(&o, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return exitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("explore-replay"))
		return exitOK
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	logOpts := monitoring.DefaultOptions()
	logOpts.Writer = stderr
	if o.verbose {
		logOpts.Level = zerolog.DebugLevel
	}
	monitoring.Configure(logOpts)
	log := monitoring.Component("main")

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *db.DB
	if path := cfg.GetDBPath(); path != "" {
		store, err = db.Open(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to open run database")
			return exitFailure
		}
		defer store.Close()
	}

	if o.list {
		if store == nil {
			fmt.Fprintln(stderr, "-list needs -db")
			return exitUsage
		}
		if err := listRuns(ctx, stdout, store); err != nil {
			log.Error().Err(err).Msg("failed to list runs")
			return exitFailure
		}
		return exitOK
	}

	var sim pipeline.Simulator
	if bin := cfg.GetSimulatorBinary(); bin != "" {
		sim = &simrun.Runner{Binary: bin, Args: cfg.GetSimulatorArgs(), Timeout: cfg.GetTimeout()}
	} else if o.logPath == "" && o.replay == "" {
		fmt.Fprintln(stderr, "no simulator configured: set -sim, simulator.binary or -log")
		return exitUsage
	}

	// A nil *db.DB must not become a non-nil pipeline.Store.
	var p *pipeline.Pipeline
	if store != nil {
		p = pipeline.New(fsutil.OSFileSystem{}, sim, store)
	} else {
		p = pipeline.New(fsutil.OSFileSystem{}, sim, nil)
	}

	pcfg := pipelineConfig(cfg, o)
	var res *pipeline.Result
	if o.replay != "" {
		if store == nil {
			fmt.Fprintln(stderr, "-replay needs -db")
			return exitUsage
		}
		res, err = p.Replay(ctx, o.replay, pcfg)
	} else {
		res, err = p.Run(ctx, pcfg)
	}
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return exitFailure
	}

	printResult(stdout, res)
	return exitOK
}

// loadConfig reads the config file, if any, then applies explicitly given
// flags on top of it.
func loadConfig(o options) (*config.Config, error) {
	cfg := config.Empty()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.set["map"] {
		cfg.Simulator.MapFile = &o.mapFile
	}
	if o.set["seed"] {
		cfg.Simulator.Seed = &o.seed
	}
	if o.set["sim"] {
		cfg.Simulator.Binary = &o.sim
	}
	if o.set["timeout"] {
		cfg.Simulator.Timeout = &o.timeout
	}
	if o.set["gif"] {
		cfg.Render.GIF = &o.gifPath
	}
	if o.set["chart"] {
		cfg.Render.Chart = &o.chartPath
	}
	if o.set["db"] {
		cfg.Storage.DBPath = &o.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pipelineConfig(cfg *config.Config, o options) pipeline.Config {
	pc := pipeline.Config{
		Seed:      cfg.GetSeed(),
		LogPath:   o.logPath,
		GIFPath:   cfg.GetGIFPath(),
		ChartPath: cfg.GetChartPath(),
		Parser: explog.Options{
			ExtraTerminators: cfg.GetExtraTerminators(),
			MaxExamples:      cfg.GetMaxExamples(),
		},
		Render: render.Options{
			CellSize:   cfg.GetCellSize(),
			FrameDelay: cfg.GetFrameDelay(),
		},
	}
	// A replay falls back to the stored run's map unless one is named.
	if o.replay == "" || cfg.Simulator.MapFile != nil {
		pc.MapFile = cfg.GetMapFile()
	}
	return pc
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "frames: %d\n", len(res.Frames))
	fmt.Fprintf(w, "bounds: %dx%d\n", res.Bounds.Width, res.Bounds.Height)
	fmt.Fprintf(w, "coverage: %d cells (%.1f%%)\n", res.Coverage.FinalUnion, 100*res.Coverage.FinalFraction)
	if res.Report != nil {
		fmt.Fprintf(w, "anomalies: %s\n", res.Report.Summary())
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "run: %s\n", res.RunID)
	}
	for _, out := range res.Outputs {
		fmt.Fprintf(w, "wrote %s\n", out)
	}
}

func listRuns(ctx context.Context, w io.Writer, store *db.DB) error {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tSOURCE\tMAP\tSEED\tFRAMES\tROBOTS\tANOMALIES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Source, r.MapFile,
			r.Seed, r.FrameCount, r.RobotCount, r.AnomalyCount)
	}
	return tw.Flush()
}
