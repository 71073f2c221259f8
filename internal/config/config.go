// Package config loads the explore-replay TOML configuration file.
//
// Every key is optional. Fields are pointers (or nil slices) so that an
// omitted key can be told apart from an explicit zero value; the Get*
// accessors supply the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default values used when a key is absent from the file.
const (
	DefaultTimeout      = 120 * time.Second
	DefaultSeed         = int64(42)
	DefaultMapFile      = "maps/sample_room.map"
	DefaultMaxExamples  = 3
	DefaultCellSize     = 8
	DefaultFrameDelayMS = 200
	DefaultGIFPath      = "exploration.gif"
)

// DefaultArgs is the simulator's own "<map_file> [seed]" argument form.
var DefaultArgs = []string{"{map}", "{seed}"}

// Config is the root of the configuration file.
type Config struct {
	Simulator SimulatorConfig `toml:"simulator"`
	Parser    ParserConfig    `toml:"parser"`
	Render    RenderConfig    `toml:"render"`
	Storage   StorageConfig   `toml:"storage"`
}

// SimulatorConfig describes how the external simulator is launched.
type SimulatorConfig struct {
	Binary  *string  `toml:"binary"`
	Args    []string `toml:"args"`    // {map} and {seed} are substituted
	Timeout *string  `toml:"timeout"` // duration string like "2m"
	Seed    *int64   `toml:"seed"`
	MapFile *string  `toml:"map_file"`
}

// ParserConfig tunes the log parser.
type ParserConfig struct {
	ExtraTerminators []string `toml:"extra_terminators"`
	MaxExamples      *int     `toml:"max_examples"`
}

// RenderConfig controls the animation and chart outputs. An empty path
// disables that output.
type RenderConfig struct {
	CellSize     *int    `toml:"cell_size"`
	FrameDelayMS *int    `toml:"frame_delay_ms"`
	GIF          *string `toml:"gif"`
	Chart        *string `toml:"chart"`
}

// StorageConfig points at the run database. An empty path disables it.
type StorageConfig struct {
	DBPath *string `toml:"db_path"`
}

// Empty returns a Config with nothing set; every accessor yields its default.
func Empty() *Config { return &Config{} }

const maxFileSize = 1 * 1024 * 1024 // 1MB

// LoadConfig reads and validates a TOML config file. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return nil, fmt.Errorf("config file must have .toml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	cfg := Empty()
	meta, err := toml.DecodeFile(cleanPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if t := c.Simulator.Timeout; t != nil && *t != "" {
		d, err := time.ParseDuration(*t)
		if err != nil {
			return fmt.Errorf("invalid simulator.timeout '%s': %w", *t, err)
		}
		if d <= 0 {
			return fmt.Errorf("simulator.timeout must be positive, got %s", d)
		}
	}
	if s := c.Simulator.Seed; s != nil && *s < 0 {
		return fmt.Errorf("simulator.seed must be non-negative, got %d", *s)
	}
	if args := c.Simulator.Args; args != nil && !containsPlaceholder(args, "{map}") {
		return fmt.Errorf("simulator.args must contain a {map} placeholder")
	}
	if n := c.Parser.MaxExamples; n != nil && *n < 1 {
		return fmt.Errorf("parser.max_examples must be at least 1, got %d", *n)
	}
	for _, term := range c.Parser.ExtraTerminators {
		if term == "" {
			return fmt.Errorf("parser.extra_terminators must not contain empty prefixes")
		}
	}
	if n := c.Render.CellSize; n != nil && (*n < 1 || *n > 64) {
		return fmt.Errorf("render.cell_size must be between 1 and 64, got %d", *n)
	}
	if n := c.Render.FrameDelayMS; n != nil && *n < 10 {
		return fmt.Errorf("render.frame_delay_ms must be at least 10, got %d", *n)
	}
	return nil
}

func containsPlaceholder(args []string, p string) bool {
	for _, a := range args {
		if strings.Contains(a, p) {
			return true
		}
	}
	return false
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// GetSimulatorBinary returns the simulator executable, or "" when unset.
func (c *Config) GetSimulatorBinary() string { return strOr(c.Simulator.Binary, "") }

// GetSimulatorArgs returns the argument template.
func (c *Config) GetSimulatorArgs() []string {
	src := c.Simulator.Args
	if src == nil {
		src = DefaultArgs
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// GetTimeout returns the simulator timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Simulator.Timeout == nil || *c.Simulator.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(*c.Simulator.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout // default on parse error
	}
	return d
}

// GetSeed returns the simulator seed.
func (c *Config) GetSeed() int64 {
	if c.Simulator.Seed == nil {
		return DefaultSeed
	}
	return *c.Simulator.Seed
}

// GetMapFile returns the map passed to the simulator.
func (c *Config) GetMapFile() string { return strOr(c.Simulator.MapFile, DefaultMapFile) }

// GetExtraTerminators returns the extra map-block terminators. nil means
// the parser's built-in defaults.
func (c *Config) GetExtraTerminators() []string { return c.Parser.ExtraTerminators }

// GetMaxExamples returns how many examples the anomaly report keeps per kind.
func (c *Config) GetMaxExamples() int {
	if c.Parser.MaxExamples == nil {
		return DefaultMaxExamples
	}
	return *c.Parser.MaxExamples
}

// GetCellSize returns the rendered size of one grid cell in pixels.
func (c *Config) GetCellSize() int {
	if c.Render.CellSize == nil {
		return DefaultCellSize
	}
	return *c.Render.CellSize
}

// GetFrameDelay returns the delay between animation frames.
func (c *Config) GetFrameDelay() time.Duration {
	if c.Render.FrameDelayMS == nil {
		return DefaultFrameDelayMS * time.Millisecond
	}
	return time.Duration(*c.Render.FrameDelayMS) * time.Millisecond
}

// GetGIFPath returns the animation output path.
func (c *Config) GetGIFPath() string { return strOr(c.Render.GIF, DefaultGIFPath) }

// GetChartPath returns the coverage chart output path; "" disables it.
func (c *Config) GetChartPath() string { return strOr(c.Render.Chart, "") }

// GetDBPath returns the run database path; "" disables persistence.
func (c *Config) GetDBPath() string { return strOr(c.Storage.DBPath, "") }
