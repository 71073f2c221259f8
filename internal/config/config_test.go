package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "", cfg.GetSimulatorBinary())
	assert.Equal(t, []string{"{map}", "{seed}"}, cfg.GetSimulatorArgs())
	assert.Equal(t, 120*time.Second, cfg.GetTimeout())
	assert.Equal(t, int64(42), cfg.GetSeed())
	assert.Equal(t, DefaultMapFile, cfg.GetMapFile())
	assert.Nil(t, cfg.GetExtraTerminators())
	assert.Equal(t, 3, cfg.GetMaxExamples())
	assert.Equal(t, 8, cfg.GetCellSize())
	assert.Equal(t, 200*time.Millisecond, cfg.GetFrameDelay())
	assert.Equal(t, "exploration.gif", cfg.GetGIFPath())
	assert.Equal(t, "", cfg.GetChartPath())
	assert.Equal(t, "", cfg.GetDBPath())
}

func TestGetSimulatorArgsReturnsCopy(t *testing.T) {
	cfg := Empty()
	args := cfg.GetSimulatorArgs()
	args[0] = "changed"
	assert.Equal(t, "{map}", DefaultArgs[0])
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "explore.toml", `
[simulator]
binary = "./run_simulation.sh"
args = ["--map_file", "{map}", "--seed", "{seed}"]
timeout = "30s"
seed = 7
map_file = "maps/simple_corridor.map"

[parser]
extra_terminators = ["Simulation "]
max_examples = 5

[render]
cell_size = 4
frame_delay_ms = 100
gif = "out/run.gif"
chart = "out/coverage.html"

[storage]
db_path = "runs.db"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./run_simulation.sh", cfg.GetSimulatorBinary())
	assert.Equal(t, []string{"--map_file", "{map}", "--seed", "{seed}"}, cfg.GetSimulatorArgs())
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
	assert.Equal(t, int64(7), cfg.GetSeed())
	assert.Equal(t, "maps/simple_corridor.map", cfg.GetMapFile())
	assert.Equal(t, []string{"Simulation "}, cfg.GetExtraTerminators())
	assert.Equal(t, 5, cfg.GetMaxExamples())
	assert.Equal(t, 4, cfg.GetCellSize())
	assert.Equal(t, 100*time.Millisecond, cfg.GetFrameDelay())
	assert.Equal(t, "out/run.gif", cfg.GetGIFPath())
	assert.Equal(t, "out/coverage.html", cfg.GetChartPath())
	assert.Equal(t, "runs.db", cfg.GetDBPath())
}

func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, "partial.toml", "[simulator]\nseed = 0\n\n[render]\ngif = \"\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.GetSeed(), "explicit zero must not fall back to the default")
	assert.Equal(t, "", cfg.GetGIFPath())
	assert.Equal(t, DefaultTimeout, cfg.GetTimeout())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "config.json", `{}`, ".toml extension"},
		{"bad syntax", "bad.toml", "[simulator\nseed = 1", "failed to parse"},
		{"unknown key", "typo.toml", "[render]\ncelsize = 3\n", "unknown config keys: render.celsize"},
		{"bad timeout", "t.toml", "[simulator]\ntimeout = \"soon\"\n", "simulator.timeout"},
		{"negative timeout", "t.toml", "[simulator]\ntimeout = \"-1s\"\n", "must be positive"},
		{"negative seed", "s.toml", "[simulator]\nseed = -3\n", "simulator.seed"},
		{"args without map", "a.toml", "[simulator]\nargs = [\"{seed}\"]\n", "{map} placeholder"},
		{"zero max examples", "p.toml", "[parser]\nmax_examples = 0\n", "max_examples"},
		{"empty terminator", "p.toml", "[parser]\nextra_terminators = [\"\"]\n", "empty prefixes"},
		{"huge cells", "r.toml", "[render]\ncell_size = 100\n", "cell_size"},
		{"tiny delay", "r.toml", "[render]\nframe_delay_ms = 1\n", "frame_delay_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigTooLarge(t *testing.T) {
	body := "# " + strings.Repeat("x", maxFileSize) + "\n"
	_, err := LoadConfig(writeConfig(t, "big.toml", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
