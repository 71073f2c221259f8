package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/explore.replay/internal/testutil"
)

var captured = testutil.NewSimLog().
	Tick(0).
	Robot(0, 1, 1, "InitialWallFind").
	Map(0, "###", "#R ", "#  ").
	Tick(1).
	Robot(0, 2, 1, "InitialWallFind").
	Map(0, "###", "#.R", "#..").
	Line("Simulation stopped after 2 ticks.").
	String()

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func runID(t *testing.T, stdout string) string {
	t.Helper()
	for _, line := range strings.Split(stdout, "\n") {
		if id, ok := strings.CutPrefix(line, "run: "); ok {
			return id
		}
	}
	t.Fatalf("no run id in output:\n%s", stdout)
	return ""
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI("-version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "explore-replay dev"), out)
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.toml", "[render]\ncell_size = 0\n")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-nope"}},
		{"positional", []string{"extra"}},
		{"no simulator", nil},
		{"bad timeout", []string{"-log", "x.log", "-timeout", "soon"}},
		{"invalid config", []string{"-config", bad, "-log", "x.log"}},
		{"list without db", []string{"-list"}},
		{"replay without db", []string{"-replay", "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestCapturedLogRunListReplay(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, dir, "run.log", captured)
	mapPath := writeFile(t, dir, "room.map", "###\n#..\n#..\n")
	dbPath := filepath.Join(dir, "runs.db")
	gifPath := filepath.Join(dir, "out", "run.gif")

	code, out, errOut := runCLI("-log", logPath, "-map", mapPath, "-gif", gifPath, "-db", dbPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "frames: 2\n")
	assert.Contains(t, out, "bounds: 3x3\n")
	assert.Contains(t, out, "anomalies: no anomalies\n")
	assert.FileExists(t, gifPath)
	id := runID(t, out)

	code, out, errOut = runCLI("-list", "-db", dbPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, id)
	assert.Contains(t, out, logPath)

	replayGIF := filepath.Join(dir, "replay.gif")
	code, out, errOut = runCLI("-replay", id, "-db", dbPath, "-gif", replayGIF)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "frames: 2\n")
	assert.FileExists(t, replayGIF)

	code, _, _ = runCLI("-replay", "missing", "-db", dbPath, "-gif", "")
	assert.Equal(t, exitFailure, code)
}

func TestEmptyLogFails(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, dir, "empty.log", "=== Tick 0 ===\n")

	code, _, _ := runCLI("-log", logPath, "-gif", "")
	assert.Equal(t, exitFailure, code)
}

func TestSimulatorFromConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	dir := t.TempDir()
	logPath := writeFile(t, dir, "sim.log", captured)
	cfgPath := writeFile(t, dir, "explore.toml", fmt.Sprintf(`
[simulator]
binary = "/bin/sh"
args = ["-c", "cat %s", "sim", "{map}", "{seed}"]
timeout = "10s"

[render]
gif = ""
chart = %q
`, logPath, filepath.Join(dir, "coverage.html")))

	code, out, errOut := runCLI("-config", cfgPath, "-map", filepath.Join(dir, "none.map"))
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "frames: 2\n")
	assert.FileExists(t, filepath.Join(dir, "coverage.html"))
	assert.NotContains(t, out, ".gif")
}

func TestSimulatorFailureExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "explore.toml", `
[simulator]
binary = "/bin/sh"
args = ["-c", "echo 'Failed to load map' >&2; exit 1", "sim", "{map}"]

[render]
gif = ""
`)
	code, _, _ := runCLI("-config", cfgPath)
	assert.Equal(t, exitFailure, code)
}
