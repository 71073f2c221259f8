package monitoring

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(defaultLogf) })

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not have triggered callback")
}

func TestSetLoggerConcurrentWithLogf(t *testing.T) {
	t.Cleanup(func() { SetLogger(defaultLogf) })
	SetLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetLogger(func(string, ...interface{}) {})
		}()
		go func() {
			defer wg.Done()
			Logf("tick %d", i)
		}()
	}
	wg.Wait()
}

func TestComponentLoggerWritesStructuredFields(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	Configure(Options{Level: zerolog.DebugLevel, Writer: &buf})
	defer Configure(DefaultOptions())

	log := Component("explog")
	log.Warn().Int("line", 12).Msg("truncated row")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "explog", event["component"])
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, float64(12), event["line"])
	assert.Equal(t, "truncated row", event["message"])
}

func TestConfigureHonoursLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	Configure(Options{Level: zerolog.WarnLevel, Writer: &buf})
	defer Configure(DefaultOptions())

	log := Component("test")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestEnvOverrideLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	var buf bytes.Buffer
	Configure(Options{Level: zerolog.DebugLevel, Writer: &buf})
	defer Configure(DefaultOptions())

	log := Component("test")
	log.Warn().Msg("suppressed")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
		ok   bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisable(t *testing.T) {
	Disable()
	defer Configure(DefaultOptions())
	log := Component("quiet")
	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}
