package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Duration
		expectError bool
	}{
		{"Seconds", "30s", 30 * time.Second, false},
		{"Minutes", "10m", 10 * time.Minute, false},
		{"Compound", "1m30s", 90 * time.Second, false},
		{"Negative", "-5s", 0, true},
		{"Garbage", "soon", 0, true},
		{"Empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, d.Std())
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	config := Config{
		Policy: PolicyConfig{Cooldown: Duration(time.Minute)},
		Scroll: ScrollConfig{ViewportMultiple: 8},
	}

	config.SetDefault()

	assert.Equal(t, time.Minute, config.Policy.Cooldown.Std(), "explicit values are kept")
	assert.Equal(t, 20*time.Second, config.Policy.DriftCheckThrottle.Std())
	assert.Equal(t, time.Minute, config.Policy.SwitchWindow.Std())
	assert.Equal(t, 10, config.Policy.SwitchThreshold)
	assert.Equal(t, 10*time.Second, config.Policy.PollInterval.Std())
	assert.Equal(t, 10*time.Minute, config.Policy.AwayTimeout.Std())
	assert.Equal(t, 5*time.Second, config.Policy.MinTabAge.Std())
	assert.Equal(t, 50, config.Policy.VisitLogSize)
	assert.Equal(t, 50.0, config.Scroll.MinRatio)
	assert.Equal(t, 3, config.Scroll.ExpansionThreshold)
	assert.Equal(t, 4.0, config.Scroll.ExpansionMultiple, "expansion multiple follows the viewport multiple")
	assert.False(t, *config.AI.Enabled)
	assert.True(t, *config.Notify.Desktop)
	assert.True(t, *config.Daemon.WatchLogind)
	assert.Equal(t, "127.0.0.1:7878", config.Daemon.Listen)
}

func TestLoadConfigFromBytes(t *testing.T) {
	tomlData := `
[daemon]
listen = "127.0.0.1:9000"
locale = "zh-CN"

[policy]
cooldown = "45s"
switch_threshold = 12

[scroll]
viewport_multiple = 6.0
min_ratio = 40.0

[ai]
enabled = true
endpoint = "http://127.0.0.1:11434/v1/chat/completions"
model = "llama3.2"

[notify]
desktop = false
`

	cfg, err := LoadConfigFromBytes([]byte(tomlData))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Daemon.Listen)
	assert.Equal(t, "zh-CN", cfg.Daemon.Locale)
	assert.Equal(t, 45*time.Second, cfg.Policy.Cooldown.Std())
	assert.Equal(t, 12, cfg.Policy.SwitchThreshold)
	assert.Equal(t, 6.0, cfg.Scroll.ViewportMultiple)
	assert.Equal(t, 3.0, cfg.Scroll.ExpansionMultiple)
	assert.Equal(t, 40.0, cfg.Scroll.MinRatio)
	assert.True(t, *cfg.AI.Enabled)
	assert.Equal(t, "llama3.2", cfg.AI.Model)
	assert.False(t, *cfg.Notify.Desktop)
}

func TestLoadConfigFromBytes_InvalidDuration(t *testing.T) {
	_, err := LoadConfigFromBytes([]byte("[policy]\ncooldown = \"often\"\n"))
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	tomlData := `
[policy]
away_timeout = "15m"
poll_interval = "5s"
`
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Policy.AwayTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.Policy.PollInterval.Std())
	assert.Equal(t, 30*time.Second, cfg.Policy.Cooldown.Std())
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Policy, cfg.Policy)
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv("FOCUSWARDEN_CONFIG", "/tmp/fw.toml")
	assert.Equal(t, "/tmp/fw.toml", DefaultPath())
}
