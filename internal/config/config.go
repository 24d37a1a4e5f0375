package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that decodes from strings like "30s" or "10m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", string(text))
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type DaemonConfig struct {
	Listen      string `toml:"listen"`
	DBPath      string `toml:"db_path"`
	StatePath   string `toml:"state_path"`
	LogLevel    string `toml:"log_level"`
	Bus         string `toml:"bus"`
	Locale      string `toml:"locale"`
	WatchLogind *bool  `toml:"watch_logind"`
	CDPURL      string `toml:"cdp_url"`
}

// PolicyConfig holds the nudge throttling and drift detection constants.
type PolicyConfig struct {
	Cooldown           Duration `toml:"cooldown"`
	DriftCheckThrottle Duration `toml:"drift_check_throttle"`
	SwitchWindow       Duration `toml:"switch_window"`
	SwitchThreshold    int      `toml:"switch_threshold"`
	PollInterval       Duration `toml:"poll_interval"`
	AwayTimeout        Duration `toml:"away_timeout"`
	MinTabAge          Duration `toml:"min_tab_age"`
	VerdictTimeout     Duration `toml:"verdict_timeout"`
	VisitLogSize       int      `toml:"visit_log_size"`
}

// ScrollConfig tunes the doom-scroll signature.
type ScrollConfig struct {
	ViewportMultiple   float64 `toml:"viewport_multiple"`
	MinRatio           float64 `toml:"min_ratio"`
	ExpansionThreshold int     `toml:"expansion_threshold"`
	ExpansionMultiple  float64 `toml:"expansion_multiple"`
}

type AIConfig struct {
	Enabled  *bool  `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
}

type NotifyConfig struct {
	Desktop    *bool    `toml:"desktop"`
	Expire     Duration `toml:"expire"`
	SurfaceTTL Duration `toml:"surface_ttl"`
}

type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	Policy PolicyConfig `toml:"policy"`
	Scroll ScrollConfig `toml:"scroll"`
	AI     AIConfig     `toml:"ai"`
	Notify NotifyConfig `toml:"notify"`
}

// SetDefault fills every unset value with the built-in default.
func (c *Config) SetDefault() {
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = "127.0.0.1:7878"
	}
	if c.Daemon.DBPath == "" {
		c.Daemon.DBPath = filepath.Join(dataDir(), "focuswarden.db")
	}
	if c.Daemon.StatePath == "" {
		c.Daemon.StatePath = filepath.Join(dataDir(), "state.json")
	}
	if c.Daemon.LogLevel == "" {
		c.Daemon.LogLevel = "info"
	}
	if c.Daemon.Bus == "" {
		c.Daemon.Bus = "session"
	}
	if c.Daemon.Locale == "" {
		c.Daemon.Locale = localeFromEnv()
	}
	if c.Daemon.WatchLogind == nil {
		defaultVal := true
		c.Daemon.WatchLogind = &defaultVal
	}

	if c.Policy.Cooldown == 0 {
		c.Policy.Cooldown = Duration(30 * time.Second)
	}
	if c.Policy.DriftCheckThrottle == 0 {
		c.Policy.DriftCheckThrottle = Duration(20 * time.Second)
	}
	if c.Policy.SwitchWindow == 0 {
		c.Policy.SwitchWindow = Duration(time.Minute)
	}
	if c.Policy.SwitchThreshold == 0 {
		c.Policy.SwitchThreshold = 10
	}
	if c.Policy.PollInterval == 0 {
		c.Policy.PollInterval = Duration(10 * time.Second)
	}
	if c.Policy.AwayTimeout == 0 {
		c.Policy.AwayTimeout = Duration(10 * time.Minute)
	}
	if c.Policy.MinTabAge == 0 {
		c.Policy.MinTabAge = Duration(5 * time.Second)
	}
	if c.Policy.VerdictTimeout == 0 {
		c.Policy.VerdictTimeout = Duration(20 * time.Second)
	}
	if c.Policy.VisitLogSize == 0 {
		c.Policy.VisitLogSize = 50
	}

	if c.Scroll.ViewportMultiple == 0 {
		c.Scroll.ViewportMultiple = 5
	}
	if c.Scroll.MinRatio == 0 {
		c.Scroll.MinRatio = 50
	}
	if c.Scroll.ExpansionThreshold == 0 {
		c.Scroll.ExpansionThreshold = 3
	}
	if c.Scroll.ExpansionMultiple == 0 {
		c.Scroll.ExpansionMultiple = c.Scroll.ViewportMultiple / 2
	}

	if c.AI.Enabled == nil {
		defaultVal := false
		c.AI.Enabled = &defaultVal
	}
	if c.AI.Endpoint == "" {
		c.AI.Endpoint = "http://localhost:11434"
	}
	if c.AI.Model == "" {
		c.AI.Model = "llama3.2"
	}

	if c.Notify.Desktop == nil {
		defaultVal := true
		c.Notify.Desktop = &defaultVal
	}
	if c.Notify.Expire == 0 {
		c.Notify.Expire = Duration(10 * time.Second)
	}
	if c.Notify.SurfaceTTL == 0 {
		c.Notify.SurfaceTTL = Duration(30 * time.Second)
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.SetDefault()
	return &c
}

// LoadConfigFromFile reads a TOML file. A missing file yields the defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	defer file.Close()

	var config Config
	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	config.SetDefault()
	return &config, nil
}

func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.SetDefault()
	return &config, nil
}

// DefaultPath is where the daemon and fwctl look for the config file.
func DefaultPath() string {
	if p := os.Getenv("FOCUSWARDEN_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "focuswarden", "config.toml")
}

func dataDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "focuswarden")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "focuswarden")
}

func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			return v
		}
	}
	return "en"
}
