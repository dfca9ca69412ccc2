// Package config handles TOML-based configuration loading and validation.
// TOML is parsed as data only; nothing in the file is executed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "flixclusive"

// UnlimitedCache disables cache eviction.
const UnlimitedCache int64 = -1

// Config holds all application configuration.
type Config struct {
	Base          string `toml:"base"`
	Player        string `toml:"player"`
	Provider      string `toml:"provider"`
	SubsLanguage  string `toml:"subs_language"`
	AudioLanguage string `toml:"audio_language"`
	Quality       string `toml:"quality"`
	History       bool   `toml:"history"`
	OwnerID       string `toml:"owner_id"`
	// CacheSizeMB caps the media cache; -1 means unlimited.
	CacheSizeMB    int64  `toml:"cache_size_mb"`
	DatabasePath   string `toml:"database_path"`
	LogLevel       string `toml:"log_level"`
	LogFile        string `toml:"log_file"`
	PollIntervalMs int    `toml:"poll_interval_ms"`
	Debug          bool   `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Base:           "flixhq.to",
		Player:         "mpv",
		Provider:       "Vidcloud",
		SubsLanguage:   "english",
		Quality:        "1080",
		History:        true,
		OwnerID:        "default",
		CacheSizeMB:    512,
		LogLevel:       "info",
		PollIntervalMs: 1000,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// DataDir returns the XDG data directory for the application.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at ConfigPath and merges it with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validPlayers := map[string]bool{
		"mpv": true, "vlc": true, "iina": true, "celluloid": true,
	}
	if !validPlayers[strings.ToLower(c.Player)] {
		return fmt.Errorf("unsupported player %q (valid: mpv, vlc, iina, celluloid)", c.Player)
	}

	validProviders := map[string]bool{
		"vidcloud": true, "upcloud": true, "akcloud": true,
	}
	if !validProviders[strings.ToLower(c.Provider)] {
		return fmt.Errorf("unsupported provider %q (valid: Vidcloud, UpCloud, AKCloud)", c.Provider)
	}

	validQualities := map[string]bool{
		"auto": true, "360": true, "480": true, "720": true, "1080": true,
	}
	if !validQualities[c.Quality] {
		return fmt.Errorf("unsupported quality %q (valid: auto, 360, 480, 720, 1080)", c.Quality)
	}

	if c.Base == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("owner_id cannot be empty")
	}
	if c.CacheSizeMB != UnlimitedCache && c.CacheSizeMB <= 0 {
		return fmt.Errorf("cache_size_mb must be positive or -1 for unlimited, got %d", c.CacheSizeMB)
	}
	if c.PollIntervalMs < 100 || c.PollIntervalMs > 10_000 {
		return fmt.Errorf("poll_interval_ms must be between 100 and 10000, got %d", c.PollIntervalMs)
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q (valid: trace, debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// QualityLabel returns the quality as providers label links ("1080p", "auto").
func (c *Config) QualityLabel() string {
	if c.Quality == "" || c.Quality == "auto" {
		return "auto"
	}
	return c.Quality + "p"
}

// PollInterval returns the playback polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// EffectiveLogLevel folds the debug flag into the log level.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug && c.LogLevel != "trace" {
		return "debug"
	}
	return c.LogLevel
}

// DatabaseFile resolves the watch-progress database path.
func (c *Config) DatabaseFile() (string, error) {
	return c.dataFile(c.DatabasePath, appName+".db")
}

// LogFilePath resolves the log file path.
func (c *Config) LogFilePath() (string, error) {
	return c.dataFile(c.LogFile, appName+".log")
}

func (c *Config) dataFile(configured, name string) (string, error) {
	if configured != "" {
		return expandHome(configured)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// expandHome resolves a leading ~ in path.
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
