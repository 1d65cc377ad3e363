// Package config loads the subset of $VTCODE_HOME/config.toml the engine
// core itself consults. The rest of config.toml is left to the (out of
// scope) configuration subsystem; this package only binds the keys the
// runloop, snapshot manager and PTY transport need defaults for.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the subset of config.toml the engine core binds directly.
type Config struct {
	ToolTimeout        time.Duration  `mapstructure:"tool_timeout"`
	MaxSteps           int            `mapstructure:"max_steps"`
	MaxToolOutputBytes int            `mapstructure:"max_tool_output_bytes"`
	Snapshot           SnapshotConfig `mapstructure:"snapshot"`
	Pty                PtyConfig      `mapstructure:"pty"`
}

type SnapshotConfig struct {
	RetentionCount int           `mapstructure:"retention_count"`
	RetentionAge   time.Duration `mapstructure:"retention_age"`
}

type PtyConfig struct {
	OutputCapBytes int `mapstructure:"output_cap_bytes"`
}

// Defaults mirrors the hardcoded fallbacks the engine used before a
// config.toml existed, so a missing file changes nothing.
func Defaults() Config {
	return Config{
		ToolTimeout:        5 * time.Minute,
		MaxSteps:           50,
		MaxToolOutputBytes: 256 * 1024,
		Snapshot: SnapshotConfig{
			RetentionCount: 50,
			RetentionAge:   30 * 24 * time.Hour,
		},
		Pty: PtyConfig{
			OutputCapBytes: 2 * 1024 * 1024,
		},
	}
}

// Home resolves $VTCODE_HOME, defaulting to ~/.vtcode.
func Home() string {
	if h := os.Getenv("VTCODE_HOME"); h != "" {
		return h
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".vtcode")
	}
	return ".vtcode"
}

// Path returns the config.toml path under Home().
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads config.toml via viper, falling back silently to Defaults()
// when the file does not exist. A malformed existing file is an error.
func Load() (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(Path())
	v.SetConfigType("toml")
	v.SetDefault("tool_timeout", cfg.ToolTimeout.String())
	v.SetDefault("max_steps", cfg.MaxSteps)
	v.SetDefault("max_tool_output_bytes", cfg.MaxToolOutputBytes)
	v.SetDefault("snapshot.retention_count", cfg.Snapshot.RetentionCount)
	v.SetDefault("snapshot.retention_age", cfg.Snapshot.RetentionAge.String())
	v.SetDefault("pty.output_cap_bytes", cfg.Pty.OutputCapBytes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Init writes a config.toml populated with Defaults() to Home(), creating
// the directory if needed. Returns the path written. Does not overwrite
// an existing file.
func Init() (string, error) {
	path := Path()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	d := Defaults()
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("tool_timeout", d.ToolTimeout.String())
	v.Set("max_steps", d.MaxSteps)
	v.Set("max_tool_output_bytes", d.MaxToolOutputBytes)
	v.Set("snapshot.retention_count", d.Snapshot.RetentionCount)
	v.Set("snapshot.retention_age", d.Snapshot.RetentionAge.String())
	v.Set("pty.output_cap_bytes", d.Pty.OutputCapBytes)

	if err := v.WriteConfigAs(path); err != nil {
		return "", err
	}
	return path, nil
}
