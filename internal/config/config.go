// Package config loads ddp-inspect settings from defaults, an optional TOML
// file, DDPINSPECT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: DDPINSPECT_LOG_LEVEL sets log.level.
const EnvPrefix = "DDPINSPECT"

// Log contains configuration for log output.
type Log struct {
	Level      string `mapstructure:"level" toml:"level"`
	Format     string `mapstructure:"format" toml:"format"` // console, json or auto
	File       string `mapstructure:"file" toml:"file"`     // empty disables file logging
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
}

// MusicBrainz contains configuration for metadata lookup.
type MusicBrainz struct {
	AppName        string `mapstructure:"app_name" toml:"app_name"`
	Contact        string `mapstructure:"contact" toml:"contact"`
	BaseURL        string `mapstructure:"base_url" toml:"base_url"`
	CoverArtURL    string `mapstructure:"cover_art_url" toml:"cover_art_url"`
	IntervalMS     int    `mapstructure:"interval_ms" toml:"interval_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	RetryDelayMS   int    `mapstructure:"retry_delay_ms" toml:"retry_delay_ms"`
	Exhaustive     bool   `mapstructure:"exhaustive" toml:"exhaustive"`
}

// Cache contains configuration for the lookup result cache.
type Cache struct {
	Enabled          bool   `mapstructure:"enabled" toml:"enabled"`
	Path             string `mapstructure:"path" toml:"path"`
	NegativeTTLHours int    `mapstructure:"negative_ttl_hours" toml:"negative_ttl_hours"`
}

// Parse contains configuration for DDP parsing.
type Parse struct {
	Strict bool `mapstructure:"strict" toml:"strict"` // treat warnings as failure
}

// Config encapsulates all configuration values.
type Config struct {
	Log         Log         `mapstructure:"log" toml:"log"`
	MusicBrainz MusicBrainz `mapstructure:"musicbrainz" toml:"musicbrainz"`
	Cache       Cache       `mapstructure:"cache" toml:"cache"`
	Parse       Parse       `mapstructure:"parse" toml:"parse"`
}

// Interval is the minimum spacing between MusicBrainz requests.
func (m MusicBrainz) Interval() time.Duration {
	return time.Duration(m.IntervalMS) * time.Millisecond
}

// Timeout bounds one HTTP request.
func (m MusicBrainz) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// RetryDelay is the backoff before the single retry.
func (m MusicBrainz) RetryDelay() time.Duration {
	return time.Duration(m.RetryDelayMS) * time.Millisecond
}

// NegativeTTL is how long a no-match lookup stays cached.
func (c Cache) NegativeTTL() time.Duration {
	return time.Duration(c.NegativeTTLHours) * time.Hour
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"exhaustive": "musicbrainz.exhaustive",
	"strict":     "parse.strict",
}

// DefaultConfigPath returns ~/.config/ddp-inspect/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ddp-inspect/config.toml")
}

// Load builds the configuration. An empty path falls back to the default
// location; a missing file is not an error. Only flags in flags that the
// user actually set override file and environment values.
func Load(fsys afero.Fs, path string, flags *pflag.FlagSet) (*Config, string, error) {
	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigType("toml")
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}
	exists, err := afero.Exists(fsys, resolved)
	if err != nil {
		return nil, "", fmt.Errorf("stat config: %w", err)
	}
	if exists {
		v.SetConfigFile(resolved)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	} else {
		resolved = ""
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	v.SetDefault("musicbrainz.app_name", d.MusicBrainz.AppName)
	v.SetDefault("musicbrainz.contact", d.MusicBrainz.Contact)
	v.SetDefault("musicbrainz.base_url", d.MusicBrainz.BaseURL)
	v.SetDefault("musicbrainz.cover_art_url", d.MusicBrainz.CoverArtURL)
	v.SetDefault("musicbrainz.interval_ms", d.MusicBrainz.IntervalMS)
	v.SetDefault("musicbrainz.timeout_seconds", d.MusicBrainz.TimeoutSeconds)
	v.SetDefault("musicbrainz.retry_delay_ms", d.MusicBrainz.RetryDelayMS)
	v.SetDefault("musicbrainz.exhaustive", d.MusicBrainz.Exhaustive)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.negative_ttl_hours", d.Cache.NegativeTTLHours)

	v.SetDefault("parse.strict", d.Parse.Strict)
}

func (c *Config) normalize() error {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.MusicBrainz.BaseURL = strings.TrimRight(strings.TrimSpace(c.MusicBrainz.BaseURL), "/")
	c.MusicBrainz.CoverArtURL = strings.TrimRight(strings.TrimSpace(c.MusicBrainz.CoverArtURL), "/")

	var err error
	if c.Log.File, err = expandPath(c.Log.File); err != nil {
		return err
	}
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return err
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return expandPath(path)
	}
	return DefaultConfigPath()
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// Sample renders cfg as a commented TOML document.
func Sample(cfg Config) ([]byte, error) {
	body, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode sample config: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("# ddp-inspect configuration\n")
	b.WriteString("# Every value may be overridden with DDPINSPECT_<SECTION>_<KEY>,\n")
	b.WriteString("# for example DDPINSPECT_LOG_LEVEL=debug.\n\n")
	b.Write(body)
	return b.Bytes(), nil
}

// CreateSample writes the default configuration to path. An existing file is
// only replaced when overwrite is set.
func CreateSample(fsys afero.Fs, path string, overwrite bool) error {
	if !overwrite {
		exists, err := afero.Exists(fsys, path)
		if err != nil {
			return fmt.Errorf("stat config: %w", err)
		}
		if exists {
			return fmt.Errorf("config %s already exists", path)
		}
	}

	data, err := Sample(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
