package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: Log{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		MusicBrainz: MusicBrainz{
			AppName:        "ddp-inspect",
			Contact:        "https://github.com/binaryphile/ddp-inspect",
			BaseURL:        "https://musicbrainz.org/ws/2",
			CoverArtURL:    "https://coverartarchive.org",
			IntervalMS:     1000,
			TimeoutSeconds: 10,
			RetryDelayMS:   2000,
		},
		Cache: Cache{
			Enabled:          true,
			Path:             defaultCachePath(),
			NegativeTTLHours: 7 * 24,
		},
	}
}

func defaultCachePath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "ddp-inspect", "lookups.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/ddp-inspect/lookups.json"
	}
	return filepath.Join(home, ".cache", "ddp-inspect", "lookups.json")
}
