package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate reports every nonsensical value at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json", "auto":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of console, json, auto", c.Log.Format))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log rotation limits must not be negative"))
	}

	if strings.TrimSpace(c.MusicBrainz.AppName) == "" {
		errs = append(errs, errors.New("musicbrainz.app_name is required"))
	}
	if strings.TrimSpace(c.MusicBrainz.Contact) == "" {
		errs = append(errs, errors.New("musicbrainz.contact is required by the MusicBrainz API"))
	}
	for key, raw := range map[string]string{
		"musicbrainz.base_url":      c.MusicBrainz.BaseURL,
		"musicbrainz.cover_art_url": c.MusicBrainz.CoverArtURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an http(s) URL", key, raw))
		}
	}
	if c.MusicBrainz.IntervalMS < 0 {
		errs = append(errs, errors.New("musicbrainz.interval_ms must not be negative"))
	}
	if c.MusicBrainz.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("musicbrainz.timeout_seconds must be positive"))
	}
	if c.MusicBrainz.RetryDelayMS < 0 {
		errs = append(errs, errors.New("musicbrainz.retry_delay_ms must not be negative"))
	}

	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Path) == "" {
		errs = append(errs, errors.New("cache.path is required when the cache is enabled"))
	}
	if c.Cache.NegativeTTLHours < 0 {
		errs = append(errs, errors.New("cache.negative_ttl_hours must not be negative"))
	}

	return errors.Join(errs...)
}
