package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/binaryphile/ddp-inspect/internal/config"
	"github.com/binaryphile/ddp-inspect/internal/ddp"
	"github.com/binaryphile/ddp-inspect/internal/logging"
	"github.com/binaryphile/ddp-inspect/internal/lookupcache"
	"github.com/binaryphile/ddp-inspect/internal/musicbrainz"
)

// errStrict is returned when --strict is set and the parse produced issues.
var errStrict = errors.New("parse produced warnings (strict mode)")

// lookupService is the part of *musicbrainz.Client the CLI uses.
type lookupService interface {
	musicbrainz.Service
	GetReleaseTracks(ctx context.Context, mbid string) (*musicbrainz.Release, error)
	GetCoverArt(ctx context.Context, mbid string) ([]byte, string, error)
	Close() error
}

var _ lookupService = (*musicbrainz.Client)(nil)

type commandContext struct {
	configFlag *string
	flags      *pflag.FlagSet // the running command's flags, set before config loads
	fs         afero.Fs

	// newService builds the MusicBrainz client; tests swap it out.
	newService func(cfg *config.Config, logger *slog.Logger) lookupService

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		fs:         afero.NewOsFs(),
		newService: newMusicBrainzClient,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, err := config.Load(c.fs, path, c.flags)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Stderr:     cmd.ErrOrStderr(),
		})
	})
	return c.logger, c.loggerErr
}

// loggerValue returns the logger, or a no-op logger before setup.
func (c *commandContext) loggerValue() *slog.Logger {
	if c.logger == nil {
		return logging.NewNop()
	}
	return c.logger
}

// parseFolder loads and parses the DDP folder at dir.
func (c *commandContext) parseFolder(dir string) (*ddp.Parsed, error) {
	files, err := ddp.LoadFolder(c.fs, dir)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	c.loggerValue().Debug("loaded folder",
		logging.String(logging.FieldFolder, dir),
		logging.Int("files", len(files)),
		logging.Int64("bytes", total))
	return ddp.Parse(files, ddp.WithLogger(c.loggerValue()))
}

func (c *commandContext) openCache() *lookupcache.Cache {
	cfg := c.config
	if cfg == nil || !cfg.Cache.Enabled {
		return lookupcache.New(c.fs, "", c.loggerValue())
	}
	return lookupcache.New(c.fs, cfg.Cache.Path, c.loggerValue(),
		lookupcache.WithNegativeTTL(cfg.Cache.NegativeTTL()))
}

func newMusicBrainzClient(cfg *config.Config, logger *slog.Logger) lookupService {
	mb := cfg.MusicBrainz
	return musicbrainz.NewClient(mb.AppName, version, mb.Contact,
		musicbrainz.WithBaseURL(mb.BaseURL),
		musicbrainz.WithCoverArtURL(mb.CoverArtURL),
		musicbrainz.WithInterval(mb.Interval()),
		musicbrainz.WithTimeout(mb.Timeout()),
		musicbrainz.WithClientLogger(logger),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func wrapParseError(dir string, err error) error {
	var notDDP *ddp.NotDDPError
	if errors.As(err, &notDDP) {
		return fmt.Errorf("%s: %w; run `ddp-inspect detect %s` for details", dir, err, dir)
	}
	return fmt.Errorf("parse %s: %w", dir, err)
}
