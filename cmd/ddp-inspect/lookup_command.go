package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
	"github.com/binaryphile/ddp-inspect/internal/ddp"
	"github.com/binaryphile/ddp-inspect/internal/logging"
	"github.com/binaryphile/ddp-inspect/internal/metadata"
	"github.com/binaryphile/ddp-inspect/internal/musicbrainz"
	"github.com/binaryphile/ddp-inspect/internal/report"
)

type lookupOptions struct {
	noCache      bool
	refresh      bool
	withTracks   bool
	cover        bool
	reportPath   string
	metadataPath string
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var opts lookupOptions

	cmd := &cobra.Command{
		Use:   "lookup <folder>",
		Short: "Identify a DDP folder on MusicBrainz",
		Long: "Look the disc up by disc ID, then barcode, then ISRC, stopping at the\n" +
			"first method that matches unless --exhaustive is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, ctx, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.Bool("exhaustive", false, "Try every lookup method even after a match")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Neither read nor write the lookup cache")
	flags.BoolVar(&opts.refresh, "refresh", false, "Ignore cached results but store the new one")
	flags.BoolVar(&opts.withTracks, "tracks", false, "Fetch the full track list of the best match")
	flags.BoolVar(&opts.cover, "cover", false, "Save the front cover next to the report")
	flags.StringVarP(&opts.reportPath, "report", "o", "", "Write a JSON report to this file or directory")
	flags.StringVarP(&opts.metadataPath, "metadata", "m", "", "Manual metadata JSON used when nothing matches")
	return cmd
}

func runLookup(cmd *cobra.Command, ctx *commandContext, dir string, opts lookupOptions) error {
	parsed, err := ctx.parseFolder(dir)
	if err != nil {
		return wrapParseError(dir, err)
	}

	cfg := ctx.config
	logger := ctx.loggerValue()
	out := cmd.OutOrStdout()
	discID := cdda.CalculateDiscID(parsed.TOC)

	var svc lookupService
	service := func() lookupService {
		if svc == nil {
			svc = ctx.newService(cfg, logger)
		}
		return svc
	}
	defer func() {
		if svc != nil {
			svc.Close()
		}
	}()

	cache := ctx.openCache()
	var result *musicbrainz.Result
	if !opts.noCache && !opts.refresh {
		entry, ok := cache.Lookup(discID)
		switch {
		case ok && entry.Covers(cfg.MusicBrainz.Exhaustive):
			cached := entry.Result
			result = &cached
			fmt.Fprintf(out, "Using cached result from %s\n", entry.CachedAt.Local().Format("2006-01-02 15:04"))
		case ok:
			logger.Debug("cached result is not exhaustive; looking up again",
				logging.String(logging.FieldDiscID, discID))
		}
	}

	var lookupErr error
	if result == nil {
		resolver := musicbrainz.NewResolver(service(),
			musicbrainz.WithLogger(logger),
			musicbrainz.WithRetryDelay(cfg.MusicBrainz.RetryDelay()),
		)
		result, lookupErr = resolver.Resolve(cmd.Context(), musicbrainz.Query{
			DiscID:     discID,
			UPC:        parsed.Summary.UPC,
			ISRCs:      parsed.ISRCs(),
			TrackCount: parsed.Summary.TrackCount,
			Exhaustive: cfg.MusicBrainz.Exhaustive,
		})
		if lookupErr != nil && !errors.Is(lookupErr, musicbrainz.ErrLookupUnavailable) {
			return lookupErr
		}
		if !opts.noCache {
			if err := cache.Store(*result); err != nil {
				logger.Warn("failed to cache lookup result", logging.Error(err))
			}
		}
	}
	result.Matches = append([]musicbrainz.Release(nil), result.Matches...)

	var album *metadata.Album
	if result.Outcome != musicbrainz.OutcomeMatched && opts.metadataPath != "" {
		album, err = loadManualAlbum(ctx.fs, opts.metadataPath, parsed, out)
		if err != nil {
			return err
		}
		result.Matches = []musicbrainz.Release{*album.ToRelease()}
		result.Method = musicbrainz.MethodManual
		result.Outcome = musicbrainz.OutcomeMatched
		lookupErr = nil
	}

	if opts.withTracks && len(result.Matches) > 0 && result.Matches[0].MBID != "" && len(result.Matches[0].Tracks) == 0 {
		full, err := service().GetReleaseTracks(cmd.Context(), result.Matches[0].MBID)
		if err != nil {
			logger.Warn("failed to fetch track list",
				logging.String("mbid", result.Matches[0].MBID),
				logging.Error(err))
		} else {
			result.Matches[0] = *full
		}
	}

	printLookup(out, result, lookupErr)

	if opts.reportPath != "" || opts.cover {
		r := report.Build(parsed,
			report.WithTool("ddp-inspect", version),
			report.WithFolder(dir),
			report.WithLookup(result),
		)
		reportPath := ""
		if opts.reportPath != "" {
			reportPath = resolveReportPath(ctx.fs, opts.reportPath, r.Name())
			if err := report.WriteFile(ctx.fs, reportPath, r); err != nil {
				return err
			}
			fmt.Fprintf(out, "Report: %s\n", reportPath)
		}
		if opts.cover {
			if err := saveCover(cmd, ctx, service, result, album, opts.metadataPath, reportPath, r.Name()); err != nil {
				logger.Warn("failed to save cover art", logging.Error(err))
			}
		}
	}

	return lookupErr
}

func loadManualAlbum(fsys afero.Fs, path string, parsed *ddp.Parsed, out io.Writer) (*metadata.Album, error) {
	album, err := metadata.ParseJSON(fsys, path)
	if err != nil {
		return nil, err
	}
	for _, e := range album.Validate(parsed.Summary.TrackCount) {
		fmt.Fprintf(out, "Metadata warning: %v\n", e)
	}
	return album, nil
}

// resolveReportPath places the report under target when target names a
// directory.
func resolveReportPath(fsys afero.Fs, target, name string) string {
	if strings.HasSuffix(target, "/") || strings.HasSuffix(target, string(filepath.Separator)) {
		return filepath.Join(target, name)
	}
	if isDir, err := afero.IsDir(fsys, target); err == nil && isDir {
		return filepath.Join(target, name)
	}
	return target
}

func saveCover(cmd *cobra.Command, ctx *commandContext, service func() lookupService, result *musicbrainz.Result, album *metadata.Album, metadataPath, reportPath, reportName string) error {
	var (
		data []byte
		mime string
		err  error
	)
	switch {
	case album != nil:
		data, mime, err = album.LoadCoverArt(ctx.fs, filepath.Dir(metadataPath))
	case len(result.Matches) > 0 && result.Matches[0].MBID != "":
		data, mime, err = service().GetCoverArt(cmd.Context(), result.Matches[0].MBID)
	}
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Cover: none available")
		return nil
	}

	dir := "."
	if reportPath != "" {
		dir = filepath.Dir(reportPath)
		reportName = filepath.Base(reportPath)
	}
	path := filepath.Join(dir, report.CoverFilename(reportName, mime))
	if err := ctx.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cover directory: %w", err)
	}
	if err := afero.WriteFile(ctx.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write cover: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cover: %s (%d bytes)\n", path, len(data))
	return nil
}

func printLookup(out io.Writer, result *musicbrainz.Result, lookupErr error) {
	fmt.Fprintf(out, "Disc ID: %s\n", result.DiscID)
	switch {
	case result.Method != "":
		fmt.Fprintf(out, "Outcome: %s (via %s)\n", result.Outcome, result.Method)
	default:
		fmt.Fprintf(out, "Outcome: %s\n", result.Outcome)
	}

	if len(result.Attempts) > 0 {
		rows := make([][]string, 0, len(result.Attempts))
		for _, a := range result.Attempts {
			note := ""
			switch {
			case a.Skipped:
				note = "skipped: no input"
			case a.Error != "":
				note = a.Error
			}
			rows = append(rows, []string{
				string(a.Method),
				strconv.Itoa(a.Tries),
				strconv.Itoa(a.Matches),
				note,
			})
		}
		printTable(out, []column{txt("Method"), num("Tries"), num("Matches"), txt("Note")}, rows)
	}

	if len(result.Matches) == 0 {
		if lookupErr != nil {
			fmt.Fprintln(out, "No release found; the lookup service could not be reached.")
		} else {
			fmt.Fprintln(out, "No release found.")
		}
		return
	}

	rows := make([][]string, 0, len(result.Matches))
	for i, rel := range result.Matches {
		year := ""
		if rel.Year > 0 {
			year = strconv.Itoa(rel.Year)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			rel.Title,
			rel.Artist,
			orDash(year),
			orDash(rel.Country),
			strconv.Itoa(rel.TrackCount),
			orDash(rel.Barcode),
			orDash(rel.MBID),
		})
	}
	printTable(out, []column{
		num("#"), txt("Title"), txt("Artist"), num("Year"), txt("Country"), num("Tracks"), txt("Barcode"), txt("MBID"),
	}, rows)

	if top := result.Matches[0]; len(top.Tracks) > 0 {
		trackRows := make([][]string, 0, len(top.Tracks))
		for _, t := range top.Tracks {
			trackRows = append(trackRows, []string{strconv.Itoa(t.Num), t.Title, t.Artist})
		}
		fmt.Fprintf(out, "\n%s - %s\n", top.Artist, top.Title)
		printTable(out, []column{num("#"), txt("Title"), txt("Artist")}, trackRows)
	}
}
