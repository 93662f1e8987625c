// Package report renders a DDP inspection, and optionally its metadata
// lookup, as a self-describing JSON document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
	"github.com/binaryphile/ddp-inspect/internal/ddp"
	"github.com/binaryphile/ddp-inspect/internal/musicbrainz"
)

// SchemaVersion is bumped whenever a field changes meaning.
const SchemaVersion = 1

// Tool identifies the program that produced a report.
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Identity groups the disc identifiers computed from the TOC.
type Identity struct {
	DiscID   string `json:"musicbrainz_disc_id"`
	FreeDBID string `json:"freedb_id"`
	TOC      string `json:"toc"`
}

// TrackRow is a track with its positions rendered on the CD clock.
type TrackRow struct {
	ddp.Track
	Start  string `json:"start"`
	Length string `json:"length"`
}

// Report is the JSON document written by `ddp-inspect parse --json` and
// `ddp-inspect lookup --report`.
type Report struct {
	ID          uuid.UUID           `json:"id"`
	Schema      int                 `json:"schema"`
	GeneratedAt time.Time           `json:"generated_at"`
	Tool        Tool                `json:"tool"`
	Folder      string              `json:"folder,omitempty"`
	Identity    Identity            `json:"identity"`
	Summary     ddp.Summary         `json:"summary"`
	Tracks      []TrackRow          `json:"tracks"`
	Files       []ddp.FileInfo      `json:"files"`
	Detection   ddp.Detection       `json:"detection"`
	DDPID       *ddp.ID             `json:"ddpid,omitempty"`
	Warnings    []string            `json:"warnings"`
	Errors      []string            `json:"errors"`
	Lookup      *musicbrainz.Result `json:"lookup,omitempty"`
}

// Option adjusts a report under construction.
type Option func(*Report)

// WithTool records the producing program.
func WithTool(name, version string) Option {
	return func(r *Report) {
		r.Tool = Tool{Name: name, Version: version}
	}
}

// WithFolder records the inspected directory.
func WithFolder(dir string) Option {
	return func(r *Report) {
		r.Folder = dir
	}
}

// WithLookup attaches a metadata lookup result.
func WithLookup(result *musicbrainz.Result) Option {
	return func(r *Report) {
		r.Lookup = result
	}
}

// WithClock fixes the generation time.
func WithClock(now func() time.Time) Option {
	return func(r *Report) {
		r.GeneratedAt = now().UTC()
	}
}

// Build assembles a report from a parse result.
func Build(parsed *ddp.Parsed, opts ...Option) *Report {
	r := &Report{
		ID:          uuid.New(),
		Schema:      SchemaVersion,
		GeneratedAt: time.Now().UTC(),
		Tool:        Tool{Name: "ddp-inspect", Version: "dev"},
		Identity: Identity{
			DiscID:   cdda.CalculateDiscID(parsed.TOC),
			FreeDBID: cdda.CalculateFreeDBID(parsed.TOC),
			TOC:      parsed.TOC.String(),
		},
		Summary:   parsed.Summary,
		Files:     parsed.Files,
		Detection: parsed.Detection,
		DDPID:     parsed.ID,
		Warnings:  make([]string, 0, len(parsed.Warnings)),
		Errors:    parsed.Errors(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Tracks = make([]TrackRow, 0, len(parsed.Tracks))
	for _, t := range parsed.Tracks {
		r.Tracks = append(r.Tracks, TrackRow{
			Track:  t,
			Start:  t.Start().String(),
			Length: t.Length().String(),
		})
	}
	for _, w := range parsed.Warnings {
		r.Warnings = append(r.Warnings, w.String())
	}
	return r
}

// Name returns the conventional file name for the report.
func (r *Report) Name() string {
	upc := r.Summary.UPC
	return Filename(r.Summary.Performer, r.Summary.AlbumTitle, upc, r.Identity.DiscID)
}

// Write encodes the report as indented JSON.
func Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteFile writes the report to path on fsys, creating parent directories.
func WriteFile(fsys afero.Fs, path string, r *Report) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Write(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}
