// Package metadata reads and writes manual album metadata files.
// A metadata file stands in for MusicBrainz when a lookup finds nothing or
// cannot be reached, and can be seeded from what the DDP set itself carries.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/binaryphile/ddp-inspect/internal/ddp"
	"github.com/binaryphile/ddp-inspect/internal/musicbrainz"
)

// Album represents album metadata from a JSON file.
type Album struct {
	Artist      string  `json:"artist"`
	AlbumTitle  string  `json:"album"`
	Year        string  `json:"year"`
	Genre       string  `json:"genre"`
	UPC         string  `json:"upc,omitempty"`
	Disc        int     `json:"disc"`
	TotalDiscs  int     `json:"totalDiscs"`
	TotalTracks int     `json:"totalTracks"`
	CoverArt    string  `json:"coverArt"`
	Tracks      []Track `json:"tracks"`
}

// Track represents a single track in the album.
type Track struct {
	Num    int    `json:"num"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	ISRC   string `json:"isrc,omitempty"`
}

// ParseJSON reads and parses a metadata JSON file.
func ParseJSON(fsys afero.Fs, path string) (*Album, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var album Album
	if err := json.Unmarshal(data, &album); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &album, nil
}

// FromParsed seeds an Album from the CD-TEXT and PQ data of a parse. Fields
// the DDP set does not carry are left empty for the user to fill in.
func FromParsed(p *ddp.Parsed) *Album {
	album := &Album{
		Artist:      p.Summary.Performer,
		AlbumTitle:  p.Summary.AlbumTitle,
		UPC:         p.Summary.UPC,
		Disc:        1,
		TotalDiscs:  1,
		TotalTracks: len(p.Tracks),
		Tracks:      make([]Track, 0, len(p.Tracks)),
	}
	for _, t := range p.Tracks {
		album.Tracks = append(album.Tracks, Track{
			Num:    t.Number,
			Title:  t.Title,
			Artist: t.Performer,
			ISRC:   t.ISRC,
		})
	}
	return album
}

// WriteJSON writes the album as indented JSON.
func (a *Album) WriteJSON(fsys afero.Fs, path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	data = append(data, '\n')
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// ToRelease converts Album to musicbrainz.Release so it can stand in for a
// lookup match.
func (a *Album) ToRelease() *musicbrainz.Release {
	year, _ := strconv.Atoi(a.Year) // ignore error, default 0

	tracks := make([]musicbrainz.Track, 0, len(a.Tracks))
	for _, t := range a.Tracks {
		tracks = append(tracks, musicbrainz.Track{
			Num:    t.Num,
			Title:  t.Title,
			Artist: t.Artist,
		})
	}

	return &musicbrainz.Release{
		Title:       a.AlbumTitle,
		Artist:      a.Artist,
		Year:        year,
		Barcode:     a.UPC,
		TrackCount:  len(a.Tracks),
		DiscCount:   a.TotalDiscs,
		Tracks:      tracks,
		Compilation: a.Artist == "Various Artists",
	}
}

// Validate checks required fields and returns any validation errors.
// All issues are returned as warnings - caller decides whether to proceed.
func (a *Album) Validate(trackCount int) []error {
	var errs []error

	// Required field checks
	if a.Artist == "" {
		errs = append(errs, errors.New("missing required field: artist"))
	}
	if a.AlbumTitle == "" {
		errs = append(errs, errors.New("missing required field: album"))
	}
	if len(a.Tracks) == 0 {
		errs = append(errs, errors.New("missing required field: tracks"))
	}
	if len(a.Tracks) != trackCount {
		errs = append(errs, fmt.Errorf("track count mismatch: JSON has %d, DDP has %d tracks",
			len(a.Tracks), trackCount))
	}

	// Compilation track artist check
	if a.Artist == "Various Artists" {
		for i, t := range a.Tracks {
			if t.Artist == "" {
				errs = append(errs, fmt.Errorf("track %d missing artist (required for compilations)", i+1))
			}
		}
	}

	return errs
}

// LoadCoverArt reads the cover art file if specified. A relative path is
// taken relative to baseDir.
// Returns (data, mimeType, error). Returns nil,nil,nil if CoverArt is empty.
func (a *Album) LoadCoverArt(fsys afero.Fs, baseDir string) ([]byte, string, error) {
	if a.CoverArt == "" {
		return nil, "", nil
	}
	path := a.CoverArt
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, "", fmt.Errorf("cover art: %w", err)
	}
	return data, detectMIME(path), nil
}

// detectMIME returns MIME type based on file extension.
func detectMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "image/jpeg" // fallback
	}
}
