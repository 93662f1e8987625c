package ddp

import (
	"errors"
	"sort"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
	"github.com/binaryphile/ddp-inspect/internal/cdtext"
)

// Track is one assembled track, the consumer-facing unit of a parse.
type Track struct {
	Number        int            `json:"number"`
	ISRC          string         `json:"isrc,omitempty"`
	StartOffset   int            `json:"start_offset"` // absolute frames, lead-in included
	Duration      int            `json:"duration"`     // frames to the next track or lead-out
	PreGap        int            `json:"pre_gap"`      // frames between index 0 and index 1
	Type          cdda.TrackType `json:"type"`
	PreEmphasis   bool           `json:"pre_emphasis,omitempty"`
	CopyPermitted bool           `json:"copy_permitted,omitempty"`
	Title         string         `json:"title,omitempty"`
	Performer     string         `json:"performer,omitempty"`
	Songwriter    string         `json:"songwriter,omitempty"`
	DataStream    string         `json:"data_stream,omitempty"` // DSI of the audio file
}

// Start returns the track's start position on the CD clock.
func (t Track) Start() cdda.MSF {
	return cdda.FramesToMSF(t.StartOffset)
}

// Length returns the track duration as minutes:seconds:frames.
func (t Track) Length() cdda.MSF {
	return cdda.FramesToMSF(t.Duration)
}

// Summary is the disc-level overview of a parse.
type Summary struct {
	UPC         string `json:"upc,omitempty"`
	TrackCount  int    `json:"track_count"`
	FirstTrack  int    `json:"first_track"`
	LastTrack   int    `json:"last_track"`
	TotalFrames int    `json:"total_frames"`
	AlbumTitle  string `json:"album_title,omitempty"`
	Performer   string `json:"performer,omitempty"`
	HasCDText   bool   `json:"has_cdtext"`
	HasPQ       bool   `json:"has_pq"`
}

// FileInfo describes one supplied file and the role it was given.
type FileInfo struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Role  Role   `json:"role"`
	Label string `json:"label"`
}

// Parsed is the result of parsing a DDP set. It is built once and not
// modified afterwards.
type Parsed struct {
	ID         *ID          `json:"id,omitempty"`
	Tracks     []Track      `json:"tracks"`
	PQEntries  []PQEntry    `json:"pq_entries"`
	MapEntries []MapEntry   `json:"map_entries,omitempty"`
	CDText     *cdtext.Data `json:"cdtext,omitempty"`
	TOC        cdda.TOC     `json:"-"`
	Summary    Summary      `json:"summary"`
	Files      []FileInfo   `json:"files"`
	Detection  Detection    `json:"detection"`
	Warnings   []Warning    `json:"warnings,omitempty"`
	FileErrors []FileError  `json:"file_errors,omitempty"`
}

// ISRCs returns the distinct ISRCs of the tracks in track order.
func (p *Parsed) ISRCs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range p.Tracks {
		if t.ISRC == "" || seen[t.ISRC] {
			continue
		}
		seen[t.ISRC] = true
		out = append(out, t.ISRC)
	}
	return out
}

// Assemble combines the decoded parts of a DDP set into tracks and a summary.
// This is a pure function of its inputs; id, mapEntries and text may be nil.
//
// A track is emitted for every distinct track number among index-1 PQ
// entries. ISRCs come from PQ first, then DDPMS, then CD-TEXT.
func Assemble(id *ID, mapEntries []MapEntry, pq []PQEntry, text *cdtext.Data) (*Parsed, []Warning, error) {
	toc, warnings, err := DeriveTOC(pq)
	if err != nil {
		if errors.Is(err, ErrNoTracksFound) || errors.Is(err, ErrMissingLeadout) {
			return nil, warnings, err
		}
		return nil, warnings, errors.Join(ErrNoTracksFound, err)
	}

	shift := 0
	starts := make(map[int]PQEntry)
	preGapStart := make(map[int]int)
	for _, e := range pq {
		switch {
		case e.IsTrackStart():
			if _, ok := starts[int(e.TrackNumber)]; !ok {
				starts[int(e.TrackNumber)] = e
			}
		case !e.IsLeadout() && e.IndexNumber == 0:
			if _, ok := preGapStart[int(e.TrackNumber)]; !ok {
				preGapStart[int(e.TrackNumber)] = e.AbsoluteFrames()
			}
		}
	}
	if first := toc.Tracks[0]; first.Offset != starts[first.Num].AbsoluteFrames() {
		shift = first.Offset - starts[first.Num].AbsoluteFrames()
	}

	streams := audioStreams(mapEntries, toc.Tracks)

	tracks := make([]Track, 0, len(toc.Tracks))
	for _, tt := range toc.Tracks {
		e := starts[tt.Num]
		t := Track{
			Number:        tt.Num,
			StartOffset:   tt.Offset,
			Type:          tt.Type,
			PreEmphasis:   e.Control&0x01 != 0,
			CopyPermitted: e.Control&0x02 != 0,
			ISRC:          e.ISRC,
		}
		if p0, ok := preGapStart[tt.Num]; ok && p0+shift < tt.Offset {
			t.PreGap = tt.Offset - (p0 + shift)
		}
		if ms, ok := streams[tt.Num]; ok {
			t.DataStream = ms.FileName
			if t.ISRC == "" {
				t.ISRC = ms.ISRC
			}
		}
		if tx, ok := text.Track(tt.Num); ok {
			t.Title = tx.Title
			t.Performer = tx.Performer
			t.Songwriter = tx.Songwriter
			if t.ISRC == "" {
				t.ISRC = tx.Code
			}
		}
		tracks = append(tracks, t)
	}

	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].StartOffset < tracks[j].StartOffset })
	for i := range tracks {
		end := toc.LeadoutOffset
		if i+1 < len(tracks) {
			end = tracks[i+1].StartOffset
		}
		tracks[i].Duration = end - tracks[i].StartOffset
	}

	if text != nil {
		for _, tx := range text.Tracks {
			if _, ok := starts[tx.Number]; !ok {
				warnings = append(warnings, warnAt(-1, "CD-TEXT has text for track %d, which is not in the PQ stream", tx.Number))
			}
		}
	}
	if n := countAudio(mapEntries); n > 0 && n != len(tracks) {
		warnings = append(warnings, warnAt(-1, "DDPMS lists %d audio streams for %d tracks", n, len(tracks)))
	}

	p := &Parsed{
		ID:         id,
		Tracks:     tracks,
		PQEntries:  pq,
		MapEntries: mapEntries,
		CDText:     text,
		TOC:        toc,
	}
	p.Summary = Summary{
		UPC:         chooseUPC(id, pq, text),
		TrackCount:  len(tracks),
		FirstTrack:  toc.FirstTrack,
		LastTrack:   toc.LastTrack,
		TotalFrames: toc.TotalFrames(),
		HasCDText:   text != nil,
		HasPQ:       true,
	}
	if text != nil {
		p.Summary.AlbumTitle = text.Album.Title
		p.Summary.Performer = text.Album.Performer
	}
	return p, warnings, nil
}

// audioStreams maps track numbers to DA map entries. Map streams that leave
// TRK blank are matched to tracks by order.
func audioStreams(entries []MapEntry, tracks []cdda.Track) map[int]MapEntry {
	out := make(map[int]MapEntry)
	var unnumbered []MapEntry
	for _, e := range entries {
		if !e.IsAudio() {
			continue
		}
		if e.Track == 0 {
			unnumbered = append(unnumbered, e)
			continue
		}
		if _, ok := out[e.Track]; !ok {
			out[e.Track] = e
		}
	}
	if len(out) == 0 && len(unnumbered) == len(tracks) {
		for i, e := range unnumbered {
			out[tracks[i].Num] = e
		}
	}
	return out
}

// countAudio counts the tracks the map stream describes: distinct TRK values
// plus DA entries without one.
func countAudio(entries []MapEntry) int {
	numbered := make(map[int]bool)
	unnumbered := 0
	for _, e := range entries {
		switch {
		case !e.IsAudio():
		case e.Track == 0:
			unnumbered++
		default:
			numbered[e.Track] = true
		}
	}
	return len(numbered) + unnumbered
}

func chooseUPC(id *ID, pq []PQEntry, text *cdtext.Data) string {
	if id != nil && id.HasUPC() {
		return id.UPC
	}
	for _, e := range pq {
		if isUPC(e.UPC) {
			return e.UPC
		}
	}
	if text != nil && isUPC(text.Album.Code) {
		return text.Album.Code
	}
	return ""
}

func isUPC(s string) bool {
	if s == "" {
		return false
	}
	zeros := true
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
		if c != '0' {
			zeros = false
		}
	}
	return !zeros
}
