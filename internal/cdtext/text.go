package cdtext

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// ErrNoPacks is returned when a stream holds no pack with a valid CRC.
var ErrNoPacks = errors.New("no valid CD-TEXT packs")

// Character codes from the size-info pack
const (
	CharsetLatin1 uint8 = 0x00
	CharsetASCII  uint8 = 0x01
	CharsetMSJIS  uint8 = 0x80
)

// Warning is a recoverable problem at a byte offset in the stream.
type Warning struct {
	Offset  int
	Message string
}

// Fields are the text items CD-TEXT can carry for the album or one track.
type Fields struct {
	Title      string `json:"title,omitempty"`
	Performer  string `json:"performer,omitempty"`
	Songwriter string `json:"songwriter,omitempty"`
	Composer   string `json:"composer,omitempty"`
	Arranger   string `json:"arranger,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"` // UPC for the album, ISRC for a track
}

// TrackText is the text attached to one track.
type TrackText struct {
	Number int `json:"number"`
	Fields
}

// Data is the reassembled text of the first language block.
type Data struct {
	Album      Fields            `json:"album"`
	Tracks     []TrackText       `json:"tracks,omitempty"`
	DiscID     string            `json:"disc_id,omitempty"`
	Genre      string            `json:"genre,omitempty"`
	Charset    string            `json:"charset"`
	Blocks     int               `json:"blocks"`
	Raw        map[string]string `json:"raw,omitempty"` // unknown pack types, keyed pack_0xNN
	Packs      int               `json:"packs"`
	Dropped    int               `json:"dropped"`
	FirstTrack int               `json:"first_track,omitempty"`
	LastTrack  int               `json:"last_track,omitempty"`
}

// Track returns the text for track n.
func (d *Data) Track(n int) (TrackText, bool) {
	if d == nil {
		return TrackText{}, false
	}
	for _, t := range d.Tracks {
		if t.Number == n {
			return t, true
		}
	}
	return TrackText{}, false
}

// Parse validates and reassembles a CD-TEXT stream.
// This is a pure function: 18·n bytes → Data plus warnings.
//
// Packs failing their CRC are dropped. Text for one pack type flows across
// packs in sequence order; NUL ends a track's string and the next string
// belongs to the next track. A lone TAB repeats the previous track's value.
// After a gap in the sequence, numbering restarts from the next pack's
// track number and any string cut by the gap is discarded with a warning.
func Parse(buf []byte) (*Data, []Warning, error) {
	var warnings []Warning

	n := len(buf) / PackSize
	if rem := len(buf) % PackSize; rem != 0 {
		warnings = append(warnings, Warning{Offset: n * PackSize,
			Message: fmt.Sprintf("trailing %d bytes ignored", rem)})
	}

	byBlock := make(map[uint8][]Pack)
	dropped := 0
	for i := 0; i < n; i++ {
		off := i * PackSize
		p, err := DecodePack(buf[off : off+PackSize])
		if err != nil {
			warnings = append(warnings, Warning{Offset: off, Message: err.Error()})
			dropped++
			continue
		}
		if !p.Valid() {
			warnings = append(warnings, Warning{Offset: off,
				Message: fmt.Sprintf("pack 0x%02X seq %d dropped: CRC mismatch", p.Type, p.Sequence)})
			dropped++
			continue
		}
		if p.Type < 0x80 || p.Type > 0x8F {
			warnings = append(warnings, Warning{Offset: off,
				Message: fmt.Sprintf("pack type 0x%02X is not CD-TEXT", p.Type)})
			dropped++
			continue
		}
		byBlock[p.Block] = append(byBlock[p.Block], p)
	}

	if len(byBlock) == 0 {
		return nil, warnings, ErrNoPacks
	}

	blocks := make([]int, 0, len(byBlock))
	for b := range byBlock {
		blocks = append(blocks, int(b))
	}
	sort.Ints(blocks)
	if len(blocks) > 1 {
		warnings = append(warnings, Warning{Offset: -1,
			Message: fmt.Sprintf("%d language blocks; only block %d decoded", len(blocks), blocks[0])})
	}

	d := decodeBlock(byBlock[uint8(blocks[0])], &warnings)
	d.Blocks = len(blocks)
	d.Dropped = dropped
	for _, ps := range byBlock {
		d.Packs += len(ps)
	}
	return d, warnings, nil
}

func decodeBlock(packs []Pack, warnings *[]Warning) *Data {
	d := &Data{Charset: "iso-8859-1"}

	byType := make(map[uint8][]Pack)
	for _, p := range packs {
		byType[p.Type] = append(byType[p.Type], p)
	}
	for _, ps := range byType {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Sequence < ps[j].Sequence })
	}

	dec := charmap.ISO8859_1.NewDecoder()
	if info, ok := byType[PackSizeInfo]; ok {
		charset := info[0].Data[0]
		d.FirstTrack = int(info[0].Data[1])
		d.LastTrack = int(info[0].Data[2])
		switch charset {
		case CharsetLatin1:
		case CharsetASCII:
			d.Charset = "ascii"
		case CharsetMSJIS:
			d.Charset = "ms-jis"
			dec = japanese.ShiftJIS.NewDecoder()
		default:
			d.Charset = fmt.Sprintf("0x%02X", charset)
			*warnings = append(*warnings, Warning{Offset: -1,
				Message: fmt.Sprintf("character code 0x%02X not supported; decoding as ISO-8859-1", charset)})
		}
	}

	warn := func(msg string) {
		*warnings = append(*warnings, Warning{Offset: -1, Message: msg})
	}

	tracks := make(map[int]*TrackText)
	fields := func(track int) *Fields {
		if track == 0 {
			return &d.Album
		}
		t, ok := tracks[track]
		if !ok {
			t = &TrackText{Number: track}
			tracks[track] = t
		}
		return &t.Fields
	}

	types := make([]int, 0, len(byType))
	for t := range byType {
		types = append(types, int(t))
	}
	sort.Ints(types)

	for _, typ := range types {
		ps := byType[uint8(typ)]
		switch uint8(typ) {
		case PackTOC, PackTOC2, PackSizeInfo:
			continue
		case PackDiscID:
			d.DiscID = firstString(ps, dec, warn)
			continue
		case PackGenre:
			d.Genre = genreText(ps, dec)
			continue
		}

		for track, text := range flow(ps, dec, warn) {
			f := fields(track)
			switch uint8(typ) {
			case PackTitle:
				f.Title = text
			case PackPerformer:
				f.Performer = text
			case PackSongwriter:
				f.Songwriter = text
			case PackComposer:
				f.Composer = text
			case PackArranger:
				f.Arranger = text
			case PackMessage:
				f.Message = text
			case PackCode:
				f.Code = text
			default:
				if d.Raw == nil {
					d.Raw = make(map[string]string)
				}
				key := fmt.Sprintf("pack_0x%02X", typ)
				if track != 0 {
					key = fmt.Sprintf("%s_track_%02d", key, track)
				}
				d.Raw[key] = text
			}
		}
	}

	numbers := make([]int, 0, len(tracks))
	for n := range tracks {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		d.Tracks = append(d.Tracks, *tracks[n])
	}
	return d
}

// flow splits the text of one pack type into per-track strings. A NUL ends
// a string and the next one belongs to the next track. Each pack header is
// authoritative for the track its first character belongs to, so a dropped
// pack costs only the strings it carried part of.
func flow(packs []Pack, dec *encoding.Decoder, warn func(string)) map[int]string {
	if len(packs) == 0 {
		return nil
	}

	unit := 1
	tab := []byte{'\t'}
	if packs[0].DoubleByte {
		unit = 2
		tab = []byte{'\t', '\t'}
	}

	out := make(map[int]string)
	store := func(track int, raw []byte) {
		if len(bytes.Trim(raw, "\x00 ")) == 0 {
			return
		}
		text := decode(dec, raw)
		if bytes.Equal(raw, tab) {
			text = out[track-1]
		}
		if text != "" {
			out[track] = text
		}
	}

	lost := make(map[int]bool)
	markLost := func(typ uint8, track int) {
		if lost[track] {
			return
		}
		lost[track] = true
		warn(fmt.Sprintf("pack 0x%02X: text of track %d incomplete after a dropped pack", typ, track))
	}

	var (
		cur      []byte
		track    int
		skipping bool // discarding a string whose head was in a dropped pack
	)
	for i, p := range packs {
		gap := i > 0 && p.Sequence != packs[i-1].Sequence+1
		switch {
		case i == 0 || gap:
			if len(cur) > 0 {
				markLost(p.Type, track)
			}
			cur = cur[:0]
			track = int(p.Track)
			skipping = p.CharPos > 0
			if skipping {
				markLost(p.Type, track)
			}
		case int(p.Track) != track:
			track = int(p.Track)
		}

		for off := 0; off+unit <= len(p.Data); off += unit {
			u := p.Data[off : off+unit]
			if u[0] != 0 || u[unit-1] != 0 {
				if !skipping {
					cur = append(cur, u...)
				}
				continue
			}
			if !skipping {
				store(track, cur)
			}
			skipping = false
			cur = cur[:0]
			track++
		}
	}
	if !skipping {
		store(track, cur)
	}
	return out
}

func firstString(packs []Pack, dec *encoding.Decoder, warn func(string)) string {
	texts := flow(packs, dec, warn)
	first := -1
	for track := range texts {
		if first < 0 || track < first {
			first = track
		}
	}
	return texts[first]
}

// genreText skips the two-byte genre code that leads the genre stream.
func genreText(packs []Pack, dec *encoding.Decoder) string {
	var stream []byte
	for _, p := range packs {
		stream = append(stream, p.Data[:]...)
	}
	if len(stream) <= 2 {
		return ""
	}
	stream = stream[2:]
	if i := bytes.IndexByte(stream, 0); i >= 0 {
		stream = stream[:i]
	}
	return decode(dec, stream)
}

func decode(dec *encoding.Decoder, raw []byte) string {
	out, err := dec.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
