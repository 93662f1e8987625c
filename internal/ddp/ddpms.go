package ddp

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/binaryphile/ddp-inspect/internal/binread"
)

// BytesPerSector is the size of one CD-DA sector.
const BytesPerSector = 2352

const mapMarker = "VVVM"

// MapEntry is one decoded DDPMS packet.
type MapEntry struct {
	Marker      string `json:"mpv"`
	StreamType  string `json:"dst"`           // DST: D0 lead-in, D2 program, ...
	Pointer     int    `json:"dsp"`           // DSP: data stream pointer
	Length      int    `json:"dsl"`           // DSL: length in sectors (bytes for non-DA streams)
	Start       int    `json:"dss"`           // DSS: start sector on disc
	Subcode     string `json:"sub,omitempty"` // SUB: "PQ DESCR", "CDTEXT", ...
	FileType    string `json:"cdm"`           // CDM: DA audio, TX text, ...
	SourceMode  string `json:"ssm,omitempty"`
	Scrambled   string `json:"scr,omitempty"`
	PreGap1     int    `json:"pre1"`
	PreGap2     int    `json:"pre2"`
	PostGap     int    `json:"pst"`
	MediaNumber string `json:"med,omitempty"`
	Track       int    `json:"trk"`
	Index       int    `json:"idx"`
	ISRC        string `json:"isrc,omitempty"`
	BlockSize   int    `json:"siz"`
	FileName    string `json:"dsi"` // DSI: the file holding this stream
	NewSession  string `json:"new,omitempty"`
	PreGap1Next int    `json:"pre1nxt"`
	PauseAdd    int    `json:"pauseadd"`
	FileOffset  int    `json:"ofs"`
	ByteLength  int64  `json:"byte_length"` // expected size of FileName
}

// IsAudio reports whether the entry describes a digital-audio stream.
func (e MapEntry) IsAudio() bool {
	return e.FileType == "DA"
}

// ParseMapStream decodes a DDPMS stream into its entries, preserving order.
// This is a pure function: 128·n bytes → entries plus warnings.
//
// Packets with an undecodable numeric field, or blank padding packets, are
// dropped with a warning. A marker other than VVVM is reported once and the
// packets are still decoded.
func ParseMapStream(buf []byte) ([]MapEntry, []Warning, error) {
	if len(buf)%MapPacketSize != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrTruncatedStream, len(buf), MapPacketSize)
	}

	var (
		entries      []MapEntry
		warnings     []Warning
		markerWarned bool
	)
	for off := 0; off < len(buf); off += MapPacketSize {
		pkt := buf[off : off+MapPacketSize]
		if isBlank(pkt) {
			warnings = append(warnings, warnAt(off, "blank map packet skipped"))
			continue
		}

		e, err := decodeMapPacket(pkt)
		if err != nil {
			warnings = append(warnings, warnAt(off, "map packet dropped: %v", err))
			continue
		}
		if e.Marker != mapMarker && !markerWarned {
			warnings = append(warnings, warnAt(off, "non-standard map packet marker %q", e.Marker))
			markerWarned = true
		}
		entries = append(entries, e)
	}

	return entries, warnings, nil
}

func decodeMapPacket(pkt []byte) (MapEntry, error) {
	var e MapEntry
	d := fieldDecoder{r: binread.New(pkt)}

	e.Marker = d.raw(4)
	e.StreamType = d.text(2)
	e.Pointer = d.number(8, "DSP")
	e.Length = d.number(8, "DSL")
	e.Start = d.number(8, "DSS")
	e.Subcode = d.text(8)
	e.FileType = strings.ToUpper(d.text(2))
	e.SourceMode = d.text(1)
	e.Scrambled = d.text(1)
	e.PreGap1 = d.number(4, "PRE1")
	e.PreGap2 = d.number(4, "PRE2")
	e.PostGap = d.number(4, "PST")
	e.MediaNumber = d.text(1)
	e.Track = d.number(2, "TRK")
	e.Index = d.number(2, "IDX")
	e.ISRC = d.text(12)
	e.BlockSize = d.number(3, "SIZ")
	e.FileName = d.text(17)
	e.NewSession = d.text(1)
	e.PreGap1Next = d.number(4, "PRE1NXT")
	e.PauseAdd = d.number(8, "PAUSEADD")
	e.FileOffset = d.number(9, "OFS")
	d.skip(15)

	if d.err != nil {
		return MapEntry{}, d.err
	}

	e.ByteLength = int64(e.Length)
	if e.FileType == "DA" || e.FileType == "DV" {
		e.ByteLength = int64(e.Length) * BytesPerSector
	}
	return e, nil
}

// fieldDecoder reads consecutive fixed-width fields and keeps the first error.
type fieldDecoder struct {
	r   *binread.Reader
	err error
}

func (d *fieldDecoder) text(n int) string {
	if d.err != nil {
		return ""
	}
	s, err := d.r.ASCII(n)
	if err != nil {
		d.err = err
		return ""
	}
	return strings.TrimSpace(s)
}

func (d *fieldDecoder) raw(n int) string {
	if d.err != nil {
		return ""
	}
	s, err := d.r.Raw(n)
	if err != nil {
		d.err = err
	}
	return s
}

func (d *fieldDecoder) number(n int, field string) int {
	if d.err != nil {
		return 0
	}
	v, _, err := d.r.Decimal(n)
	if err != nil {
		d.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

func (d *fieldDecoder) skip(n int) {
	if d.err != nil {
		return
	}
	d.err = d.r.Skip(n)
}

func isBlank(pkt []byte) bool {
	return len(bytes.Trim(pkt, " \x00")) == 0
}
