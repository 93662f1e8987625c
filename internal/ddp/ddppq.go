package ddp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/binaryphile/ddp-inspect/internal/binread"
	"github.com/binaryphile/ddp-inspect/internal/cdda"
)

const pqMarker = "VVVS"

// PQEntry is one decoded DDPPQ packet: a Q-channel TOC point.
type PQEntry struct {
	TrackNumber uint8  `json:"track"` // 1-99, or 0xAA for the lead-out
	IndexNumber uint8  `json:"index"` // 0 = pre-gap, 1 = audible start
	Hours       int    `json:"hours"`
	Minutes     int    `json:"minutes"`
	Seconds     int    `json:"seconds"`
	Frames      int    `json:"frames"` // 0-74
	Control     uint8  `json:"control"`
	ADR         uint8  `json:"adr"`
	ISRC        string `json:"isrc,omitempty"`
	UPC         string `json:"upc,omitempty"`
	Text        string `json:"txt,omitempty"`
	Offset      int    `json:"-"` // byte offset of the packet in the stream
}

// AbsoluteFrames returns the entry's position on the CD clock in frames.
func (e PQEntry) AbsoluteFrames() int {
	return ((e.Hours*60+e.Minutes)*60+e.Seconds)*cdda.FramesPerSecond + e.Frames
}

// MSF returns the entry's position as minutes:seconds:frames.
func (e PQEntry) MSF() cdda.MSF {
	return cdda.FramesToMSF(e.AbsoluteFrames())
}

// IsLeadout reports whether this is the lead-out packet.
func (e PQEntry) IsLeadout() bool {
	return e.TrackNumber == cdda.LeadoutTrack
}

// IsTrackStart reports whether this packet marks a track's audible start.
func (e PQEntry) IsTrackStart() bool {
	return !e.IsLeadout() && e.IndexNumber == 1
}

// ParsePQ decodes a DDPPQ stream, preserving packet order.
// This is a pure function: 64·n bytes → entries plus warnings.
//
// Packet layout (ASCII):
//
//	0-3   SPV marker (VVVS)
//	4-5   TRK, "AA" for lead-out
//	6-7   IDX
//	8-15  HRS MIN SEC FRM
//	16-17 CB1, hex: control high nibble, ADR low nibble
//	18-19 CB2
//	20-31 ISRC
//	32-44 UPC/EAN
//	45-63 TXT
func ParsePQ(buf []byte) ([]PQEntry, []Warning, error) {
	if len(buf)%PQPacketSize != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrTruncatedStream, len(buf), PQPacketSize)
	}

	var (
		entries      []PQEntry
		warnings     []Warning
		markerWarned bool
	)
	for off := 0; off < len(buf); off += PQPacketSize {
		pkt := buf[off : off+PQPacketSize]
		if isBlank(pkt) {
			warnings = append(warnings, warnAt(off, "blank PQ packet skipped"))
			continue
		}

		marker, e, err := decodePQPacket(pkt)
		if err == nil {
			err = validatePQ(e)
		}
		if err != nil {
			warnings = append(warnings, warnAt(off, "PQ packet dropped: %v", err))
			continue
		}
		if marker != pqMarker && !markerWarned {
			warnings = append(warnings, warnAt(off, "non-standard PQ packet marker %q", marker))
			markerWarned = true
		}
		e.Offset = off
		entries = append(entries, e)
	}

	return entries, warnings, nil
}

func decodePQPacket(pkt []byte) (string, PQEntry, error) {
	var e PQEntry
	d := fieldDecoder{r: binread.New(pkt)}

	marker := d.raw(4)
	trk := d.text(2)
	idx := d.number(2, "IDX")
	e.Hours = d.number(2, "HRS")
	e.Minutes = d.number(2, "MIN")
	e.Seconds = d.number(2, "SEC")
	e.Frames = d.number(2, "FRM")
	cb1 := d.text(2)
	d.skip(2) // CB2
	e.ISRC = d.text(12)
	e.UPC = d.text(13)
	e.Text = d.text(19)

	if d.err != nil {
		return marker, PQEntry{}, d.err
	}

	track, err := parsePQTrack(trk)
	if err != nil {
		return marker, PQEntry{}, err
	}
	if idx > 99 {
		return marker, PQEntry{}, fmt.Errorf("index %d out of range", idx)
	}
	e.TrackNumber = track
	e.IndexNumber = uint8(idx)

	if cb1 != "" {
		cb, err := strconv.ParseUint(cb1, 16, 8)
		if err != nil {
			return marker, PQEntry{}, fmt.Errorf("CB1 %q is not hex", cb1)
		}
		e.Control = uint8(cb >> 4)
		e.ADR = uint8(cb & 0x0F)
	}
	return marker, e, nil
}

func parsePQTrack(s string) (uint8, error) {
	if strings.EqualFold(s, "AA") {
		return cdda.LeadoutTrack, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("track %q is not a number", s)
	}
	if n < 0 || n > 0xFF {
		return 0, fmt.Errorf("track %d out of range", n)
	}
	return uint8(n), nil
}

func validatePQ(e PQEntry) error {
	switch {
	case e.Frames >= cdda.FramesPerSecond:
		return fmt.Errorf("frame %d out of range", e.Frames)
	case e.Seconds >= 60:
		return fmt.Errorf("second %d out of range", e.Seconds)
	case !e.IsLeadout() && (e.TrackNumber < 1 || int(e.TrackNumber) > cdda.MaxTrack):
		return fmt.Errorf("track %d out of range", e.TrackNumber)
	}
	return nil
}
