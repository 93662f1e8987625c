package ddp

import (
	"fmt"
	"strings"

	"github.com/binaryphile/ddp-inspect/internal/cdtext"
)

// field writes s left-justified into b[off:off+n], space padded.
func field(b []byte, off, n int, s string) {
	copy(b[off:off+n], s+strings.Repeat(" ", n))
}

func num(v, width int) string {
	return fmt.Sprintf("%0*d", width, v)
}

func idRecord(upc string) []byte {
	b := []byte(strings.Repeat(" ", IDSize))
	field(b, 0, 8, "DDP 2.00")
	field(b, 8, 13, upc)
	field(b, 21, 8, "00000000")
	field(b, 29, 8, "00350000")
	field(b, 37, 1, "C")
	field(b, 38, 48, "Test Album Master - 2024")
	field(b, 86, 1, "1")
	field(b, 87, 2, "CD")
	field(b, 89, 1, "1")
	field(b, 90, 1, "1")
	field(b, 91, 1, "1")
	field(b, 92, 1, "1")
	field(b, 95, 33, "Generated for testing")
	return b
}

type mapFields struct {
	marker   string
	dsl      int
	dss      int
	sub      string
	cdm      string
	track    int
	isrc     string
	fileName string
}

func mapPacket(m mapFields) []byte {
	b := []byte(strings.Repeat(" ", MapPacketSize))
	marker := m.marker
	if marker == "" {
		marker = mapMarker
	}
	field(b, 0, 4, marker)
	field(b, 4, 2, "D2")
	field(b, 6, 8, num(0, 8))
	field(b, 14, 8, num(m.dsl, 8))
	field(b, 22, 8, num(m.dss, 8))
	field(b, 30, 8, m.sub)
	field(b, 38, 2, m.cdm)
	field(b, 42, 4, "0000")
	field(b, 46, 4, "0000")
	field(b, 50, 4, "0000")
	field(b, 54, 1, "A")
	if m.track > 0 {
		field(b, 55, 2, num(m.track, 2))
		field(b, 57, 2, "01")
	}
	field(b, 59, 12, m.isrc)
	field(b, 74, 17, m.fileName)
	return b
}

type pqFields struct {
	marker        string
	trk, idx      string
	min, sec, frm int
	cb1           string
	isrc          string
}

func pqPacket(p pqFields) []byte {
	b := []byte(strings.Repeat(" ", PQPacketSize))
	marker := p.marker
	if marker == "" {
		marker = pqMarker
	}
	cb1 := p.cb1
	if cb1 == "" {
		cb1 = "01"
	}
	field(b, 0, 4, marker)
	field(b, 4, 2, p.trk)
	field(b, 6, 2, p.idx)
	field(b, 8, 2, "00")
	field(b, 10, 2, num(p.min, 2))
	field(b, 12, 2, num(p.sec, 2))
	field(b, 14, 2, num(p.frm, 2))
	field(b, 16, 2, cb1)
	field(b, 18, 2, "00")
	field(b, 20, 12, p.isrc)
	field(b, 32, 13, "0886446672632")
	return b
}

type sampleTrack struct {
	file    string
	sectors int
	isrc    string
	pause   [3]int // index 0 min, sec, frm
	start   [3]int // index 1 min, sec, frm
}

var sampleTracks = []sampleTrack{
	{"AUDIO001.DAT", 15000, "USRC11234567", [3]int{0, 0, 0}, [3]int{0, 2, 0}},
	{"AUDIO002.DAT", 18000, "USRC11234568", [3]int{3, 20, 0}, [3]int{3, 22, 0}},
	{"AUDIO003.DAT", 12000, "USRC11234569", [3]int{7, 10, 0}, [3]int{7, 12, 0}},
	{"AUDIO004.DAT", 21000, "USRC11234570", [3]int{10, 5, 0}, [3]int{10, 7, 0}},
	{"AUDIO005.DAT", 16000, "USRC11234571", [3]int{15, 30, 0}, [3]int{15, 32, 0}},
}

var sampleLeadout = [3]int{19, 45, 0}

// samplePQ returns the PQ stream for sampleTracks, with pre-gaps and lead-out.
func samplePQ() []byte {
	var out []byte
	for i, t := range sampleTracks {
		trk := num(i+1, 2)
		out = append(out, pqPacket(pqFields{trk: trk, idx: "00", min: t.pause[0], sec: t.pause[1], frm: t.pause[2], isrc: t.isrc})...)
		out = append(out, pqPacket(pqFields{trk: trk, idx: "01", min: t.start[0], sec: t.start[1], frm: t.start[2], isrc: t.isrc})...)
	}
	out = append(out, pqPacket(pqFields{trk: "AA", idx: "01", min: sampleLeadout[0], sec: sampleLeadout[1], frm: sampleLeadout[2]})...)
	return out
}

func sampleMap(pqLen, textLen int) []byte {
	var out []byte
	dss := 0
	for i, t := range sampleTracks {
		out = append(out, mapPacket(mapFields{dsl: t.sectors, dss: dss, cdm: "DA", track: i + 1, isrc: t.isrc, fileName: t.file})...)
		dss += t.sectors
	}
	out = append(out, mapPacket(mapFields{dsl: pqLen, sub: "PQ DESCR", fileName: "DDPPQ"})...)
	if textLen > 0 {
		out = append(out, mapPacket(mapFields{dsl: textLen, sub: "CDTEXT", fileName: "CDTEXT.BIN"})...)
	}
	return out
}

// sampleCDText encodes album and per-track titles plus the album performer.
func sampleCDText() []byte {
	var seq uint8
	var out []byte
	add := func(typ uint8, texts ...string) {
		var stream []byte
		for _, s := range texts {
			stream = append(stream, s...)
			stream = append(stream, 0)
		}
		for len(stream)%12 != 0 {
			stream = append(stream, 0)
		}
		for off := 0; off < len(stream); off += 12 {
			p := cdtext.Pack{Type: typ, Sequence: seq}
			if off == 0 {
				p.Track = 0
			} else {
				p.Track = uint8(strings.Count(string(stream[:off]), "\x00"))
			}
			copy(p.Data[:], stream[off:off+12])
			b := p.Encode()
			out = append(out, b[:]...)
			seq++
		}
	}
	add(cdtext.PackTitle, "Test Album", "One", "Two", "Three", "Four", "Five")
	add(cdtext.PackPerformer, "The Testers")
	return out
}

// sampleFolder returns a complete, consistent DDP set.
func sampleFolder(withText bool) []RawFile {
	pq := samplePQ()
	var text []byte
	if withText {
		text = sampleCDText()
	}
	files := []RawFile{
		{Name: "DDPID", Bytes: idRecord("0886446672632")},
		{Name: "DDPMS", Bytes: sampleMap(len(pq), len(text))},
		{Name: "DDPPQ", Bytes: pq},
	}
	if withText {
		files = append(files, RawFile{Name: "CDTEXT.BIN", Bytes: text})
	}
	for _, t := range sampleTracks {
		files = append(files, RawFile{Name: t.file, Size: int64(t.sectors) * BytesPerSector})
	}
	return files
}

func replaceFile(files []RawFile, f RawFile) []RawFile {
	out := make([]RawFile, 0, len(files))
	for _, existing := range files {
		if existing.Name == f.Name {
			out = append(out, f)
			continue
		}
		out = append(out, existing)
	}
	return out
}

func withoutFile(files []RawFile, name string) []RawFile {
	out := make([]RawFile, 0, len(files))
	for _, f := range files {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}
