// Package cdtext decodes CD-TEXT pack streams as shipped in DDP sets.
package cdtext

import (
	"fmt"

	"github.com/sigurn/crc16"

	"github.com/binaryphile/ddp-inspect/internal/binread"
)

// PackSize is the size of one CD-TEXT pack.
const PackSize = 18

// Pack types
const (
	PackTitle      uint8 = 0x80
	PackPerformer  uint8 = 0x81
	PackSongwriter uint8 = 0x82
	PackComposer   uint8 = 0x83
	PackArranger   uint8 = 0x84
	PackMessage    uint8 = 0x85
	PackDiscID     uint8 = 0x86
	PackGenre      uint8 = 0x87
	PackTOC        uint8 = 0x88
	PackTOC2       uint8 = 0x89
	PackClosed     uint8 = 0x8D
	PackCode       uint8 = 0x8E // UPC (track 0) and ISRCs
	PackSizeInfo   uint8 = 0x8F
)

// CD-TEXT uses CRC-16/CCITT over the first 16 bytes with the result
// inverted. XMODEM has the right polynomial and init.
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Pack is one decoded 18-byte pack.
type Pack struct {
	Type       uint8
	Track      uint8
	Sequence   uint8
	DoubleByte bool  // DBCC, bit 7 of byte 3
	Block      uint8 // bits 4-6 of byte 3
	CharPos    uint8 // bits 0-3 of byte 3
	Data       [12]byte
	CRC        uint16
}

// Checksum computes the CD-TEXT CRC of a pack header and payload.
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable) ^ 0xFFFF
}

// DecodePack decodes one pack. It does not check the CRC; see Valid.
func DecodePack(b []byte) (Pack, error) {
	if len(b) != PackSize {
		return Pack{}, fmt.Errorf("pack is %d bytes, want %d", len(b), PackSize)
	}

	var p Pack
	r := binread.New(b)
	p.Type, _ = r.U8()
	p.Track, _ = r.U8()
	p.Sequence, _ = r.U8()
	flags, _ := r.U8()
	data, _ := r.Bytes(12)
	crc, err := r.U16()
	if err != nil {
		return Pack{}, err
	}

	p.DoubleByte = flags&0x80 != 0
	p.Block = (flags >> 4) & 0x07
	p.CharPos = flags & 0x0F
	copy(p.Data[:], data)
	p.CRC = crc
	return p, nil
}

func (p Pack) header() [16]byte {
	var h [16]byte
	h[0] = p.Type
	h[1] = p.Track
	h[2] = p.Sequence
	h[3] = p.Block<<4 | p.CharPos&0x0F
	if p.DoubleByte {
		h[3] |= 0x80
	}
	copy(h[4:], p.Data[:])
	return h
}

// Valid reports whether the stored CRC matches the pack contents.
func (p Pack) Valid() bool {
	h := p.header()
	return Checksum(h[:]) == p.CRC
}

// Encode serializes the pack with a freshly computed CRC.
func (p Pack) Encode() [PackSize]byte {
	var out [PackSize]byte
	h := p.header()
	copy(out[:], h[:])
	crc := Checksum(h[:])
	out[16] = byte(crc >> 8)
	out[17] = byte(crc)
	return out
}
