// Package binread provides a bounds-checked cursor over fixed-length
// descriptor records. Every read advances the cursor; a read that needs more
// bytes than remain fails with ErrOutOfBounds and leaves the cursor in place.
package binread

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

var (
	// ErrOutOfBounds is returned when a read needs more bytes than remain.
	ErrOutOfBounds = errors.New("read out of bounds")
	// ErrInvalidDigit is returned when a numeric field holds a non-digit.
	ErrInvalidDigit = errors.New("invalid digit")
)

// Reader is a read cursor over a fixed buffer.
type Reader struct {
	s    cryptobyte.String
	size int
}

// New wraps buf. The buffer is borrowed, not copied.
func New(buf []byte) *Reader {
	return &Reader{s: cryptobyte.String(buf), size: len(buf)}
}

// Offset returns the cursor position from the start of the buffer.
func (r *Reader) Offset() int {
	return r.size - len(r.s)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.s)
}

func (r *Reader) outOfBounds(n int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrOutOfBounds, n, r.Offset(), len(r.s))
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	var v uint8
	if !r.s.ReadUint8(&v) {
		return 0, r.outOfBounds(1)
	}
	return v, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	var v uint16
	if !r.s.ReadUint16(&v) {
		return 0, r.outOfBounds(2)
	}
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	var v uint32
	if !r.s.ReadUint32(&v) {
		return 0, r.outOfBounds(4)
	}
	return v, nil
}

// Bytes reads n raw bytes. The returned slice aliases the buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrOutOfBounds, n)
	}
	var out []byte
	if !r.s.ReadBytes(&out, n) {
		return nil, r.outOfBounds(n)
	}
	return out, nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || !r.s.Skip(n) {
		return r.outOfBounds(n)
	}
	return nil
}

// ASCII reads an n-byte text field and trims trailing spaces and NULs.
// Leading spaces are significant in some fields and are kept.
func (r *Reader) ASCII(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(b, " \x00")), nil
}

// Raw reads an n-byte field verbatim as a string.
func (r *Reader) Raw(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decimal reads an n-byte field of ASCII decimal digits. Surrounding spaces
// are ignored; an all-blank field reads as 0 with ok=false.
func (r *Reader) Decimal(n int) (value int, ok bool, err error) {
	start := r.Offset()
	b, err := r.Bytes(n)
	if err != nil {
		return 0, false, err
	}
	digits := bytes.Trim(b, " \x00")
	if len(digits) == 0 {
		return 0, false, nil
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false, fmt.Errorf("%w: %q at offset %d", ErrInvalidDigit, b, start)
		}
		value = value*10 + int(c-'0')
	}
	return value, true, nil
}

// BCD reads nDigits packed binary-coded decimal digits, two per byte with
// the high nibble first. An odd digit count ignores the final low nibble.
func (r *Reader) BCD(nDigits int) (uint64, error) {
	start := r.Offset()
	b, err := r.Bytes((nDigits + 1) / 2)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < nDigits; i++ {
		nibble := b[i/2] >> 4
		if i%2 == 1 {
			nibble = b[i/2] & 0x0F
		}
		if nibble > 9 {
			return 0, fmt.Errorf("%w: nibble 0x%X at offset %d", ErrInvalidDigit, nibble, start+i/2)
		}
		v = v*10 + uint64(nibble)
	}
	return v, nil
}
