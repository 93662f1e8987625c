package ddp

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"

	"github.com/binaryphile/ddp-inspect/internal/binread"
)

// ID is the decoded 128-byte DDPID record.
type ID struct {
	Identifier     string `json:"identifier"`      // "DDP 2.00", "DDP 1.01", ...
	UPC            string `json:"upc,omitempty"`   // 13 digits; blank or zeros = not supplied
	MapStreamStart int    `json:"mss"`             // first sector of the map stream
	MapStreamLen   int    `json:"msl"`             // reserved in practice
	MediaNumber    string `json:"med,omitempty"`   // MED
	MasterID       string `json:"mid,omitempty"`   // master reference, 48 chars
	BookType       string `json:"bk,omitempty"`    // DDP 2.x only
	DiscType       string `json:"type,omitempty"`  // DDP 2.x only
	Sides          int    `json:"nside,omitempty"` // DDP 2.x only
	Side           int    `json:"side,omitempty"`
	Layers         int    `json:"nlayer,omitempty"`
	Layer          int    `json:"layer,omitempty"`
	Text           string `json:"txt,omitempty"`
}

// HasUPC reports whether a barcode was supplied.
func (id ID) HasUPC() bool {
	return strings.Trim(id.UPC, "0") != ""
}

// Legacy reports whether the record uses the DDP 1.x layout, which carries
// text at 88-127 and no book/side/layer fields.
func (id ID) Legacy() bool {
	return strings.HasPrefix(id.Identifier, "DDP 1")
}

// ParseID decodes a DDPID record.
// This is a pure function: 128 bytes → ID plus warnings.
//
// DDP 2.00 layout (ASCII):
//
//	0-7    identifier
//	8-20   UPC/EAN
//	21-28  MSS
//	29-36  MSL
//	37     MED
//	38-85  MID
//	86     BK
//	87-88  TYPE
//	89     NSIDE
//	90     SIDE
//	91     NLAYER
//	92     LAYER
//	93-94  reserved
//	95-127 TXT
func ParseID(buf []byte) (*ID, []Warning, error) {
	if len(buf) != IDSize {
		return nil, nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedID, len(buf), IDSize)
	}

	var (
		id       ID
		warnings []Warning
		err      error
	)
	r := binread.New(buf)

	numeric := func(n int, field string) int {
		start := r.Offset()
		v, _, derr := r.Decimal(n)
		if derr != nil {
			warnings = append(warnings, warnAt(start, "%s is not numeric", field))
		}
		return v
	}

	if id.Identifier, err = r.ASCII(8); err != nil {
		return nil, nil, err
	}
	if !strings.HasPrefix(id.Identifier, "DDP") {
		warnings = append(warnings, warnAt(0, "unexpected identifier %q", id.Identifier))
	}

	upcStart := r.Offset()
	if id.UPC, err = r.ASCII(13); err != nil {
		return nil, nil, err
	}
	id.UPC = strings.TrimSpace(id.UPC)
	if strings.Trim(id.UPC, "0123456789") != "" {
		warnings = append(warnings, warnAt(upcStart, "UPC %q contains non-digits", id.UPC))
	}

	id.MapStreamStart = numeric(8, "MSS")
	id.MapStreamLen = numeric(8, "MSL")
	if id.MediaNumber, err = r.ASCII(1); err != nil {
		return nil, nil, err
	}
	if id.MasterID, err = r.ASCII(48); err != nil {
		return nil, nil, err
	}

	if id.Legacy() {
		if err = r.Skip(2); err != nil {
			return nil, nil, err
		}
		if id.Text, err = r.ASCII(40); err != nil {
			return nil, nil, err
		}
		return &id, warnings, nil
	}

	if id.BookType, err = r.ASCII(1); err != nil {
		return nil, nil, err
	}
	if id.DiscType, err = r.ASCII(2); err != nil {
		return nil, nil, err
	}
	id.Sides = numeric(1, "NSIDE")
	id.Side = numeric(1, "SIDE")
	id.Layers = numeric(1, "NLAYER")
	id.Layer = numeric(1, "LAYER")
	if err = r.Skip(2); err != nil {
		return nil, nil, err
	}
	if id.Text, err = r.ASCII(33); err != nil {
		return nil, nil, err
	}

	return &id, warnings, nil
}

// Encode writes the record back into its 128-byte form. Fields that do not
// fit their width are an error rather than being truncated.
func (id ID) Encode() ([]byte, error) {
	b := cryptobyte.NewFixedBuilder(make([]byte, 0, IDSize))

	addText(b, id.Identifier, 8)
	addText(b, id.UPC, 13)
	addNumber(b, id.MapStreamStart, 8)
	addNumber(b, id.MapStreamLen, 8)
	addText(b, id.MediaNumber, 1)
	addText(b, id.MasterID, 48)

	if id.Legacy() {
		addText(b, "", 2)
		addText(b, id.Text, 40)
		return b.Bytes()
	}

	addText(b, id.BookType, 1)
	addText(b, id.DiscType, 2)
	addNumber(b, id.Sides, 1)
	addNumber(b, id.Side, 1)
	addNumber(b, id.Layers, 1)
	addNumber(b, id.Layer, 1)
	addText(b, "", 2)
	addText(b, id.Text, 33)
	return b.Bytes()
}

func addText(b *cryptobyte.Builder, s string, width int) {
	if len(s) > width {
		b.SetError(fmt.Errorf("field %q longer than %d bytes", s, width))
		return
	}
	b.AddBytes([]byte(s + strings.Repeat(" ", width-len(s))))
}

func addNumber(b *cryptobyte.Builder, v, width int) {
	s := fmt.Sprintf("%0*d", width, v)
	if v < 0 || len(s) > width {
		b.SetError(fmt.Errorf("value %d does not fit %d digits", v, width))
		return
	}
	b.AddBytes([]byte(s))
}
