package ddp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, warnings, err := ParseID(idRecord("0886446672632"))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "DDP 2.00", id.Identifier)
	assert.Equal(t, "0886446672632", id.UPC)
	assert.True(t, id.HasUPC())
	assert.Equal(t, 0, id.MapStreamStart)
	assert.Equal(t, 350000, id.MapStreamLen)
	assert.Equal(t, "C", id.MediaNumber)
	assert.Equal(t, "Test Album Master - 2024", id.MasterID)
	assert.Equal(t, "1", id.BookType)
	assert.Equal(t, "CD", id.DiscType)
	assert.Equal(t, 1, id.Sides)
	assert.Equal(t, 1, id.Layer)
	assert.Equal(t, "Generated for testing", id.Text)
	assert.False(t, id.Legacy())
}

func TestParseID_WrongLength(t *testing.T) {
	for _, n := range []int{0, 127, 129} {
		_, _, err := ParseID(make([]byte, n))
		assert.ErrorIs(t, err, ErrMalformedID, "length %d", n)
	}
}

func TestParseID_UPCNotSupplied(t *testing.T) {
	for _, upc := range []string{"", "0000000000000"} {
		id, warnings, err := ParseID(idRecord(upc))
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.False(t, id.HasUPC(), "UPC %q", upc)
	}
}

func TestParseID_Warnings(t *testing.T) {
	b := idRecord("08864466X2632")
	copy(b[0:8], "XYZ 9.99")
	copy(b[21:29], "12AB5678")

	id, warnings, err := ParseID(b)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	assert.Equal(t, 0, warnings[0].Offset)
	assert.Equal(t, 8, warnings[1].Offset)
	assert.Contains(t, warnings[1].Message, "non-digits")
	assert.Equal(t, 21, warnings[2].Offset)
	assert.Equal(t, "08864466X2632", id.UPC, "kept as supplied")
}

func TestParseID_Legacy(t *testing.T) {
	b := []byte(strings.Repeat(" ", IDSize))
	field(b, 0, 8, "DDP 1.01")
	field(b, 8, 13, "0724349837421")
	field(b, 21, 8, "00000000")
	field(b, 29, 8, "00000000")
	field(b, 88, 40, "Legacy master text")

	id, warnings, err := ParseID(b)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, id.Legacy())
	assert.Equal(t, "Legacy master text", id.Text)
	assert.Empty(t, id.DiscType)
}

func TestID_EncodeRoundTrip(t *testing.T) {
	inputs := [][]byte{
		idRecord("0886446672632"),
		idRecord(""),
		idRecord("0000000000000"),
	}
	legacy := []byte(strings.Repeat(" ", IDSize))
	field(legacy, 0, 8, "DDP 1.01")
	field(legacy, 88, 40, "old")
	inputs = append(inputs, legacy)

	for _, in := range inputs {
		first, _, err := ParseID(in)
		require.NoError(t, err)

		encoded, err := first.Encode()
		require.NoError(t, err)
		require.Len(t, encoded, IDSize)

		second, _, err := ParseID(encoded)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, first.UPC, second.UPC)
	}
}

func TestID_EncodeRejectsOverflow(t *testing.T) {
	id := ID{Identifier: "DDP 2.00", UPC: "08864466726321234"}
	_, err := id.Encode()
	assert.Error(t, err)

	id = ID{Identifier: "DDP 2.00", Sides: 12}
	_, err = id.Encode()
	assert.Error(t, err)
}
