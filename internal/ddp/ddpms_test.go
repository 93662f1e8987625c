package ddp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapStream(t *testing.T) {
	entries, warnings, err := ParseMapStream(sampleMap(704, 0))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, entries, 6)

	first := entries[0]
	assert.Equal(t, "VVVM", first.Marker)
	assert.Equal(t, "D2", first.StreamType)
	assert.Equal(t, "DA", first.FileType)
	assert.True(t, first.IsAudio())
	assert.Equal(t, 15000, first.Length)
	assert.Equal(t, int64(15000*BytesPerSector), first.ByteLength)
	assert.Equal(t, 1, first.Track)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "USRC11234567", first.ISRC)
	assert.Equal(t, "AUDIO001.DAT", first.FileName)

	assert.Equal(t, 15000, entries[1].Start, "DSS accumulates")
	assert.Equal(t, "AUDIO005.DAT", entries[4].FileName, "order preserved")

	pq := entries[5]
	assert.Equal(t, "PQ DESCR", pq.Subcode)
	assert.False(t, pq.IsAudio())
	assert.Equal(t, int64(704), pq.ByteLength)
}

func TestParseMapStream_Truncated(t *testing.T) {
	_, _, err := ParseMapStream(make([]byte, 200))
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestParseMapStream_Empty(t *testing.T) {
	entries, warnings, err := ParseMapStream(nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, warnings)
}

func TestParseMapStream_BadPacketsDropped(t *testing.T) {
	bad := mapPacket(mapFields{dsl: 100, cdm: "DA", track: 2, fileName: "B.DAT"})
	copy(bad[14:22], "12X45678")

	var buf []byte
	buf = append(buf, mapPacket(mapFields{dsl: 100, cdm: "DA", track: 1, fileName: "A.DAT"})...)
	buf = append(buf, bad...)
	buf = append(buf, make([]byte, MapPacketSize)...)
	buf = append(buf, mapPacket(mapFields{dsl: 100, cdm: "DA", track: 3, fileName: "C.DAT"})...)

	entries, warnings, err := ParseMapStream(buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A.DAT", entries[0].FileName)
	assert.Equal(t, "C.DAT", entries[1].FileName)

	require.Len(t, warnings, 2)
	assert.Equal(t, MapPacketSize, warnings[0].Offset)
	assert.Contains(t, warnings[0].Message, "DSL")
	assert.Equal(t, 2*MapPacketSize, warnings[1].Offset)
	assert.Contains(t, warnings[1].Message, "blank")
}

func TestParseMapStream_NonStandardMarkerWarnedOnce(t *testing.T) {
	var buf []byte
	for i := 1; i <= 3; i++ {
		buf = append(buf, mapPacket(mapFields{marker: "DDP2", dsl: 10, cdm: "DA", track: i, fileName: "T.DAT"})...)
	}

	entries, warnings, err := ParseMapStream(buf)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, `"DDP2"`)
}
