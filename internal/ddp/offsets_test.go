package ddp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
)

func mustPQ(t *testing.T, buf []byte) []PQEntry {
	t.Helper()
	entries, _, err := ParsePQ(buf)
	require.NoError(t, err)
	return entries
}

func offsetsOf(toc cdda.TOC) []int {
	out := make([]int, 0, len(toc.Tracks))
	for _, tr := range toc.Tracks {
		out = append(out, tr.Offset)
	}
	return out
}

func TestDeriveTOC(t *testing.T) {
	toc, warnings, err := DeriveTOC(mustPQ(t, samplePQ()))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 1, toc.FirstTrack)
	assert.Equal(t, 5, toc.LastTrack)
	assert.Equal(t, []int{150, 15150, 32400, 45525, 69900}, offsetsOf(toc))
	assert.Equal(t, 88875, toc.LeadoutOffset)
	assert.Len(t, toc.Tracks, 5, "one offset per distinct track")
	assert.Greater(t, toc.LeadoutOffset, toc.Tracks[len(toc.Tracks)-1].Offset)

	assert.Equal(t, "Vuu9VmPH.56sIW2cEyRZ.rQw8KY-", cdda.CalculateDiscID(toc))
}

func TestDeriveTOC_OutOfOrderInput(t *testing.T) {
	var buf []byte
	buf = append(buf, pqPacket(pqFields{trk: "AA", idx: "01", min: 9})...)
	buf = append(buf, pqPacket(pqFields{trk: "02", idx: "01", min: 4})...)
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "01", sec: 2})...)

	toc, _, err := DeriveTOC(mustPQ(t, buf))
	require.NoError(t, err)
	assert.Equal(t, []int{150, 18000}, offsetsOf(toc))
	assert.Equal(t, 40500, toc.LeadoutOffset)
}

func TestDeriveTOC_MissingLeadout(t *testing.T) {
	entries := mustPQ(t, samplePQ())
	entries = entries[:len(entries)-1]

	_, _, err := DeriveTOC(entries)
	assert.ErrorIs(t, err, ErrMissingLeadout)
}

func TestDeriveTOC_LeadoutBeforeLastTrack(t *testing.T) {
	var buf []byte
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "01", sec: 2})...)
	buf = append(buf, pqPacket(pqFields{trk: "02", idx: "01", min: 5})...)
	buf = append(buf, pqPacket(pqFields{trk: "AA", idx: "01", min: 4})...)

	_, _, err := DeriveTOC(mustPQ(t, buf))
	assert.ErrorIs(t, err, ErrMissingLeadout)
}

func TestDeriveTOC_NoTrackStarts(t *testing.T) {
	var buf []byte
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "00"})...)
	buf = append(buf, pqPacket(pqFields{trk: "AA", idx: "01", min: 4})...)

	_, _, err := DeriveTOC(mustPQ(t, buf))
	assert.ErrorIs(t, err, ErrNoTracksFound)
}

func TestDeriveTOC_ProgramRelativeShifted(t *testing.T) {
	var buf []byte
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "01"})...)
	buf = append(buf, pqPacket(pqFields{trk: "02", idx: "01", min: 3})...)
	buf = append(buf, pqPacket(pqFields{trk: "AA", idx: "01", min: 6})...)

	toc, warnings, err := DeriveTOC(mustPQ(t, buf))
	require.NoError(t, err)
	assert.Equal(t, []int{150, 13650}, offsetsOf(toc))
	assert.Equal(t, 27150, toc.LeadoutOffset)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "shifted by 150")
}

func TestDeriveTOC_DuplicateStartKeepsFirst(t *testing.T) {
	var buf []byte
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "01", sec: 2})...)
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "01", sec: 3})...)
	buf = append(buf, pqPacket(pqFields{trk: "AA", idx: "01", min: 4})...)

	toc, warnings, err := DeriveTOC(mustPQ(t, buf))
	require.NoError(t, err)
	assert.Equal(t, []int{150}, offsetsOf(toc))
	require.Len(t, warnings, 1)
	assert.Equal(t, PQPacketSize, warnings[0].Offset)
}

func TestDeriveTOC_DataTrackType(t *testing.T) {
	var buf []byte
	buf = append(buf, pqPacket(pqFields{trk: "01", idx: "01", sec: 2, cb1: "01"})...)
	buf = append(buf, pqPacket(pqFields{trk: "02", idx: "01", min: 30, cb1: "41"})...)
	buf = append(buf, pqPacket(pqFields{trk: "AA", idx: "01", min: 40, cb1: "41"})...)

	toc, _, err := DeriveTOC(mustPQ(t, buf))
	require.NoError(t, err)
	assert.Equal(t, cdda.TrackTypeAudio, toc.Tracks[0].Type)
	assert.Equal(t, cdda.TrackTypeData, toc.Tracks[1].Type)
}
