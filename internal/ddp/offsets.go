package ddp

import (
	"fmt"
	"sort"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
)

// DeriveTOC turns ordered PQ entries into the table of contents used for
// disc identity.
// This is a pure function: PQ entries → TOC plus warnings.
//
// Offsets are absolute MSF frames, which already include the 150-frame
// lead-in (track 1 index 1 at 00:02:00 is frame 150). A stream whose first
// track starts before frame 150 is program-relative and gets shifted.
func DeriveTOC(entries []PQEntry) (cdda.TOC, []Warning, error) {
	var (
		warnings []Warning
		starts   = make(map[uint8]PQEntry)
		leadout  *PQEntry
	)

	for i := range entries {
		e := entries[i]
		switch {
		case e.IsLeadout():
			if leadout == nil || (leadout.IndexNumber != 1 && e.IndexNumber == 1) {
				leadout = &entries[i]
			}
		case e.IsTrackStart():
			if prev, ok := starts[e.TrackNumber]; ok {
				warnings = append(warnings, warnAt(e.Offset,
					"duplicate index 1 for track %d; keeping %s", e.TrackNumber, prev.MSF()))
				continue
			}
			starts[e.TrackNumber] = e
		}
	}

	if len(starts) == 0 {
		return cdda.TOC{}, warnings, ErrNoTracksFound
	}
	if leadout == nil {
		return cdda.TOC{}, warnings, ErrMissingLeadout
	}

	numbers := make([]int, 0, len(starts))
	for n := range starts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)

	shift := 0
	if first := starts[uint8(numbers[0])].AbsoluteFrames(); first < cdda.LeadInFrames {
		shift = cdda.LeadInFrames
		warnings = append(warnings, warnAt(-1,
			"track %d starts at frame %d, before the lead-in; offsets shifted by %d", numbers[0], first, shift))
	}

	toc := cdda.TOC{
		FirstTrack:    numbers[0],
		LastTrack:     numbers[len(numbers)-1],
		LeadoutOffset: leadout.AbsoluteFrames() + shift,
		Tracks:        make([]cdda.Track, 0, len(numbers)),
	}
	for _, n := range numbers {
		e := starts[uint8(n)]
		toc.Tracks = append(toc.Tracks, cdda.Track{
			Num:    n,
			Offset: e.AbsoluteFrames() + shift,
			Type:   cdda.TrackTypeFromControl(e.Control),
		})
	}

	last := toc.Tracks[len(toc.Tracks)-1].Offset
	if toc.LeadoutOffset <= last {
		return cdda.TOC{}, warnings, fmt.Errorf("%w: lead-out at frame %d is not after track %d at frame %d",
			ErrMissingLeadout, toc.LeadoutOffset, toc.LastTrack, last)
	}
	if toc.LastTrack-toc.FirstTrack+1 != len(toc.Tracks) {
		warnings = append(warnings, warnAt(-1, "track numbers %d-%d are not contiguous (%d tracks)",
			toc.FirstTrack, toc.LastTrack, len(toc.Tracks)))
	}
	if err := toc.Validate(); err != nil {
		return cdda.TOC{}, warnings, fmt.Errorf("derive toc: %w", err)
	}

	return toc, warnings, nil
}
