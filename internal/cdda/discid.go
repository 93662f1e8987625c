package cdda

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
)

// DiscIDLength is the length of a MusicBrainz disc ID.
const DiscIDLength = 28

// CalculateDiscID computes the MusicBrainz disc ID from a TOC.
// This is a pure function: TOC struct → 28-char disc ID string.
//
// Algorithm:
// 1. Format track data as hex ASCII string
// 2. SHA-1 hash the string
// 3. Base64 encode with MusicBrainz URL-safe substitutions
//
// Any other identity scheme gets its own function (see CalculateFreeDBID);
// this one never takes options.
func CalculateDiscID(toc TOC) string {
	// Build the hex string that gets hashed
	// Format: "%02X%02X" + "%08X" * 100
	// - First track number (1 byte as 2 hex chars)
	// - Last track number (1 byte as 2 hex chars)
	// - 100 offsets as 8 hex chars each:
	//   - Index 0: leadout offset
	//   - Index 1-99: track offsets (0 for unused)

	var sb strings.Builder
	sb.Grow(4 + 100*8)

	fmt.Fprintf(&sb, "%02X", toc.FirstTrack)
	fmt.Fprintf(&sb, "%02X", toc.LastTrack)

	offsets := tocOffsets(toc)
	for i := 0; i < len(offsets); i++ {
		fmt.Fprintf(&sb, "%08X", offsets[i])
	}

	hash := sha1.Sum([]byte(sb.String()))

	return encodeDiscID(hash[:])
}

// tocOffsets builds the 100-slot offset table: index 0 = lead-out,
// index 1-99 = track offsets.
func tocOffsets(toc TOC) [100]int {
	var offsets [100]int
	offsets[0] = toc.LeadoutOffset

	for _, track := range toc.Tracks {
		if track.Num >= 1 && track.Num <= MaxTrack {
			offsets[track.Num] = track.Offset
		}
	}
	return offsets
}

// encodeDiscID applies base64 with the MusicBrainz substitutions:
// + → .
// / → _
// = → -
func encodeDiscID(digest []byte) string {
	encoded := base64.StdEncoding.EncodeToString(digest)
	return strings.NewReplacer("+", ".", "/", "_", "=", "-").Replace(encoded)
}

// IsDiscID reports whether s has the shape of a MusicBrainz disc ID.
func IsDiscID(s string) bool {
	if len(s) != DiscIDLength {
		return false
	}
	for _, c := range s {
		if !isDiscIDChar(c) {
			return false
		}
	}
	return true
}

func isDiscIDChar(c rune) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}
