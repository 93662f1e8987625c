package cdda

import "fmt"

// CalculateFreeDBID computes the 32-bit CDDB1/FreeDB disc ID as 8 lowercase
// hex digits. Layout: checksum of per-track start seconds (mod 255) in the
// top byte, program length in seconds in the middle 16 bits, track count in
// the low byte.
func CalculateFreeDBID(toc TOC) string {
	if len(toc.Tracks) == 0 {
		return fmt.Sprintf("%08x", 0)
	}

	n := 0
	for _, t := range toc.Tracks {
		n += digitSum(t.Offset / FramesPerSecond)
	}
	length := toc.LeadoutOffset/FramesPerSecond - toc.Tracks[0].Offset/FramesPerSecond

	id := uint32(n%0xFF)<<24 | uint32(length)<<8 | uint32(len(toc.Tracks))
	return fmt.Sprintf("%08x", id)
}

func digitSum(n int) int {
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}
