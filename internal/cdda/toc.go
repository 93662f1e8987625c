package cdda

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CD clock constants
const (
	FramesPerSecond = 75  // CD audio frames (sectors) per second
	LeadInFrames    = 150 // 2-second pre-gap before track 1, included in absolute time
	MaxTrack        = 99
	LeadoutTrack    = 0xAA // Red Book track number for the lead-out
)

// TrackType indicates whether a track is audio or data
type TrackType int

const (
	TrackTypeAudio TrackType = iota
	TrackTypeData
)

func (t TrackType) String() string {
	if t == TrackTypeData {
		return "data"
	}
	return "audio"
}

func (t TrackType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TrackType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "audio":
		*t = TrackTypeAudio
	case "data":
		*t = TrackTypeData
	default:
		return fmt.Errorf("unknown track type %q", b)
	}
	return nil
}

// TrackTypeFromControl maps the Q-channel control nibble to a track type.
// Control bit 2 set = data track.
func TrackTypeFromControl(control uint8) TrackType {
	if control&0x04 != 0 {
		return TrackTypeData
	}
	return TrackTypeAudio
}

// Track represents a single track from the CD TOC
type Track struct {
	Num    int
	Offset int // absolute frames, lead-in included
	Type   TrackType
}

// IsAudio returns true if this is an audio track
func (t Track) IsAudio() bool {
	return t.Type == TrackTypeAudio
}

// TOC represents a CD Table of Contents
type TOC struct {
	FirstTrack    int
	LastTrack     int
	LeadoutOffset int
	Tracks        []Track
}

// Validate checks the invariants the disc ID algorithm relies on: track
// numbers within 1..99 and ascending, offsets ascending, lead-out past the
// last track.
func (toc TOC) Validate() error {
	if len(toc.Tracks) == 0 {
		return errors.New("toc has no tracks")
	}
	if toc.FirstTrack < 1 || toc.LastTrack > MaxTrack || toc.FirstTrack > toc.LastTrack {
		return fmt.Errorf("toc track range %d-%d invalid", toc.FirstTrack, toc.LastTrack)
	}
	prev := Track{Num: 0, Offset: -1}
	for _, t := range toc.Tracks {
		if t.Num < toc.FirstTrack || t.Num > toc.LastTrack {
			return fmt.Errorf("track %d outside %d-%d", t.Num, toc.FirstTrack, toc.LastTrack)
		}
		if t.Num <= prev.Num {
			return fmt.Errorf("track %d follows track %d", t.Num, prev.Num)
		}
		if t.Offset <= prev.Offset {
			return fmt.Errorf("track %d offset %d not after track %d offset %d", t.Num, t.Offset, prev.Num, prev.Offset)
		}
		prev = t
	}
	if toc.LeadoutOffset <= prev.Offset {
		return fmt.Errorf("lead-out %d not after last track offset %d", toc.LeadoutOffset, prev.Offset)
	}
	return nil
}

// Length returns the frame length of the track at index i, measured to the
// next track start or the lead-out.
func (toc TOC) Length(i int) int {
	if i < 0 || i >= len(toc.Tracks) {
		return 0
	}
	if i+1 < len(toc.Tracks) {
		return toc.Tracks[i+1].Offset - toc.Tracks[i].Offset
	}
	return toc.LeadoutOffset - toc.Tracks[i].Offset
}

// TotalFrames returns the program length from the first track to the lead-out.
func (toc TOC) TotalFrames() int {
	if len(toc.Tracks) == 0 {
		return 0
	}
	return toc.LeadoutOffset - toc.Tracks[0].Offset
}

// String formats the TOC the way MusicBrainz URLs carry it:
// "first last leadout offset1 offset2 ...".
func (toc TOC) String() string {
	parts := []string{
		strconv.Itoa(toc.FirstTrack),
		strconv.Itoa(toc.LastTrack),
		strconv.Itoa(toc.LeadoutOffset),
	}
	for _, t := range toc.Tracks {
		parts = append(parts, strconv.Itoa(t.Offset))
	}
	return strings.Join(parts, " ")
}

// MSF is a minutes:seconds:frames position on the CD clock.
type MSF struct {
	Minutes int
	Seconds int
	Frames  int
}

// ToFrames converts the position to a frame count.
func (m MSF) ToFrames() int {
	return (m.Minutes*60+m.Seconds)*FramesPerSecond + m.Frames
}

func (m MSF) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", m.Minutes, m.Seconds, m.Frames)
}

// FramesToMSF converts a frame count to a clock position.
func FramesToMSF(frames int) MSF {
	if frames < 0 {
		frames = 0
	}
	secs := frames / FramesPerSecond
	return MSF{
		Minutes: secs / 60,
		Seconds: secs % 60,
		Frames:  frames % FramesPerSecond,
	}
}
