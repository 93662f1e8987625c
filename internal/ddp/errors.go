package ddp

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedID is returned when the DDPID record is not exactly 128 bytes.
	ErrMalformedID = errors.New("malformed DDPID")
	// ErrTruncatedStream is returned when a packet stream is not a whole number of packets.
	ErrTruncatedStream = errors.New("truncated stream")
	// ErrNoTracksFound is returned when the PQ stream yields no index-1 entries.
	ErrNoTracksFound = errors.New("no tracks found")
	// ErrMissingLeadout is returned when the PQ stream has no usable lead-out packet.
	ErrMissingLeadout = errors.New("missing lead-out")
	// ErrNotDDP is the sentinel wrapped by NotDDPError.
	ErrNotDDP = errors.New("not a DDP folder")
)

// NotDDPError is returned by Parse when detection is negative. The detection
// result rides along so callers can fall back to generic file handling.
type NotDDPError struct {
	Detection Detection
}

func (e *NotDDPError) Error() string {
	return fmt.Sprintf("not a DDP folder (confidence %.2f)", e.Detection.Confidence)
}

func (e *NotDDPError) Unwrap() error {
	return ErrNotDDP
}

// FileError records a structural failure in one file. The parse continues
// without that file unless it is the PQ descriptor.
type FileError struct {
	File string `json:"file"`
	Role Role   `json:"role"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.File, e.Role, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Warning is a recoverable issue found while parsing. Offset is the byte
// offset of the offending packet within File, or -1 when not applicable.
type Warning struct {
	File    string `json:"file,omitempty"`
	Role    Role   `json:"role"`
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.File != "" && w.Offset >= 0:
		return fmt.Sprintf("%s@%d: %s", w.File, w.Offset, w.Message)
	case w.File != "":
		return fmt.Sprintf("%s: %s", w.File, w.Message)
	}
	return w.Message
}

func warnAt(offset int, format string, args ...any) Warning {
	return Warning{Offset: offset, Message: fmt.Sprintf(format, args...)}
}
