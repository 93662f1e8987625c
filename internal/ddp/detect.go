package ddp

import (
	"bytes"
	"fmt"
	"math"
	"path"
	"strings"
)

// MaxDescriptorSize is the largest file treated as a descriptor. Anything
// bigger is program material and is never read.
const MaxDescriptorSize = 20 * 1024 * 1024

// Packet sizes of the fixed-layout descriptor files
const (
	IDSize         = 128
	MapPacketSize  = 128
	PQPacketSize   = 64
	CDTextPackSize = 18
)

// Confidence penalties
const (
	penaltyMissing  = 0.3
	penaltyBadSize  = 0.1
	penaltySniffed  = 0.05
	detectThreshold = 0.5
)

// RawFile is one named input buffer. Size is the on-disk size; Bytes is nil
// for files that were not read (audio streams, oversize files).
type RawFile struct {
	Name  string
	Bytes []byte
	Size  int64
}

func (f RawFile) size() int64 {
	if f.Size > 0 {
		return f.Size
	}
	return int64(len(f.Bytes))
}

// Role is the logical part a file plays in a DDP set.
type Role int

const (
	RoleUnknown Role = iota
	RoleID
	RoleMapStream
	RolePQ
	RoleCDText
	RoleAudio
)

var roleNames = map[Role]string{
	RoleUnknown:   "unknown",
	RoleID:        "id",
	RoleMapStream: "map_stream",
	RolePQ:        "pq",
	RoleCDText:    "cdtext",
	RoleAudio:     "audio",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Label returns the human-readable role name used in file summaries.
func (r Role) Label() string {
	switch r {
	case RoleID:
		return "Disc ID"
	case RoleMapStream:
		return "Map Stream"
	case RolePQ:
		return "PQ Descriptor"
	case RoleCDText:
		return "CD-TEXT"
	case RoleAudio:
		return "Audio"
	}
	return "Other"
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	for role, name := range roleNames {
		if name == string(text) {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", text)
}

var mandatoryRoles = []Role{RoleID, RoleMapStream, RolePQ}

// Detection is the outcome of classifying a file set.
type Detection struct {
	IsDDP      bool            `json:"is_ddp"`
	Confidence float64         `json:"confidence"`
	Roles      map[string]Role `json:"roles"`   // file name → role
	Primary    map[Role]string `json:"primary"` // role → the file the parser will read
	Reasons    []string        `json:"reasons,omitempty"`

	sniffed map[Role]bool
}

// FileFor returns the name of the file chosen for role.
func (d Detection) FileFor(role Role) (string, bool) {
	name, ok := d.Primary[role]
	return name, ok
}

var audioExtensions = []string{".DAT", ".TRK", ".PCM", ".IMG", ".WAV"}

// Detect classifies files into DDP roles and scores how plausible the set
// is. It never fails: a negative result is returned for the caller to act on.
func Detect(files []RawFile) Detection {
	d := Detection{
		Roles:   make(map[string]Role, len(files)),
		Primary: make(map[Role]string),
		sniffed: make(map[Role]bool),
	}
	byName := make(map[string]RawFile, len(files))

	for _, f := range files {
		byName[strings.ToUpper(f.Name)] = f
		role := roleByName(f)
		d.Roles[f.Name] = role
		if role != RoleUnknown && role != RoleAudio {
			d.claim(role, f.Name)
		}
	}

	if name, ok := d.Primary[RoleMapStream]; ok {
		d.resolveFromMapStream(byName[strings.ToUpper(name)], byName)
	}

	for _, f := range files {
		if d.Roles[f.Name] != RoleUnknown || f.Bytes == nil {
			continue
		}
		if role := sniff(f); role != RoleUnknown {
			d.Roles[f.Name] = role
			if d.claim(role, f.Name) {
				d.sniffed[role] = true
				d.Reasons = append(d.Reasons, fmt.Sprintf("%s identified as %s by content", f.Name, role))
			}
		}
	}

	d.score(byName)
	return d
}

// claim makes name the primary file for role if none is set yet.
func (d *Detection) claim(role Role, name string) bool {
	if existing, ok := d.Primary[role]; ok {
		if existing != name {
			d.Reasons = append(d.Reasons, fmt.Sprintf("%s also looks like %s; using %s", name, role, existing))
		}
		return false
	}
	d.Primary[role] = name
	return true
}

func roleByName(f RawFile) Role {
	upper := strings.ToUpper(path.Base(f.Name))
	stem := strings.TrimSuffix(upper, path.Ext(upper))

	switch {
	case stem == "DDPID":
		return RoleID
	case stem == "DDPMS":
		return RoleMapStream
	case strings.Contains(upper, "CDTEXT"), strings.Contains(upper, "CD-TEXT"), strings.Contains(upper, "CD_TEXT"):
		return RoleCDText
	case hasAudioExtension(upper), f.size() > MaxDescriptorSize:
		return RoleAudio
	case strings.Contains(upper, "PQ"):
		return RolePQ
	}
	return RoleUnknown
}

func hasAudioExtension(upper string) bool {
	for _, ext := range audioExtensions {
		if strings.HasSuffix(upper, ext) {
			return true
		}
	}
	return false
}

// resolveFromMapStream reads DSI/SUB pairs out of the map stream without
// validating it, so renamed PQ and CD-TEXT files are still found.
func (d *Detection) resolveFromMapStream(ms RawFile, byName map[string]RawFile) {
	for off := 0; off+MapPacketSize <= len(ms.Bytes); off += MapPacketSize {
		pkt := ms.Bytes[off : off+MapPacketSize]
		sub := strings.ToUpper(strings.TrimSpace(string(pkt[30:38])))
		cdm := strings.ToUpper(strings.TrimSpace(string(pkt[38:40])))
		dsi := strings.TrimSpace(string(bytes.TrimRight(pkt[74:91], "\x00")))
		if dsi == "" {
			continue
		}
		f, ok := byName[strings.ToUpper(dsi)]
		if !ok {
			continue
		}

		var role Role
		switch {
		case sub == "PQ DESCR" || sub == "PQDESCR":
			role = RolePQ
		case strings.Contains(sub, "CDTEXT") || strings.Contains(sub, "CD-TEXT"):
			role = RoleCDText
		case cdm == "DA":
			role = RoleAudio
		default:
			continue
		}

		current := d.Roles[f.Name]
		if current == role {
			continue
		}
		if current != RoleUnknown && current != RoleAudio {
			continue
		}
		d.Roles[f.Name] = role
		if role != RoleAudio && d.claim(role, f.Name) {
			d.Reasons = append(d.Reasons, fmt.Sprintf("%s is the %s named by DDPMS", f.Name, role))
		}
	}
}

func sniff(f RawFile) Role {
	b := f.Bytes
	n := len(b)
	switch {
	case n == IDSize && bytes.HasPrefix(b, []byte("DDP ")):
		return RoleID
	case n > 0 && n%MapPacketSize == 0 && bytes.HasPrefix(b, []byte("VVVM")):
		return RoleMapStream
	case n > 0 && n%PQPacketSize == 0 && bytes.HasPrefix(b, []byte("VVVS")):
		return RolePQ
	case n > 0 && n%CDTextPackSize == 0 && b[0] >= 0x80 && b[0] <= 0x8F &&
		strings.HasSuffix(strings.ToUpper(f.Name), ".BIN"):
		return RoleCDText
	}
	return RoleUnknown
}

func (d *Detection) score(byName map[string]RawFile) {
	confidence := 1.0
	for _, role := range mandatoryRoles {
		name, ok := d.Primary[role]
		if !ok {
			confidence -= penaltyMissing
			d.Reasons = append(d.Reasons, fmt.Sprintf("no %s file", role))
			continue
		}
		if !sizedFor(role, byName[strings.ToUpper(name)].size()) {
			confidence -= penaltyBadSize
			d.Reasons = append(d.Reasons, fmt.Sprintf("%s has the wrong size for %s", name, role))
		}
		if d.sniffed[role] {
			confidence -= penaltySniffed
		}
	}
	confidence = math.Max(0, math.Round(confidence*100)/100)

	d.Confidence = confidence
	d.IsDDP = confidence >= detectThreshold
}

func sizedFor(role Role, size int64) bool {
	switch role {
	case RoleID:
		return size == IDSize
	case RoleMapStream:
		return size > 0 && size%MapPacketSize == 0
	case RolePQ:
		return size > 0 && size%PQPacketSize == 0
	case RoleCDText:
		return size > 0
	}
	return true
}
