// Package ddp parses Disc Description Protocol folders: the DDPID record,
// the DDPMS map stream, the DDPPQ table of contents and optional CD-TEXT.
// Audio streams are never read.
package ddp

import (
	"fmt"
	"log/slog"

	concpool "github.com/sourcegraph/conc/pool"

	"github.com/binaryphile/ddp-inspect/internal/cdtext"
	"github.com/binaryphile/ddp-inspect/internal/logging"
)

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *parseOptions) {
		o.logger = logger
	}
}

// decoded holds what each descriptor parser produced.
type decoded struct {
	id         *ID
	mapEntries []MapEntry
	pq         []PQEntry
	text       *cdtext.Data
	warnings   [4][]Warning
	fileErrors [4]*FileError
}

const (
	slotID = iota
	slotMap
	slotPQ
	slotText
)

// Parse detects, decodes and assembles a DDP set. The four descriptor
// parsers run concurrently; assembly waits for all of them.
//
// A negative detection returns *NotDDPError. A missing or broken PQ
// descriptor is fatal (ErrNoTracksFound) as is a missing lead-out. Structural
// errors in the other descriptors are recorded in FileErrors.
func Parse(files []RawFile, opts ...Option) (*Parsed, error) {
	o := parseOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.NewComponentLogger(o.logger, "ddp")

	det := Detect(files)
	logger.Debug("detected DDP roles",
		logging.Float64("confidence", det.Confidence),
		logging.Bool("is_ddp", det.IsDDP),
	)
	if !det.IsDDP {
		return nil, &NotDDPError{Detection: det}
	}

	byName := make(map[string]RawFile, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}
	input := func(role Role) (RawFile, bool) {
		name, ok := det.FileFor(role)
		if !ok {
			return RawFile{}, false
		}
		f := byName[name]
		return f, f.Bytes != nil
	}

	pqFile, ok := input(RolePQ)
	if !ok {
		return nil, fmt.Errorf("%w: no readable PQ descriptor", ErrNoTracksFound)
	}

	var d decoded
	p := concpool.New().WithErrors()

	if f, ok := input(RoleID); ok {
		p.Go(func() error {
			id, w, err := ParseID(f.Bytes)
			d.id = id
			d.record(slotID, f.Name, RoleID, w, err)
			return nil
		})
	}
	if f, ok := input(RoleMapStream); ok {
		p.Go(func() error {
			entries, w, err := ParseMapStream(f.Bytes)
			d.mapEntries = entries
			d.record(slotMap, f.Name, RoleMapStream, w, err)
			return nil
		})
	}
	p.Go(func() error {
		entries, w, err := ParsePQ(pqFile.Bytes)
		d.pq = entries
		d.record(slotPQ, pqFile.Name, RolePQ, w, err)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrNoTracksFound, pqFile.Name, err)
		}
		return nil
	})
	if f, ok := input(RoleCDText); ok {
		p.Go(func() error {
			text, cw, err := cdtext.Parse(f.Bytes)
			w := make([]Warning, 0, len(cw))
			for _, c := range cw {
				w = append(w, Warning{Offset: c.Offset, Message: c.Message})
			}
			d.text = text
			d.record(slotText, f.Name, RoleCDText, w, err)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	var warnings []Warning
	var fileErrors []FileError
	for i := range d.warnings {
		warnings = append(warnings, d.warnings[i]...)
		if d.fileErrors[i] != nil {
			fileErrors = append(fileErrors, *d.fileErrors[i])
		}
	}

	if d.mapEntries != nil {
		exempt := []string{det.Primary[RoleMapStream]}
		if name, ok := det.Primary[RoleID]; ok {
			exempt = append(exempt, name)
		}
		warnings = append(warnings, Reconcile(d.mapEntries, files, exempt...)...)
	}

	parsed, aw, err := Assemble(d.id, d.mapEntries, d.pq, d.text)
	for i := range aw {
		aw[i].File = pqFile.Name
		aw[i].Role = RolePQ
	}
	warnings = append(warnings, aw...)
	if err != nil {
		logger.Debug("assembly failed", logging.Error(err))
		return nil, err
	}

	parsed.Detection = det
	parsed.Warnings = warnings
	parsed.FileErrors = fileErrors
	parsed.Files = fileInfos(files, det)
	parsed.Summary.HasCDText = d.text != nil

	logger.Debug("parsed DDP",
		logging.Int("tracks", len(parsed.Tracks)),
		logging.Int("warnings", len(warnings)),
		logging.Int("file_errors", len(fileErrors)),
	)
	return parsed, nil
}

// record stores one parser's outcome. Each slot is written by exactly one
// goroutine.
func (d *decoded) record(slot int, name string, role Role, w []Warning, err error) {
	for i := range w {
		w[i].File = name
		w[i].Role = role
	}
	d.warnings[slot] = w
	if err != nil {
		d.fileErrors[slot] = &FileError{File: name, Role: role, Err: err}
	}
}

func fileInfos(files []RawFile, det Detection) []FileInfo {
	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		role := det.Roles[f.Name]
		out = append(out, FileInfo{
			Name:  f.Name,
			Size:  f.size(),
			Role:  role,
			Label: role.Label(),
		})
	}
	return out
}

// Errors returns the file errors as strings, for display.
func (p *Parsed) Errors() []string {
	out := make([]string, 0, len(p.FileErrors))
	for _, fe := range p.FileErrors {
		out = append(out, fe.Error())
	}
	return out
}

// HasIssues reports whether the parse produced any warnings or file errors.
func (p *Parsed) HasIssues() bool {
	return len(p.Warnings) > 0 || len(p.FileErrors) > 0
}
