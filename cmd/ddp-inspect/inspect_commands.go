package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
	"github.com/binaryphile/ddp-inspect/internal/ddp"
	"github.com/binaryphile/ddp-inspect/internal/report"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect <folder>",
		Short: "Classify the files of a folder and score it as a DDP set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := ddp.LoadFolder(ctx.fs, args[0])
			if err != nil {
				return err
			}
			det := ddp.Detect(files)
			if asJSON {
				return writeJSON(cmd, det)
			}
			printDetection(cmd.OutOrStdout(), files, det)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the detection as JSON")
	return cmd
}

func printDetection(out io.Writer, files []ddp.RawFile, det ddp.Detection) {
	sorted := make([]ddp.RawFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	primary := make(map[string]bool, len(det.Primary))
	for _, name := range det.Primary {
		primary[name] = true
	}

	rows := make([][]string, 0, len(sorted))
	for _, f := range sorted {
		role := det.Roles[f.Name]
		rows = append(rows, []string{
			f.Name,
			strconv.FormatInt(f.Size, 10),
			role.Label(),
			yesNo(primary[f.Name]),
		})
	}
	printTable(out, []column{txt("File"), num("Size"), txt("Role"), txt("Used")}, rows)

	fmt.Fprintf(out, "DDP: %s (confidence %.2f)\n", yesNo(det.IsDDP), det.Confidence)
	for _, reason := range det.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <folder>",
		Short: "Parse a DDP folder and show its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			parsed, err := ctx.parseFolder(dir)
			if err != nil {
				return wrapParseError(dir, err)
			}
			if asJSON {
				r := report.Build(parsed, report.WithTool("ddp-inspect", version), report.WithFolder(dir))
				if err := report.Write(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			} else {
				printParsed(cmd.OutOrStdout(), dir, parsed)
			}
			if ctx.config.Parse.Strict && parsed.HasIssues() {
				return errStrict
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the full report as JSON")
	cmd.Flags().Bool("strict", false, "Fail when the parse produced warnings or file errors")
	return cmd
}

func printParsed(out io.Writer, dir string, p *ddp.Parsed) {
	s := p.Summary
	fmt.Fprintf(out, "Folder: %s\n", dir)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Album:     %s\n", orDash(s.AlbumTitle))
	fmt.Fprintf(out, "Performer: %s\n", orDash(s.Performer))
	fmt.Fprintf(out, "UPC/EAN:   %s\n", orDash(s.UPC))
	fmt.Fprintf(out, "Tracks:    %d (%d-%d)\n", s.TrackCount, s.FirstTrack, s.LastTrack)
	fmt.Fprintf(out, "Length:    %s\n", cdda.FramesToMSF(s.TotalFrames))
	fmt.Fprintf(out, "CD-TEXT:   %s\n", yesNo(s.HasCDText))
	if p.ID != nil {
		fmt.Fprintf(out, "Master ID: %s\n", orDash(p.ID.MasterID))
	}
	fmt.Fprintln(out)

	printTracks(out, p.Tracks)
	printIssues(out, p)
}

func printTracks(out io.Writer, tracks []ddp.Track) {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			strconv.Itoa(t.Number),
			t.Start().String(),
			t.Length().String(),
			strconv.Itoa(t.PreGap),
			t.Type.String(),
			orDash(t.ISRC),
			orDash(t.Title),
		})
	}
	printTable(out, []column{num("#"), num("Start"), num("Length"), num("Pre-gap"), txt("Type"), txt("ISRC"), txt("Title")}, rows)
}

func printIssues(out io.Writer, p *ddp.Parsed) {
	if len(p.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(p.Warnings))
		for _, w := range p.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
	if len(p.FileErrors) > 0 {
		fmt.Fprintf(out, "\nFile errors (%d):\n", len(p.FileErrors))
		for _, e := range p.Errors() {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}

func newDiscIDCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discid <folder>",
		Short: "Compute the MusicBrainz and FreeDB disc IDs of a DDP folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			parsed, err := ctx.parseFolder(dir)
			if err != nil {
				return wrapParseError(dir, err)
			}
			out := cmd.OutOrStdout()
			discID := cdda.CalculateDiscID(parsed.TOC)
			fmt.Fprintf(out, "Disc ID:   %s\n", discID)
			fmt.Fprintf(out, "FreeDB ID: %s\n", cdda.CalculateFreeDBID(parsed.TOC))
			fmt.Fprintf(out, "TOC:       %s\n", parsed.TOC)
			for i, t := range parsed.TOC.Tracks {
				fmt.Fprintf(out, "  %2d  %6d  %s\n", t.Num, t.Offset, cdda.FramesToMSF(parsed.TOC.Length(i)))
			}
			fmt.Fprintf(out, "Lookup:    https://musicbrainz.org/cdtoc/%s\n", discID)
			return nil
		},
	}
}
