package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/binaryphile/ddp-inspect/internal/metadata"
)

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "metadata <folder>",
		Short: "Write a manual metadata template seeded from the folder's CD-TEXT",
		Long: "The template can be completed by hand and passed to `lookup --metadata`\n" +
			"for discs MusicBrainz does not know.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			parsed, err := ctx.parseFolder(dir)
			if err != nil {
				return wrapParseError(dir, err)
			}
			album := metadata.FromParsed(parsed)

			if outPath == "" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(album)
			}
			if err := album.WriteJSON(ctx.fs, outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote metadata template to %s\n", outPath)
			for _, e := range album.Validate(parsed.Summary.TrackCount) {
				fmt.Fprintf(cmd.OutOrStdout(), "  to fill in: %v\n", e)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the template to this file instead of stdout")
	return cmd
}
