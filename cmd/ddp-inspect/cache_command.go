package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the lookup cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached lookups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cache := ctx.openCache()
			if cache.Path() == "" {
				fmt.Fprintln(out, "Lookup cache is disabled")
				return nil
			}
			entries := cache.List()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Cache %s is empty\n", cache.Path())
				return nil
			}

			const stampLayout = "2006-01-02 15:04"
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				title := "-"
				if len(e.Result.Matches) > 0 {
					top := e.Result.Matches[0]
					title = top.Artist + " - " + top.Title
				}
				rows = append(rows, []string{
					e.DiscID,
					string(e.Result.Outcome),
					strconv.Itoa(len(e.Result.Matches)),
					title,
					e.CachedAt.Local().Format(stampLayout),
				})
			}
			printTable(out, []column{txt("Disc ID"), txt("Outcome"), num("Matches"), txt("Best match"), txt("Cached")}, rows)
			fmt.Fprintf(out, "%d entries in %s\n", len(entries), cache.Path())
			return nil
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <disc-id>",
		Short: "Forget one cached lookup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cdda.IsDiscID(args[0]) {
				return fmt.Errorf("%q is not a MusicBrainz disc ID", args[0])
			}
			cache := ctx.openCache()
			if _, ok := cache.Lookup(args[0]); !ok {
				return fmt.Errorf("disc ID %s is not cached", args[0])
			}
			if err := cache.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := ctx.openCache()
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", count)
			return nil
		},
	}
}
