package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dgnsrekt/lingo/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the narration cache",
	Args:  cobra.NoArgs,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show narration cache usage",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		fmt.Println(subtle(store.Dir()))
		return printStats(os.Stdout, store.Stats())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached narration",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		before := store.Stats()
		if err := store.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		var freed int64
		for _, s := range before {
			if s.Level == cache.LevelDisk {
				freed = s.Size
			}
		}
		fmt.Printf("Cleared %s of narration\n", humanize.Bytes(uint64(freed))) //nolint:gosec
		return nil
	},
}

var pruneDays int

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete narration not used recently",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		n := store.Prune(time.Duration(pruneDays) * 24 * time.Hour)
		fmt.Printf("Removed %s\n", humanize.Comma(int64(n))+" "+plural(n, "entry", "entries"))
		return nil
	},
}

func printStats(w io.Writer, stats []cache.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tITEMS\tSIZE\tCAPACITY\tHIT RATE\tEVICTIONS")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\t%s\n",
			s.Level,
			humanize.Comma(int64(s.Items)),
			humanize.Bytes(uint64(s.Size)),     //nolint:gosec
			humanize.Bytes(uint64(s.Capacity)), //nolint:gosec
			s.HitRate()*100,
			humanize.Comma(s.Evictions),
		)
	}
	return tw.Flush()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	cachePruneCmd.Flags().IntVar(&pruneDays, "days", 7, "remove entries unused for this many days")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}
