// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cmd/depot/cli"
)

func statsCommand() *cli.Command {
	var opts storeOptions
	return &cli.Command{
		Name:    "stats",
		Summary: "Show store statistics",
		Usage:   "depot stats [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			stats := store.Stats()
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "packages\t%d\n", stats.PackageCount)
			fmt.Fprintf(tw, "total size\t%d\n", stats.TotalSize)
			fmt.Fprintf(tw, "cache occupancy\t%d\n", stats.CacheOccupancy)
			fmt.Fprintf(tw, "cache hits\t%d\n", stats.CacheHits)
			fmt.Fprintf(tw, "cache misses\t%d\n", stats.CacheMisses)
			fmt.Fprintf(tw, "journal records\t%d\n", stats.JournalRecords)
			return tw.Flush()
		},
	}
}
