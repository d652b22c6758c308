// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cmd/depot/cli"
)

func listCommand() *cli.Command {
	var (
		opts storeOptions
		long bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List stored package hashes",
		Usage:   "depot list [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			flagSet.BoolVarP(&long, "long", "l", false, "include size and compression")
			return flagSet
		},
		Run: func(args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			hashes := store.List()
			sort.Slice(hashes, func(i, j int) bool {
				return hashes[i].String() < hashes[j].String()
			})

			if !long {
				for _, hash := range hashes {
					fmt.Println(hash)
				}
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "HASH\tSIZE\tCOMPRESSION\n")
			for _, hash := range hashes {
				entry, ok := store.Entry(hash)
				if !ok {
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", hash, entry.Size, entry.Compression())
			}
			return tw.Flush()
		},
	}
}
