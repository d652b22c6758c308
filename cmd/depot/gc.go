// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cmd/depot/cli"
	"github.com/depot-foundation/depot/lib/pkgstore"
)

func gcCommand() *cli.Command {
	var (
		opts       storeOptions
		keepTagged bool
	)
	return &cli.Command{
		Name:    "gc",
		Summary: "Remove packages not in the keep set",
		Usage:   "depot gc [hash|tag ...] [flags]",
		Description: `Garbage-collect the store: every package whose hash is not named
on the command line (and, with --keep-tagged, not pointed at by any
tag) is deleted — blob file and index entry together.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("gc", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			flagSet.BoolVar(&keepTagged, "keep-tagged", true, "keep every package referenced by a tag")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Keep only tagged packages", Command: "depot gc"},
			{Description: "Keep two specific hashes plus tagged packages", Command: "depot gc 3f9a... 77c2..."},
		},
		Run: func(args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			var keep []pkgstore.ContentHash
			for _, arg := range args {
				hash, err := resolveHash(store, arg)
				if err != nil {
					return err
				}
				keep = append(keep, hash)
			}
			if keepTagged {
				tags, err := pkgstore.OpenTagStore(store.Root())
				if err != nil {
					return err
				}
				keep = append(keep, tags.Targets()...)
			}

			removed, err := store.GC(keep)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d packages\n", removed)
			return nil
		},
	}
}
