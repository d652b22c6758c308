// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cmd/depot/cli"
	"github.com/depot-foundation/depot/lib/pkgstore"
)

func verifyCommand() *cli.Command {
	var (
		opts storeOptions
		all  bool
	)
	return &cli.Command{
		Name:    "verify",
		Summary: "Re-hash stored blobs and report corruption",
		Usage:   "depot verify [hash|tag ...] [flags]",
		Description: `Re-read each blob from disk, recompute its content hash from
scratch, and compare it to the hash it is stored under. This catches
bit rot and external tampering that the index cannot see.

A failed verification is reported, not fatal: re-fetch and re-store
the damaged package. The command exits nonzero if any blob fails.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			flagSet.BoolVar(&all, "all", false, "verify every package in the index")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("give hashes/tags to verify, or --all")
			}

			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			var hashes []pkgstore.ContentHash
			if all {
				hashes = store.List()
			} else {
				for _, arg := range args {
					hash, err := resolveHash(store, arg)
					if err != nil {
						return err
					}
					hashes = append(hashes, hash)
				}
			}

			failed := 0
			for _, hash := range hashes {
				if store.Verify(hash) {
					fmt.Printf("ok\t%s\n", hash)
				} else {
					fmt.Printf("CORRUPT\t%s\n", hash)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d packages failed verification", failed, len(hashes))
			}
			return nil
		},
	}
}
