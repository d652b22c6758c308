// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cmd/depot/cli"
	"github.com/depot-foundation/depot/lib/pkgstore"
)

func putCommand() *cli.Command {
	var (
		opts storeOptions
		tag  string
	)
	return &cli.Command{
		Name:    "put",
		Summary: "Store a package payload and print its content hash",
		Usage:   "depot put [file] [flags]",
		Description: `Store a package payload in the store.

Reads the payload from the given file, or from stdin when no file (or
"-") is given. Storing content that is already present is a no-op and
prints the same hash.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			flagSet.StringVar(&tag, "tag", "", "also point this tag at the stored package")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Store a file", Command: "depot put package.tar"},
			{Description: "Store from stdin and tag it", Command: "tar c . | depot put --tag myapp/latest"},
		},
		Run: func(args []string) error {
			content, err := readInput(args)
			if err != nil {
				return err
			}

			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			hash, err := store.Put(content)
			if err != nil {
				return err
			}

			if tag != "" {
				tags, err := pkgstore.OpenTagStore(store.Root())
				if err != nil {
					return err
				}
				if err := tags.Set(tag, hash); err != nil {
					return err
				}
			}

			fmt.Println(hash)
			return nil
		},
	}
}

// readInput reads the payload from the first positional argument, or
// stdin when no file (or "-") is given.
func readInput(args []string) ([]byte, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one file argument, got %d", len(args))
	}
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", args[0], err)
	}
	return content, nil
}
