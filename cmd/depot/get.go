// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cmd/depot/cli"
)

func getCommand() *cli.Command {
	var (
		opts   storeOptions
		output string
	)
	return &cli.Command{
		Name:    "get",
		Summary: "Fetch a package payload by hash or tag",
		Usage:   "depot get <hash|tag> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			flagSet.StringVarP(&output, "output", "o", "", "write the payload to this file instead of stdout")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Fetch by hash to stdout", Command: "depot get 3f9ab2c1e7d45a6b8c0d1e2f3a4b5c6d"},
			{Description: "Fetch by tag to a file", Command: "depot get myapp/latest -o package.tar"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one hash or tag argument")
			}

			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			hash, err := resolveHash(store, args[0])
			if err != nil {
				return err
			}
			pkg, err := store.Get(hash)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = os.Stdout.Write(pkg.Content)
				return err
			}
			if err := os.WriteFile(output, pkg.Content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			return nil
		},
	}
}
