// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/depot-foundation/depot/cmd/depot/cli"
	"github.com/depot-foundation/depot/lib/version"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "depot",
		Summary: "Content-addressed package store",
		Description: `Depot stores immutable package blobs under their content hash.

Identical content is stored exactly once; packages are retrieved,
verified, and garbage-collected by hash. Mutable tags map readable
names to hashes.

The store location comes from --store, the config file (--config or
DEPOT_CONFIG), or ~/.depot/store, in that order.`,
		Subcommands: []*cli.Command{
			putCommand(),
			getCommand(),
			verifyCommand(),
			gcCommand(),
			listCommand(),
			statsCommand(),
			tagCommand(),
			versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Store a package payload and print its hash",
				Command:     "depot put package.tar",
			},
			{
				Description: "Fetch a package by hash",
				Command:     "depot get 3f9ab2c1e7d45a6b8c0d1e2f3a4b5c6d -o package.tar",
			},
			{
				Description: "Drop everything not reachable from a tag",
				Command:     "depot gc --keep-tagged",
			},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}
