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
	"github.com/depot-foundation/depot/lib/pkgstore"
)

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:        "tag",
		Summary:     "Manage named pointers to packages",
		Description: "Tags are mutable, human-readable names for content hashes.\nA tag always points at exactly one package; setting it again\nmoves the pointer.",
		Subcommands: []*cli.Command{
			tagSetCommand(),
			tagListCommand(),
			tagRemoveCommand(),
			tagResolveCommand(),
		},
	}
}

func tagSetCommand() *cli.Command {
	var opts storeOptions
	return &cli.Command{
		Name:    "set",
		Summary: "Point a tag at a package",
		Usage:   "depot tag set <name> <hash> [flags]",
		Examples: []cli.Example{
			{Description: "Name a stored package", Command: "depot tag set lodash/latest 4f2a9c1e8b7d6035a1b2c3d4e5f60718"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("set", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: depot tag set <name> <hash>")
			}
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			hash, err := resolveHash(store, args[1])
			if err != nil {
				return err
			}
			if _, ok := store.Entry(hash); !ok {
				return fmt.Errorf("package %s not in store", hash)
			}

			tags, err := pkgstore.OpenTagStore(store.Root())
			if err != nil {
				return err
			}
			return tags.Set(args[0], hash)
		},
	}
}

func tagListCommand() *cli.Command {
	var opts storeOptions
	return &cli.Command{
		Name:    "list",
		Summary: "List tags, optionally filtered by prefix",
		Usage:   "depot tag list [prefix] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			tags, err := pkgstore.OpenTagStore(store.Root())
			if err != nil {
				return err
			}

			records := tags.List(prefix)
			sort.Slice(records, func(i, j int) bool {
				return records[i].Name < records[j].Name
			})

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			for _, record := range records {
				fmt.Fprintf(tw, "%s\t%s\n", record.Name, record.Target)
			}
			return tw.Flush()
		},
	}
}

func tagRemoveCommand() *cli.Command {
	var opts storeOptions
	return &cli.Command{
		Name:    "rm",
		Summary: "Remove a tag",
		Usage:   "depot tag rm <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rm", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: depot tag rm <name>")
			}
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			tags, err := pkgstore.OpenTagStore(store.Root())
			if err != nil {
				return err
			}
			return tags.Delete(args[0])
		},
	}
}

func tagResolveCommand() *cli.Command {
	var opts storeOptions
	return &cli.Command{
		Name:    "resolve",
		Summary: "Print the hash a tag points at",
		Usage:   "depot tag resolve <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			opts.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: depot tag resolve <name>")
			}
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			tags, err := pkgstore.OpenTagStore(store.Root())
			if err != nil {
				return err
			}
			hash, ok := tags.Resolve(args[0])
			if !ok {
				return fmt.Errorf("tag %q not found", args[0])
			}
			fmt.Println(hash)
			return nil
		},
	}
}
