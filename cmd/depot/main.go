// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Command depot is the CLI for the Depot content-addressed package
// store: put, get, verify, garbage-collect, list, and tag packages in
// a local store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}
