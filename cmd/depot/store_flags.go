// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/lib/config"
	"github.com/depot-foundation/depot/lib/pkgstore"
)

// storeOptions carries the flags shared by every store-touching
// command: config file path and per-invocation overrides.
type storeOptions struct {
	configPath  string
	root        string
	compression string
}

// addFlags registers the shared flags on a command's flag set.
func (o *storeOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "config file path (default $DEPOT_CONFIG)")
	flagSet.StringVar(&o.root, "store", "", "store root directory (overrides config)")
	flagSet.StringVar(&o.compression, "compression", "", "blob compression for new puts: none, lz4, zstd (overrides config)")
}

// open loads configuration, applies overrides, and opens the store.
func (o *storeOptions) open() (*pkgstore.Store, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.StoreRoot = o.root
	}
	if o.compression != "" {
		cfg.Compression = o.compression
	}

	compression, err := pkgstore.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	opts := []pkgstore.Option{
		pkgstore.WithCompression(compression),
		pkgstore.WithLogger(logger),
	}
	if cfg.CacheCapacity > 0 {
		opts = append(opts, pkgstore.WithCacheCapacity(cfg.CacheCapacity))
	}

	store, err := pkgstore.Open(cfg.StoreRoot, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.StoreRoot, err)
	}
	return store, nil
}

// resolveHash interprets arg as a hex content hash, falling back to a
// tag lookup when it isn't one.
func resolveHash(store *pkgstore.Store, arg string) (pkgstore.ContentHash, error) {
	if hash, err := pkgstore.ParseContentHash(arg); err == nil {
		return hash, nil
	}

	tags, err := pkgstore.OpenTagStore(store.Root())
	if err != nil {
		return pkgstore.ContentHash{}, err
	}
	if hash, ok := tags.Resolve(arg); ok {
		return hash, nil
	}
	return pkgstore.ContentHash{}, fmt.Errorf("%q is neither a content hash nor a known tag", arg)
}
