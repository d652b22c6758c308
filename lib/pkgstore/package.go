// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

// Package is a decoded package held in the recency cache and returned
// by Get. The store itself is agnostic to what a blob contains; the
// configured PackageCodec fills Manifest with whatever structure it
// understands, and Content always carries the verbatim blob bytes.
type Package struct {
	// Hash is the content hash the package was stored under.
	Hash ContentHash

	// Content is the uncompressed blob payload.
	Content []byte

	// Manifest is the codec's decoded view of the payload, or nil for
	// the raw passthrough codec. Its concrete type belongs to the
	// codec (for example *manifest.Manifest).
	Manifest any
}

// PackageCodec turns raw blob bytes into a structured Package. The
// store calls it once per cache miss; the result is shared through
// the recency cache, so implementations must return values that are
// safe for concurrent readers.
type PackageCodec interface {
	Decode(hash ContentHash, content []byte) (*Package, error)
}

// RawCodec is the default PackageCodec: a passthrough that wraps the
// bytes without interpreting them.
type RawCodec struct{}

// Decode wraps content in a Package with no manifest.
func (RawCodec) Decode(hash ContentHash, content []byte) (*Package, error) {
	return &Package{Hash: hash, Content: content}, nil
}
