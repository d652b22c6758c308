// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest defines the CBOR package-manifest payload and the
// codec that decodes it out of store blobs.
//
// The store core never interprets blob contents; this package is one
// concrete PackageCodec a caller can plug in. Resolvers, lockfile
// logic, and registries live elsewhere — a manifest here is only the
// declarative metadata that travels inside a package blob.
package manifest

import (
	"fmt"

	"github.com/depot-foundation/depot/lib/codec"
	"github.com/depot-foundation/depot/lib/pkgstore"
)

// Manifest is the metadata document stored at the head of a package
// blob.
type Manifest struct {
	// Name is the package name (required).
	Name string `cbor:"name"`

	// Version is the package version string (required). The store
	// does not parse it; version semantics belong to the resolver.
	Version string `cbor:"version"`

	// Description is optional free-form text.
	Description string `cbor:"description,omitempty"`

	// Dependencies maps dependency names to version constraints.
	Dependencies map[string]string `cbor:"dependencies,omitempty"`
}

// Validate checks the required fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %q: version is required", m.Name)
	}
	return nil
}

// Encode serializes a manifest to deterministic CBOR, suitable for
// Store.Put.
func Encode(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest %q: %w", m.Name, err)
	}
	return data, nil
}

// Codec decodes manifest blobs. It implements pkgstore.PackageCodec:
// pass it to pkgstore.Open via WithCodec and Get returns packages
// whose Manifest field is a *Manifest.
type Codec struct{}

// Decode parses content as a CBOR manifest.
func (Codec) Decode(hash pkgstore.ContentHash, content []byte) (*pkgstore.Package, error) {
	var m Manifest
	if err := codec.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", hash, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", hash, err)
	}
	return &pkgstore.Package{Hash: hash, Content: content, Manifest: &m}, nil
}
