// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import "path/filepath"

// Directory and file names within the store root.
const (
	packagesDir = "packages"
	tagsDir     = "tags"
	cacheDir    = "cache" // reserved for a future hot cache; created empty

	indexFileName   = "index.bin"
	journalFileName = "index.log"

	blobExtension = ".blob"
)

// BlobPath returns the path of the blob for hash under root:
//
//	<root>/packages/<hex[:2]>/<hex[2:4]>/<hex>.blob
//
// Two levels of two-hex-digit sharding bound any single directory to
// ~1/65536 of the total blob count. The mapping is pure — no
// filesystem access, no failure modes.
func BlobPath(root string, hash ContentHash) string {
	h := hash.String()
	return filepath.Join(root, packagesDir, h[:2], h[2:4], h+blobExtension)
}

// tagPath returns the path of the tag record file for a tag name,
// sharded by the tag-name-domain hash:
//
//	<root>/tags/<hex[:2]>/<hex[2:4]>/<hex>.cbor
func tagPath(root, name string) string {
	h := hashTagName(name).String()
	return filepath.Join(root, tagsDir, h[:2], h[2:4], h+".cbor")
}
