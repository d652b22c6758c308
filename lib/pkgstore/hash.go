// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// HashSize is the byte length of a content hash (128 bits).
const HashSize = 16

// ContentHash is the 128-bit identity of a stored blob: the BLAKE3
// keyed hash of its uncompressed bytes, truncated to 16 bytes. The
// all-zero hash is reserved — it marks empty slots in the index file
// and can never name a valid blob.
type ContentHash [HashSize]byte

// Hasher computes the content hash of a byte sequence. It must be
// deterministic and stable across process restarts; the store trusts
// it completely and performs no collision handling.
type Hasher func(data []byte) ContentHash

// contentDomainKey is the BLAKE3 key for package content hashing.
// Domain separation keeps package hashes from colliding with hashes
// computed in other contexts (tag names, future domains). This is a
// protocol constant — changing it invalidates every stored hash. The
// bytes are the ASCII domain name zero-padded to 32 bytes so the key
// is readable in hex dumps.
var contentDomainKey = [32]byte{
	'd', 'e', 'p', 'o', 't', '.', 'p', 'a', 'c', 'k', 'a', 'g', 'e', '.',
	'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// tagNameDomainKey is the BLAKE3 key for hashing tag names to
// filesystem-safe paths. A separate domain from content hashing.
var tagNameDomainKey = [32]byte{
	'd', 'e', 'p', 'o', 't', '.', 't', 'a', 'g', '.', 'n', 'a', 'm', 'e',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashContent computes the content-domain hash of data. This is the
// store's default Hasher.
func HashContent(data []byte) ContentHash {
	return keyedHash128(contentDomainKey, data)
}

// hashTagName computes the tag-name-domain hash of a tag name.
func hashTagName(name string) ContentHash {
	return keyedHash128(tagNameDomainKey, []byte(name))
}

// keyedHash128 computes a BLAKE3 keyed hash and reads the first 16
// bytes of the extendable output.
func keyedHash128(key [32]byte, data []byte) ContentHash {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("pkgstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)

	var h ContentHash
	digest := hasher.Digest()
	if _, err := digest.Read(h[:]); err != nil {
		panic("pkgstore: BLAKE3 digest read failed: " + err.Error())
	}
	return h
}

// String returns the lowercase hex form of the hash.
func (h ContentHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the reserved all-zero hash.
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}

// ParseContentHash parses a 32-character hex string into a ContentHash.
func ParseContentHash(s string) (ContentHash, error) {
	if len(s) != HashSize*2 {
		return ContentHash{}, fmt.Errorf("content hash must be %d hex characters, got %d", HashSize*2, len(s))
	}
	var h ContentHash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return ContentHash{}, fmt.Errorf("parsing content hash %q: %w", s, err)
	}
	return h, nil
}
