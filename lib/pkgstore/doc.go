// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgstore implements Depot's content-addressed package store:
// a persistent, deduplicating blob store that maps a 128-bit content
// hash to an immutable byte payload, backed by a compact binary index
// and a bounded in-process recency cache.
//
// The package is organized in layers, each usable independently:
//
//   - Hashing: BLAKE3 in domain-separated keyed mode, truncated to
//     128 bits. The hash of a blob's bytes is its identity; identical
//     content is stored exactly once. Callers can substitute their own
//     hash function via WithHasher.
//
//   - Blob layout: blobs live at paths derived solely from their hash,
//     sharded two levels deep by hex prefix
//     (packages/aa/bb/<hex>.blob) so no directory ever holds more than
//     ~1/65536 of the total blob count.
//
//   - Index: an in-memory table persisted as a fixed-layout binary
//     snapshot (index.bin) plus an append-only journal (index.log) of
//     fixed-size insert/delete records. Puts append to the journal;
//     garbage collection and compaction rewrite the snapshot to a temp
//     file and atomically rename it into place. On open, the snapshot
//     is loaded and the journal replayed.
//
//   - Compression: optional per-blob transparent compression (LZ4 or
//     zstd), recorded in the index entry's flags field. Hashes are
//     always computed on uncompressed bytes, so deduplication and
//     verification work across compression settings. The default is
//     uncompressed storage.
//
//   - Recency cache: a bounded LRU of decoded packages keyed by hash.
//     Because keys are content hashes and blobs are immutable, a cache
//     hit never needs revalidation.
//
//   - Tags: mutable name-to-hash pointers (dist-tags) stored as one
//     CBOR file per tag, sharded like blobs.
//
// Durability ordering: a blob is written and fsynced to its final path
// before the index records it, so a crash can at worst leave an orphan
// blob with no index entry, never an index entry pointing at a missing
// blob.
package pkgstore
