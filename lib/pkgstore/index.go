// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"encoding/binary"
	"math/bits"
)

// Index snapshot format constants. The snapshot (index.bin) is a
// fixed-layout little-endian file: a 64-byte header followed by a
// capacity-sized array of 40-byte entries, of which the first
// entry_count are populated. These values are protocol constants —
// changing them breaks on-disk compatibility.
const (
	indexVersion = 1

	// indexHeaderSize is the fixed header: magic(8) + version(4) +
	// entryCount(4) + capacity(4) + reserved(44).
	indexHeaderSize = 64

	// indexEntrySize is each entry: hash(16) + size(8) + flags(8) +
	// reserved(8). The reserved tail keeps an 8-byte stride and
	// leaves room for future per-entry fields.
	indexEntrySize = 40

	// initialIndexCapacity is the minimum capacity written to a
	// snapshot, so small stores don't resize on every put.
	initialIndexCapacity = 16
)

// indexMagic is the 8-byte index file signature.
var indexMagic = [8]byte{'D', 'E', 'P', 'O', 'T', 'I', 'D', 'X'}

// IndexEntry is one record in the package index: the content hash
// (the key), the uncompressed payload size, and a flags word whose
// low byte holds the compression tag. Entries are unique by hash.
type IndexEntry struct {
	Hash  ContentHash
	Size  uint64
	Flags uint64
}

// Compression returns the compression tag recorded in the entry's
// flags field.
func (e IndexEntry) Compression() Compression {
	return Compression(e.Flags & flagsCompressionMask)
}

// snapshotCapacity computes the entry-array capacity written to a
// snapshot holding count entries: max(count, initialIndexCapacity)
// rounded up to the next power of two.
func snapshotCapacity(count int) uint32 {
	if count < initialIndexCapacity {
		count = initialIndexCapacity
	}
	if count&(count-1) == 0 {
		return uint32(count)
	}
	return uint32(1) << bits.Len(uint(count))
}

// encodeSnapshot serializes the index table into the snapshot format.
// Entries are written in the table's own iteration order; the order is
// arbitrary but irrelevant, since decode rebuilds a map. Slots beyond
// entry_count stay zero and are skipped by decodeSnapshot.
func encodeSnapshot(table map[ContentHash]IndexEntry) []byte {
	capacity := snapshotCapacity(len(table))
	buffer := make([]byte, indexHeaderSize+int(capacity)*indexEntrySize)

	copy(buffer[0:8], indexMagic[:])
	binary.LittleEndian.PutUint32(buffer[8:12], indexVersion)
	binary.LittleEndian.PutUint32(buffer[12:16], uint32(len(table)))
	binary.LittleEndian.PutUint32(buffer[16:20], capacity)
	// buffer[20:64] reserved, zero.

	offset := indexHeaderSize
	for _, entry := range table {
		putIndexEntry(buffer[offset:offset+indexEntrySize], entry)
		offset += indexEntrySize
	}
	return buffer
}

// decodeSnapshot parses a snapshot into an index table.
//
// A buffer shorter than the header is ErrCorruptedIndex; wrong magic
// or version are hard errors (no best-effort recovery). A buffer that
// runs short mid-array is tolerated: parsing stops at the last
// complete entry. Entries with the reserved all-zero hash are empty
// slots and are skipped.
func decodeSnapshot(data []byte) (map[ContentHash]IndexEntry, error) {
	if len(data) < indexHeaderSize {
		return nil, ErrCorruptedIndex
	}

	var magic [8]byte
	copy(magic[:], data[0:8])
	if magic != indexMagic {
		return nil, &InvalidMagicError{Expected: indexMagic, Found: magic}
	}

	version := binary.LittleEndian.Uint32(data[8:12])
	if version != indexVersion {
		return nil, &VersionMismatchError{Expected: indexVersion, Found: version}
	}

	entryCount := binary.LittleEndian.Uint32(data[12:16])

	// entry_count is untrusted input: a corrupt header can claim
	// billions of entries. Cap the allocation hint at what the buffer
	// can actually hold so a truncated file cannot force a gigantic
	// eager allocation.
	hint := int(entryCount)
	if fit := (len(data) - indexHeaderSize) / indexEntrySize; hint > fit {
		hint = fit
	}
	table := make(map[ContentHash]IndexEntry, hint)

	offset := indexHeaderSize
	for i := uint32(0); i < entryCount; i++ {
		if offset+indexEntrySize > len(data) {
			break
		}
		entry := getIndexEntry(data[offset : offset+indexEntrySize])
		offset += indexEntrySize
		if entry.Hash.IsZero() {
			continue
		}
		table[entry.Hash] = entry
	}
	return table, nil
}

func putIndexEntry(buffer []byte, entry IndexEntry) {
	copy(buffer[0:16], entry.Hash[:])
	binary.LittleEndian.PutUint64(buffer[16:24], entry.Size)
	binary.LittleEndian.PutUint64(buffer[24:32], entry.Flags)
	// buffer[32:40] reserved, zero.
}

func getIndexEntry(buffer []byte) IndexEntry {
	var entry IndexEntry
	copy(entry.Hash[:], buffer[0:16])
	entry.Size = binary.LittleEndian.Uint64(buffer[16:24])
	entry.Flags = binary.LittleEndian.Uint64(buffer[24:32])
	return entry
}
