// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
)

func testTable(n int) map[ContentHash]IndexEntry {
	table := make(map[ContentHash]IndexEntry, n)
	for i := 0; i < n; i++ {
		hash := HashContent([]byte(fmt.Sprintf("entry-%d", i)))
		table[hash] = IndexEntry{
			Hash:  hash,
			Size:  uint64(100 + i),
			Flags: uint64(CompressionLZ4),
		}
	}
	return table
}

func TestSnapshotRoundtrip(t *testing.T) {
	table := testTable(5)

	decoded, err := decodeSnapshot(encodeSnapshot(table))
	if err != nil {
		t.Fatalf("decodeSnapshot failed: %v", err)
	}
	if len(decoded) != len(table) {
		t.Fatalf("decoded %d entries, want %d", len(decoded), len(table))
	}
	for hash, want := range table {
		got, ok := decoded[hash]
		if !ok {
			t.Errorf("entry %s missing after round-trip", hash)
			continue
		}
		if got != want {
			t.Errorf("entry %s = %+v, want %+v", hash, got, want)
		}
	}
}

func TestSnapshotEmptyTable(t *testing.T) {
	data := encodeSnapshot(map[ContentHash]IndexEntry{})

	// Even an empty snapshot carries the minimum capacity of slots.
	wantLen := indexHeaderSize + initialIndexCapacity*indexEntrySize
	if len(data) != wantLen {
		t.Errorf("empty snapshot is %d bytes, want %d", len(data), wantLen)
	}

	decoded, err := decodeSnapshot(data)
	if err != nil {
		t.Fatalf("decodeSnapshot failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d entries from empty snapshot", len(decoded))
	}
}

func TestSnapshotCapacity(t *testing.T) {
	cases := []struct {
		count int
		want  uint32
	}{
		{0, 16},
		{1, 16},
		{16, 16},
		{17, 32},
		{32, 32},
		{33, 64},
		{1000, 1024},
	}
	for _, tc := range cases {
		if got := snapshotCapacity(tc.count); got != tc.want {
			t.Errorf("snapshotCapacity(%d) = %d, want %d", tc.count, got, tc.want)
		}
	}
}

func TestDecodeSnapshotShortHeader(t *testing.T) {
	_, err := decodeSnapshot(make([]byte, indexHeaderSize-1))
	if !errors.Is(err, ErrCorruptedIndex) {
		t.Errorf("short header: got %v, want ErrCorruptedIndex", err)
	}

	_, err = decodeSnapshot(nil)
	if !errors.Is(err, ErrCorruptedIndex) {
		t.Errorf("nil data: got %v, want ErrCorruptedIndex", err)
	}
}

func TestDecodeSnapshotBadMagic(t *testing.T) {
	data := encodeSnapshot(testTable(1))
	copy(data[0:8], "NOTDEPOT")

	_, err := decodeSnapshot(data)
	var magicErr *InvalidMagicError
	if !errors.As(err, &magicErr) {
		t.Fatalf("bad magic: got %v, want InvalidMagicError", err)
	}
	if string(magicErr.Found[:]) != "NOTDEPOT" {
		t.Errorf("Found = %q, want %q", magicErr.Found[:], "NOTDEPOT")
	}
}

func TestDecodeSnapshotBadVersion(t *testing.T) {
	data := encodeSnapshot(testTable(1))
	binary.LittleEndian.PutUint32(data[8:12], indexVersion+9)

	_, err := decodeSnapshot(data)
	var versionErr *VersionMismatchError
	if !errors.As(err, &versionErr) {
		t.Fatalf("bad version: got %v, want VersionMismatchError", err)
	}
	if versionErr.Found != indexVersion+9 {
		t.Errorf("Found = %d, want %d", versionErr.Found, indexVersion+9)
	}
}

func TestDecodeSnapshotSkipsZeroHashSlots(t *testing.T) {
	table := testTable(3)
	data := encodeSnapshot(table)

	// Claim more entries than are populated: the extra slots hold the
	// reserved zero hash and must be skipped, not indexed.
	binary.LittleEndian.PutUint32(data[12:16], 6)

	decoded, err := decodeSnapshot(data)
	if err != nil {
		t.Fatalf("decodeSnapshot failed: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("decoded %d entries, want 3 (zero slots skipped)", len(decoded))
	}
}

func TestDecodeSnapshotHugeEntryCountShortBuffer(t *testing.T) {
	// A corrupt header claiming billions of entries in a header-only
	// file must decode to an empty table, not pre-allocate a map sized
	// to the claim.
	data := make([]byte, indexHeaderSize)
	copy(data[0:8], indexMagic[:])
	binary.LittleEndian.PutUint32(data[8:12], indexVersion)
	binary.LittleEndian.PutUint32(data[12:16], 0xFFFFFFFF)

	decoded, err := decodeSnapshot(data)
	if err != nil {
		t.Fatalf("decodeSnapshot failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d entries from a header-only file", len(decoded))
	}

	// Same claim over a buffer holding two real entries: only the
	// complete entries come back.
	table := testTable(2)
	data = encodeSnapshot(table)
	binary.LittleEndian.PutUint32(data[12:16], 0xFFFFFFFF)
	data = data[:indexHeaderSize+2*indexEntrySize]

	decoded, err = decodeSnapshot(data)
	if err != nil {
		t.Fatalf("decodeSnapshot failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("decoded %d entries, want 2", len(decoded))
	}
}

func TestDecodeSnapshotTruncatedEntryArray(t *testing.T) {
	table := testTable(4)
	data := encodeSnapshot(table)

	// Cut the buffer mid-entry: decode stops at the last complete
	// entry rather than failing.
	cut := indexHeaderSize + 2*indexEntrySize + 7
	decoded, err := decodeSnapshot(data[:cut])
	if err != nil {
		t.Fatalf("decodeSnapshot failed on truncated array: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("decoded %d entries from truncated array, want 2", len(decoded))
	}
}

func TestIndexEntryCompression(t *testing.T) {
	entry := IndexEntry{Flags: uint64(CompressionZstd)}
	if got := entry.Compression(); got != CompressionZstd {
		t.Errorf("Compression() = %v, want zstd", got)
	}

	// High flag bits must not leak into the compression tag.
	entry.Flags = 0xff00 | uint64(CompressionLZ4)
	if got := entry.Compression(); got != CompressionLZ4 {
		t.Errorf("Compression() with high bits = %v, want lz4", got)
	}
}
