// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestJournal(t *testing.T) (*journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), journalFileName)
	j, err := openJournal(path)
	if err != nil {
		t.Fatalf("openJournal failed: %v", err)
	}
	t.Cleanup(func() { j.close() })
	return j, path
}

func journalTestEntry(i int) IndexEntry {
	hash := HashContent([]byte(fmt.Sprintf("journal-entry-%d", i)))
	return IndexEntry{Hash: hash, Size: uint64(10 * i), Flags: uint64(CompressionNone)}
}

func TestJournalAppendReplay(t *testing.T) {
	j, path := newTestJournal(t)

	entries := []IndexEntry{journalTestEntry(1), journalTestEntry(2), journalTestEntry(3)}
	for _, entry := range entries {
		if err := j.append(journalOpInsert, entry); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := j.append(journalOpDelete, entries[1]); err != nil {
		t.Fatalf("append delete failed: %v", err)
	}
	j.close()

	reopened, err := openJournal(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.close()

	table := make(map[ContentHash]IndexEntry)
	if err := reopened.replay(table); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if reopened.records != 4 {
		t.Errorf("records = %d, want 4", reopened.records)
	}
	if len(table) != 2 {
		t.Fatalf("table has %d entries after replay, want 2", len(table))
	}
	if _, ok := table[entries[1].Hash]; ok {
		t.Error("deleted entry survived replay")
	}
	for _, i := range []int{0, 2} {
		got, ok := table[entries[i].Hash]
		if !ok {
			t.Errorf("entry %d missing after replay", i)
		} else if got != entries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got, entries[i])
		}
	}
}

func TestJournalReplayTornTail(t *testing.T) {
	j, path := newTestJournal(t)

	if err := j.append(journalOpInsert, journalTestEntry(1)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := j.append(journalOpInsert, journalTestEntry(2)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	j.close()

	// Simulate a crash mid-append: a partial third record at the tail.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(make([]byte, journalRecordSize/2)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	reopened, err := openJournal(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.close()

	table := make(map[ContentHash]IndexEntry)
	if err := reopened.replay(table); err != nil {
		t.Fatalf("replay failed on torn tail: %v", err)
	}
	if reopened.records != 2 {
		t.Errorf("records = %d, want 2 (torn tail dropped)", reopened.records)
	}
	if len(table) != 2 {
		t.Errorf("table has %d entries, want 2", len(table))
	}

	// The torn tail was truncated away, so the file is back to a
	// record boundary.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(journalHeaderSize + 2*journalRecordSize); info.Size() != want {
		t.Errorf("file size after replay = %d, want %d", info.Size(), want)
	}
}

func TestJournalReplayChecksumFailure(t *testing.T) {
	j, path := newTestJournal(t)

	if err := j.append(journalOpInsert, journalTestEntry(1)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := j.append(journalOpInsert, journalTestEntry(2)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	j.close()

	// Flip a byte inside the second record's payload.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	offset := int64(journalHeaderSize + journalRecordSize + 20)
	var b [1]byte
	if _, err := f.ReadAt(b[:], offset); err != nil {
		t.Fatal(err)
	}
	b[0] ^= 0xff
	if _, err := f.WriteAt(b[:], offset); err != nil {
		t.Fatal(err)
	}
	f.Close()

	reopened, err := openJournal(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.close()

	table := make(map[ContentHash]IndexEntry)
	if err := reopened.replay(table); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if reopened.records != 1 {
		t.Errorf("records = %d, want 1 (corrupt record ends replay)", reopened.records)
	}
	if len(table) != 1 {
		t.Errorf("table has %d entries, want 1", len(table))
	}
}

func TestJournalReset(t *testing.T) {
	j, path := newTestJournal(t)

	for i := 0; i < 3; i++ {
		if err := j.append(journalOpInsert, journalTestEntry(i)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := j.reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if j.records != 0 {
		t.Errorf("records after reset = %d, want 0", j.records)
	}

	// Appends after reset land right after the header.
	if err := j.append(journalOpInsert, journalTestEntry(10)); err != nil {
		t.Fatalf("append after reset failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(journalHeaderSize + journalRecordSize); info.Size() != want {
		t.Errorf("file size = %d, want %d", info.Size(), want)
	}
}

func TestJournalOpenShortFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), journalFileName)

	// A file shorter than the header means creation crashed before the
	// header fsync; no record can have survived.
	if err := os.WriteFile(path, []byte{'D', 'E'}, 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := openJournal(path)
	if err != nil {
		t.Fatalf("openJournal failed on short file: %v", err)
	}
	defer j.close()

	table := make(map[ContentHash]IndexEntry)
	if err := j.replay(table); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(table) != 0 || j.records != 0 {
		t.Errorf("fresh journal has %d entries, %d records", len(table), j.records)
	}
}

func TestJournalOpenBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), journalFileName)

	header := make([]byte, journalHeaderSize)
	copy(header, "WRONGMAG")
	binary.LittleEndian.PutUint32(header[8:12], journalVersion)
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := openJournal(path)
	var magicErr *InvalidMagicError
	if !errors.As(err, &magicErr) {
		t.Errorf("bad magic: got %v, want InvalidMagicError", err)
	}
}

func TestJournalOpenBadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), journalFileName)

	header := make([]byte, journalHeaderSize)
	copy(header, journalMagic[:])
	binary.LittleEndian.PutUint32(header[8:12], journalVersion+1)
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := openJournal(path)
	var versionErr *VersionMismatchError
	if !errors.As(err, &versionErr) {
		t.Errorf("bad version: got %v, want VersionMismatchError", err)
	}
}
