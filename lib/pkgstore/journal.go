// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Journal format constants. The journal (index.log) is an append-only
// log of fixed-size insert/delete records that makes puts O(1) in
// index size: a put appends one record instead of rewriting the whole
// snapshot. Compaction folds the journal into a fresh snapshot and
// truncates the log.
const (
	journalVersion = 1

	// journalHeaderSize is the fixed header: magic(8) + version(4) +
	// reserved(4).
	journalHeaderSize = 16

	// journalRecordSize is each record: op(1) + reserved(7) +
	// hash(16) + size(8) + flags(8) + crc32c(4) + reserved(4). The
	// checksum covers the first 40 bytes, so a torn tail record is
	// detected and discarded on replay rather than corrupting the
	// table.
	journalRecordSize = 48

	journalOpInsert = 1
	journalOpDelete = 2
)

// journalMagic is the 8-byte journal file signature.
var journalMagic = [8]byte{'D', 'E', 'P', 'O', 'T', 'L', 'O', 'G'}

// crc32cTable is the CRC32C (Castagnoli) table for record checksums.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// journal is the on-disk append log behind the index table. All
// methods must be called with the store's index lock held; the
// journal itself does no locking.
type journal struct {
	file    *os.File
	path    string
	records int
}

// openJournal opens the journal at path, creating a fresh one if it
// does not exist. The caller replays records into its table with
// replay.
func openJournal(path string) (*journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	j := &journal{file: file, path: path}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat journal %s: %w", path, err)
	}

	// A file shorter than the header was created but never
	// initialized (the header is fsynced before any record is
	// appended), so no records can have survived. Start it fresh.
	if info.Size() < journalHeaderSize {
		if err := j.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
		return j, nil
	}

	var header [journalHeaderSize]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading journal header: %w", err)
	}

	var magic [8]byte
	copy(magic[:], header[0:8])
	if magic != journalMagic {
		file.Close()
		return nil, &InvalidMagicError{Expected: journalMagic, Found: magic}
	}
	if version := binary.LittleEndian.Uint32(header[8:12]); version != journalVersion {
		file.Close()
		return nil, &VersionMismatchError{Expected: journalVersion, Found: version}
	}
	return j, nil
}

// writeHeader truncates the file and writes a fresh header, fsyncing
// before returning so that openJournal's short-file reasoning holds.
func (j *journal) writeHeader() error {
	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating journal: %w", err)
	}

	var header [journalHeaderSize]byte
	copy(header[0:8], journalMagic[:])
	binary.LittleEndian.PutUint32(header[8:12], journalVersion)

	if _, err := j.file.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("writing journal header: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("syncing journal header: %w", err)
	}
	if _, err := j.file.Seek(journalHeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("seeking past journal header: %w", err)
	}
	j.records = 0
	return nil
}

// replay reads every record after the header and applies it to table.
// An incomplete or checksum-failing record ends the replay silently:
// it is the torn tail of a crashed append, and everything before it is
// intact. Returns the number of applied records.
func (j *journal) replay(table map[ContentHash]IndexEntry) error {
	if _, err := j.file.Seek(journalHeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("seeking journal: %w", err)
	}

	var record [journalRecordSize]byte
	for {
		_, err := io.ReadFull(j.file, record[:])
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// Torn tail: drop it so the next append starts at a
			// record boundary.
			if err := j.truncateToRecords(); err != nil {
				return err
			}
			break
		}
		if err != nil {
			return fmt.Errorf("reading journal record: %w", err)
		}

		stored := binary.LittleEndian.Uint32(record[40:44])
		if crc32.Checksum(record[:40], crc32cTable) != stored {
			if err := j.truncateToRecords(); err != nil {
				return err
			}
			break
		}

		op := record[0]
		var entry IndexEntry
		copy(entry.Hash[:], record[8:24])
		entry.Size = binary.LittleEndian.Uint64(record[24:32])
		entry.Flags = binary.LittleEndian.Uint64(record[32:40])

		switch op {
		case journalOpInsert:
			if !entry.Hash.IsZero() {
				table[entry.Hash] = entry
			}
		case journalOpDelete:
			delete(table, entry.Hash)
		default:
			// Unknown op with a valid checksum: written by a newer
			// minor revision. Skip rather than fail.
		}
		j.records++
	}

	// Leave the write position at the end for subsequent appends.
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seeking journal end: %w", err)
	}
	return nil
}

// truncateToRecords cuts the file back to the last complete record.
func (j *journal) truncateToRecords() error {
	size := int64(journalHeaderSize + j.records*journalRecordSize)
	if err := j.file.Truncate(size); err != nil {
		return fmt.Errorf("truncating torn journal tail: %w", err)
	}
	return nil
}

// append writes one record and fsyncs it. This is the durability
// point of a put: once append returns, the entry survives a crash.
func (j *journal) append(op byte, entry IndexEntry) error {
	var record [journalRecordSize]byte
	record[0] = op
	copy(record[8:24], entry.Hash[:])
	binary.LittleEndian.PutUint64(record[24:32], entry.Size)
	binary.LittleEndian.PutUint64(record[32:40], entry.Flags)
	binary.LittleEndian.PutUint32(record[40:44], crc32.Checksum(record[:40], crc32cTable))

	if _, err := j.file.Write(record[:]); err != nil {
		return fmt.Errorf("appending journal record: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("syncing journal: %w", err)
	}
	j.records++
	return nil
}

// reset empties the journal after its records have been folded into a
// durable snapshot.
func (j *journal) reset() error {
	return j.writeHeader()
}

func (j *journal) close() error {
	return j.file.Close()
}
