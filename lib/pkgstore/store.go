// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultCompactionThreshold is the journal record count that triggers
// folding the journal into a fresh snapshot. Compaction bounds both
// journal replay time on open and journal file growth.
const DefaultCompactionThreshold = 1024

// Store is a content-addressed package store rooted at a directory.
// It owns the authoritative index table and the recency cache, and
// performs all filesystem I/O.
//
// Store is safe for concurrent use. Reads (Get, List, Stats, Verify)
// share the index read lock; writes (Put, GC) take the write lock only
// for the in-memory mutation and index persistence, not for the blob
// file I/O that precedes it. Operations either complete or return an
// error — nothing is retried internally and no timeouts are imposed.
type Store struct {
	root string

	// mu guards table, the journal, and snapshot rewrites.
	mu    sync.RWMutex
	table map[ContentHash]IndexEntry
	log   *journal

	cache  *RecencyCache
	hits   atomic.Uint64
	misses atomic.Uint64

	// loads collapses concurrent Get disk loads for the same hash, so
	// a miss storm on one package does one read and one decode.
	loads singleflight.Group

	hasher         Hasher
	codec          PackageCodec
	compression    Compression
	compactRecords int
	cacheCapacity  int
	logger         *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCacheCapacity bounds the recency cache to n decoded packages.
// Defaults to DefaultCacheCapacity.
func WithCacheCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cacheCapacity = n
		}
	}
}

// WithHasher substitutes the content hash function. The hasher must be
// deterministic and stable across restarts: changing it orphans every
// blob stored under the previous function.
func WithHasher(h Hasher) Option {
	return func(s *Store) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithCodec sets the PackageCodec used to decode blobs on Get.
// Defaults to RawCodec (no interpretation).
func WithCodec(c PackageCodec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithCompression selects the on-disk encoding for newly stored blobs.
// Existing blobs are unaffected; each index entry records its own tag.
func WithCompression(c Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithCompactionThreshold overrides the journal record count that
// triggers snapshot compaction.
func WithCompactionThreshold(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.compactRecords = n
		}
	}
}

// WithLogger sets the structured logger. If nil or unset,
// slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// StoreStats is a point-in-time summary returned by Stats.
type StoreStats struct {
	// PackageCount is the number of distinct hashes in the index.
	PackageCount int

	// TotalSize is the sum of uncompressed package sizes in bytes.
	TotalSize uint64

	// CacheOccupancy is the current number of packages in the recency
	// cache (bounded by its capacity).
	CacheOccupancy int

	// CacheHits and CacheMisses are cumulative Get counters since the
	// store was opened.
	CacheHits   uint64
	CacheMisses uint64

	// JournalRecords is the number of index records awaiting
	// compaction into the snapshot.
	JournalRecords int
}

// Open opens (or initializes) a package store rooted at root. The
// packages and cache directories are created if missing. If index.bin
// exists it is decoded — a file shorter than the header is
// ErrCorruptedIndex, and wrong magic or version are hard errors, never
// silently rebuilt — then the journal is replayed over it. A missing
// index is initialized empty.
func Open(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:           root,
		hasher:         HashContent,
		codec:          RawCodec{},
		compression:    CompressionNone,
		compactRecords: DefaultCompactionThreshold,
		cacheCapacity:  DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	for _, dir := range []string{
		root,
		filepath.Join(root, packagesDir),
		filepath.Join(root, cacheDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}

	indexPath := filepath.Join(root, indexFileName)
	data, err := os.ReadFile(indexPath)
	switch {
	case os.IsNotExist(err):
		s.table = make(map[ContentHash]IndexEntry)
		if err := s.writeSnapshotLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading index %s: %w", indexPath, err)
	default:
		table, err := decodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("decoding index %s: %w", indexPath, err)
		}
		s.table = table
	}

	s.log, err = openJournal(filepath.Join(root, journalFileName))
	if err != nil {
		return nil, err
	}
	if err := s.log.replay(s.table); err != nil {
		s.log.close()
		return nil, err
	}

	// Fold a grown journal into the snapshot now rather than paying
	// the replay again on the next open.
	if s.log.records >= s.compactRecords {
		if err := s.compactLocked(); err != nil {
			s.log.close()
			return nil, err
		}
	}

	s.cache, err = NewRecencyCache(s.cacheCapacity)
	if err != nil {
		s.log.close()
		return nil, err
	}

	s.logger.Debug("opened package store",
		"root", root,
		"packages", len(s.table),
		"journal_records", s.log.records)
	return s, nil
}

// Put stores content and returns its hash. Identical content is
// stored at most once: if the hash is already indexed, Put returns
// immediately with no I/O. Otherwise the blob is written and fsynced
// to its final path before the index records it (blob-before-index
// ordering), so a crash can at worst orphan a blob, never index a
// missing one.
//
// Two goroutines racing to put the same new content may both write the
// blob and both reach the index insert; this is safe, not merely
// tolerated — content addressing makes the written bytes identical and
// the insert idempotent.
func (s *Store) Put(content []byte) (ContentHash, error) {
	hash := s.hasher(content)

	s.mu.RLock()
	_, exists := s.table[hash]
	s.mu.RUnlock()
	if exists {
		s.logger.Debug("put deduplicated", "hash", hash.String())
		return hash, nil
	}

	stored, tag, err := compressBlob(content, s.compression)
	if err != nil {
		return ContentHash{}, err
	}
	if err := s.writeBlob(hash, stored); err != nil {
		return ContentHash{}, err
	}

	entry := IndexEntry{Hash: hash, Size: uint64(len(content)), Flags: uint64(tag)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.table[hash]; exists {
		// Lost a put race; the winner indexed identical content.
		return hash, nil
	}
	s.table[hash] = entry
	if err := s.log.append(journalOpInsert, entry); err != nil {
		delete(s.table, hash)
		return ContentHash{}, err
	}
	if s.log.records >= s.compactRecords {
		// The append above is the durability point, so a compaction
		// failure must not fail the put. The journal keeps growing and
		// compaction is retried at the next threshold crossing.
		if err := s.compactLocked(); err != nil {
			s.logger.Warn("journal compaction failed",
				"records", s.log.records,
				"error", err)
		}
	}

	s.logger.Debug("stored package",
		"hash", hash.String(),
		"size", len(content),
		"compression", tag.String())
	return hash, nil
}

// writeBlob writes stored bytes to the blob path for hash via a temp
// file in the same directory, fsyncs, and atomically renames into
// place. The rename is the blob's durability point.
func (s *Store) writeBlob(hash ContentHash, stored []byte) error {
	path := BlobPath(s.root, hash)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating blob directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "blob-*")
	if err != nil {
		return fmt.Errorf("creating blob temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing blob %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing blob %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing blob temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming blob into place: %w", err)
	}
	return nil
}

// Get returns the decoded package for hash. The recency cache is
// checked first; a hit involves no disk access. On a miss the blob is
// read from disk, decoded through the configured PackageCodec, and
// cached (possibly evicting the least-recently-used package).
//
// A hash absent from the index returns a NotFoundError.
func (s *Store) Get(hash ContentHash) (*Package, error) {
	if pkg, ok := s.cache.Get(hash); ok {
		s.hits.Add(1)
		return pkg, nil
	}
	s.misses.Add(1)

	value, err, _ := s.loads.Do(hash.String(), func() (any, error) {
		return s.loadPackage(hash)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Package), nil
}

// loadPackage is the Get miss path: index lookup, blob read, decode,
// cache insert.
func (s *Store) loadPackage(hash ContentHash) (*Package, error) {
	s.mu.RLock()
	entry, ok := s.table[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Hash: hash}
	}

	path := BlobPath(s.root, hash)
	stored, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", path, err)
	}
	content, err := decompressBlob(stored, entry.Compression(), int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("decoding blob %s: %w", hash, err)
	}

	pkg, err := s.codec.Decode(hash, content)
	if err != nil {
		return nil, fmt.Errorf("decoding package %s: %w", hash, err)
	}
	s.cache.Put(hash, pkg)
	return pkg, nil
}

// Verify re-reads the blob for hash and recomputes its content hash
// from scratch, ignoring the index's stored size and the cache. It
// returns false — not an error — if the file is missing, undecodable,
// or hashes to something else: a damaged blob is an expected,
// recoverable operational fact (re-fetch and re-store it), not an
// exceptional condition. This catches bit rot and external tampering
// that the index alone cannot see.
func (s *Store) Verify(hash ContentHash) bool {
	s.mu.RLock()
	entry, indexed := s.table[hash]
	s.mu.RUnlock()

	stored, err := os.ReadFile(BlobPath(s.root, hash))
	if err != nil {
		return false
	}

	content := stored
	if indexed && entry.Compression() != CompressionNone {
		content, err = decompressBlob(stored, entry.Compression(), int(entry.Size))
		if err != nil {
			return false
		}
	}
	return s.hasher(content) == hash
}

// GC removes every package whose hash is not in keep, deleting its
// blob file (a file already gone is not an error) and its index entry,
// then persists the rewritten snapshot once — to a temp file renamed
// atomically over index.bin — and truncates the journal. Returns the
// number of packages removed.
func (s *Store) GC(keep []ContentHash) (int, error) {
	keepSet := make(map[ContentHash]struct{}, len(keep))
	for _, h := range keep {
		keepSet[h] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removeErr error
	removed := 0
	for hash := range s.table {
		if _, kept := keepSet[hash]; kept {
			continue
		}
		if err := os.Remove(BlobPath(s.root, hash)); err != nil && !os.IsNotExist(err) {
			// Leave the entry indexed: the blob is still on disk.
			if removeErr == nil {
				removeErr = fmt.Errorf("removing blob %s: %w", hash, err)
			}
			continue
		}
		delete(s.table, hash)
		s.cache.Remove(hash)
		removed++
	}

	if err := s.compactLocked(); err != nil {
		return removed, err
	}

	s.logger.Info("garbage collected packages",
		"removed", removed,
		"kept", len(s.table))
	return removed, removeErr
}

// Entry returns the index entry for hash, or false if absent. It
// never touches the disk or the cache.
func (s *Store) Entry(hash ContentHash) (IndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.table[hash]
	return entry, ok
}

// List returns a snapshot of every hash currently in the index, in no
// particular order.
func (s *Store) List() []ContentHash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make([]ContentHash, 0, len(s.table))
	for hash := range s.table {
		hashes = append(hashes, hash)
	}
	return hashes
}

// Stats returns current store statistics. Counts and sizes are
// computed under the index read lock; cache counters are cumulative
// since open.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	stats := StoreStats{
		PackageCount:   len(s.table),
		JournalRecords: s.log.records,
	}
	for _, entry := range s.table {
		stats.TotalSize += entry.Size
	}
	s.mu.RUnlock()

	stats.CacheOccupancy = s.cache.Len()
	stats.CacheHits = s.hits.Load()
	stats.CacheMisses = s.misses.Load()
	return stats
}

// Close folds any pending journal records into the snapshot and closes
// the journal. The store must not be used afterward.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.log.records > 0 {
		if err := s.compactLocked(); err != nil {
			s.log.close()
			return err
		}
	}
	return s.log.close()
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// compactLocked rewrites the snapshot from the in-memory table and
// empties the journal. Caller holds the write lock (or, during Open,
// exclusive access).
func (s *Store) compactLocked() error {
	if err := s.writeSnapshotLocked(); err != nil {
		return err
	}
	if s.log != nil {
		if err := s.log.reset(); err != nil {
			return err
		}
	}
	return nil
}

// writeSnapshotLocked serializes the table and atomically replaces
// index.bin: temp file in the root, fsync, rename. A crash at any
// point leaves either the old or the new snapshot, never a torn one.
func (s *Store) writeSnapshotLocked() error {
	data := encodeSnapshot(s.table)

	tmp, err := os.CreateTemp(s.root, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating index temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing index snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing index snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.root, indexFileName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming index snapshot into place: %w", err)
	}
	return nil
}
