// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/depot-foundation/depot/lib/codec"
)

// MaxTagNameLength is the maximum byte length of a tag name. Names are
// hierarchical (e.g. "lodash/latest", "toolchain/1.22/stable") and
// this limit is generous for real use while preventing abuse.
const MaxTagNameLength = 512

// TagRecord is the on-disk and in-memory representation of one tag: a
// mutable, human-readable pointer to a content hash. Each tag lives in
// its own CBOR file so updates touch exactly one file.
type TagRecord struct {
	Name      string      `cbor:"name"`
	Target    ContentHash `cbor:"target"`
	CreatedAt time.Time   `cbor:"created_at"`
	UpdatedAt time.Time   `cbor:"updated_at"`
}

// TagStore manages name-to-hash tag mappings under <root>/tags. Tag
// names may contain slashes, so each name is hashed (tag-name domain)
// to produce a filesystem-safe sharded path; the record itself carries
// the original name, which is how the in-memory map is rebuilt from a
// directory scan on open.
//
// TagStore is safe for concurrent use; it has its own lock,
// independent of the package index.
type TagStore struct {
	root    string
	mu      sync.RWMutex
	entries map[string]TagRecord
}

// OpenTagStore opens the tag store under the store root, creating the
// tags directory if needed and loading existing tag files.
func OpenTagStore(root string) (*TagStore, error) {
	dir := filepath.Join(root, tagsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tags directory %s: %w", dir, err)
	}

	ts := &TagStore{
		root:    root,
		entries: make(map[string]TagRecord),
	}
	if err := ts.scanAll(dir); err != nil {
		return nil, fmt.Errorf("scanning existing tags: %w", err)
	}
	return ts, nil
}

// Set creates or updates a tag to point at target. Last writer wins.
func (ts *TagStore) Set(name string, target ContentHash) error {
	if name == "" {
		return fmt.Errorf("tag name is required")
	}
	if len(name) > MaxTagNameLength {
		return fmt.Errorf("tag name is %d bytes, maximum is %d", len(name), MaxTagNameLength)
	}
	if target.IsZero() {
		return fmt.Errorf("tag %q: target hash is zero", name)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now().UTC()
	record := TagRecord{Name: name, Target: target, CreatedAt: now, UpdatedAt: now}
	if existing, exists := ts.entries[name]; exists {
		record.CreatedAt = existing.CreatedAt
	}

	if err := ts.writeFile(record); err != nil {
		return err
	}
	ts.entries[name] = record
	return nil
}

// Resolve returns the hash a tag points at, or false if the tag does
// not exist.
func (ts *TagStore) Resolve(name string) (ContentHash, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	record, exists := ts.entries[name]
	return record.Target, exists
}

// Delete removes a tag. Deleting a missing tag is an error.
func (ts *TagStore) Delete(name string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, exists := ts.entries[name]; !exists {
		return fmt.Errorf("tag %q not found", name)
	}
	if err := os.Remove(tagPath(ts.root, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing tag file for %q: %w", name, err)
	}
	delete(ts.entries, name)
	return nil
}

// List returns all tags whose names start with prefix; an empty prefix
// returns everything. Results are unsorted.
func (ts *TagStore) List(prefix string) []TagRecord {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var results []TagRecord
	for _, record := range ts.entries {
		if prefix == "" || strings.HasPrefix(record.Name, prefix) {
			results = append(results, record)
		}
	}
	return results
}

// Targets returns the set of hashes referenced by any tag. GC callers
// merge this into their keep set so tagged packages survive.
func (ts *TagStore) Targets() []ContentHash {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	seen := make(map[ContentHash]struct{}, len(ts.entries))
	targets := make([]ContentHash, 0, len(ts.entries))
	for _, record := range ts.entries {
		if _, dup := seen[record.Target]; dup {
			continue
		}
		seen[record.Target] = struct{}{}
		targets = append(targets, record.Target)
	}
	return targets
}

// Len returns the number of tags.
func (ts *TagStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.entries)
}

// scanAll walks the tags directory and loads every record into the
// in-memory map. Called once on open.
func (ts *TagStore) scanAll(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cbor") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading tag file %s: %w", path, err)
		}
		var record TagRecord
		if err := codec.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decoding tag file %s: %w", path, err)
		}
		if record.Name == "" {
			// Corrupt or incomplete tag file; skip rather than fail
			// the whole store.
			return nil
		}
		ts.entries[record.Name] = record
		return nil
	})
}

// writeFile atomically writes a tag record: temp file in the shard
// directory, then rename.
func (ts *TagStore) writeFile(record TagRecord) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding tag %q: %w", record.Name, err)
	}

	finalPath := tagPath(ts.root, record.Name)
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating tag directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "tag-*")
	if err != nil {
		return fmt.Errorf("creating tag temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing tag %q: %w", record.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing tag temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming tag %q into place: %w", record.Name, err)
	}
	return nil
}
