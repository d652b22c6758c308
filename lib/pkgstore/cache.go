// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity is the recency cache size used when
// WithCacheCapacity is not given. Packages are often fetched in
// dependency-graph bursts, so a modest cache absorbs most repeat
// lookups.
const DefaultCacheCapacity = 128

// RecencyCache is a bounded LRU mapping content hashes to decoded
// packages. Get promotes the entry to most-recently-used; Put evicts
// the least-recently-used entry when inserting a new hash at capacity.
// Promote and evict are O(1).
//
// The cache carries its own lock (inside the LRU), independent of the
// store's index lock; the two are never held together, which rules out
// lock-ordering deadlocks by construction. Entries are never
// persisted — the cache starts cold on every open.
type RecencyCache struct {
	entries *lru.Cache[ContentHash, *Package]
}

// NewRecencyCache creates a cache bounded to capacity entries.
func NewRecencyCache(capacity int) (*RecencyCache, error) {
	entries, err := lru.New[ContentHash, *Package](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating recency cache: %w", err)
	}
	return &RecencyCache{entries: entries}, nil
}

// Get returns the cached package for hash, promoting it to
// most-recently-used. A miss has no side effect.
func (c *RecencyCache) Get(hash ContentHash) (*Package, bool) {
	return c.entries.Get(hash)
}

// Put inserts or replaces the package for hash at the
// most-recently-used position, evicting the least-recently-used entry
// if hash is new and the cache is full.
func (c *RecencyCache) Put(hash ContentHash, pkg *Package) {
	c.entries.Add(hash, pkg)
}

// Remove drops hash from the cache if present. Used when a package is
// garbage-collected so the cache cannot serve deleted content.
func (c *RecencyCache) Remove(hash ContentHash) {
	c.entries.Remove(hash)
}

// Len returns the current number of cached packages.
func (c *RecencyCache) Len() int {
	return c.entries.Len()
}
