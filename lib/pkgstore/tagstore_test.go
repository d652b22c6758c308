// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"strings"
	"testing"
)

func newTestTagStore(t *testing.T) *TagStore {
	t.Helper()
	tags, err := OpenTagStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenTagStore failed: %v", err)
	}
	return tags
}

func TestTagStoreSetResolve(t *testing.T) {
	tags := newTestTagStore(t)
	target := HashContent([]byte("tagged package"))

	if err := tags.Set("lodash/latest", target); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := tags.Resolve("lodash/latest")
	if !ok {
		t.Fatal("Resolve did not find the tag")
	}
	if got != target {
		t.Errorf("Resolve = %s, want %s", got, target)
	}

	if _, ok := tags.Resolve("lodash/oldest"); ok {
		t.Error("Resolve found a tag that was never set")
	}
}

func TestTagStoreSetMovesPointer(t *testing.T) {
	tags := newTestTagStore(t)
	first := HashContent([]byte("v1"))
	second := HashContent([]byte("v2"))

	if err := tags.Set("app/stable", first); err != nil {
		t.Fatal(err)
	}
	if err := tags.Set("app/stable", second); err != nil {
		t.Fatal(err)
	}

	got, ok := tags.Resolve("app/stable")
	if !ok || got != second {
		t.Errorf("after re-set, Resolve = %s, want %s", got, second)
	}
	if tags.Len() != 1 {
		t.Errorf("Len = %d, want 1 (re-set is an update, not an insert)", tags.Len())
	}
}

func TestTagStoreSetValidation(t *testing.T) {
	tags := newTestTagStore(t)
	target := HashContent([]byte("x"))

	if err := tags.Set("", target); err == nil {
		t.Error("empty name accepted")
	}
	if err := tags.Set(strings.Repeat("n", MaxTagNameLength+1), target); err == nil {
		t.Error("oversized name accepted")
	}
	if err := tags.Set("valid/name", ContentHash{}); err == nil {
		t.Error("zero target accepted")
	}
}

func TestTagStoreDelete(t *testing.T) {
	tags := newTestTagStore(t)
	target := HashContent([]byte("doomed"))

	if err := tags.Set("temp/tag", target); err != nil {
		t.Fatal(err)
	}
	if err := tags.Delete("temp/tag"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := tags.Resolve("temp/tag"); ok {
		t.Error("deleted tag still resolves")
	}
	if err := tags.Delete("temp/tag"); err == nil {
		t.Error("deleting a missing tag succeeded")
	}
}

func TestTagStoreListPrefix(t *testing.T) {
	tags := newTestTagStore(t)

	names := []string{"toolchain/1.22/stable", "toolchain/1.23/stable", "app/latest"}
	for i, name := range names {
		if err := tags.Set(name, HashContent([]byte(name))); err != nil {
			t.Fatalf("Set %d failed: %v", i, err)
		}
	}

	if got := tags.List("toolchain/"); len(got) != 2 {
		t.Errorf("List(toolchain/) returned %d tags, want 2", len(got))
	}
	if got := tags.List(""); len(got) != 3 {
		t.Errorf("List(\"\") returned %d tags, want 3", len(got))
	}
	if got := tags.List("nomatch/"); len(got) != 0 {
		t.Errorf("List(nomatch/) returned %d tags, want 0", len(got))
	}
}

func TestTagStoreTargets(t *testing.T) {
	tags := newTestTagStore(t)
	shared := HashContent([]byte("pointed at twice"))

	if err := tags.Set("a", shared); err != nil {
		t.Fatal(err)
	}
	if err := tags.Set("b", shared); err != nil {
		t.Fatal(err)
	}
	if err := tags.Set("c", HashContent([]byte("single"))); err != nil {
		t.Fatal(err)
	}

	targets := tags.Targets()
	if len(targets) != 2 {
		t.Errorf("Targets returned %d hashes, want 2 (duplicates collapsed)", len(targets))
	}
}

func TestTagStorePersistsAcrossReopen(t *testing.T) {
	root := t.TempDir()
	target := HashContent([]byte("durable tag target"))

	tags, err := OpenTagStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := tags.Set("release/2026.08", target); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenTagStore(root)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Resolve("release/2026.08")
	if !ok {
		t.Fatal("tag lost across reopen")
	}
	if got != target {
		t.Errorf("Resolve after reopen = %s, want %s", got, target)
	}

	record := reopened.List("release/")
	if len(record) != 1 {
		t.Fatalf("List after reopen returned %d records", len(record))
	}
	if record[0].CreatedAt.IsZero() || record[0].UpdatedAt.IsZero() {
		t.Error("timestamps lost across reopen")
	}
}

func TestTagStoreUpdatePreservesCreatedAt(t *testing.T) {
	tags := newTestTagStore(t)

	if err := tags.Set("pinned", HashContent([]byte("v1"))); err != nil {
		t.Fatal(err)
	}
	created := tags.List("pinned")[0].CreatedAt

	if err := tags.Set("pinned", HashContent([]byte("v2"))); err != nil {
		t.Fatal(err)
	}
	record := tags.List("pinned")[0]
	if !record.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created, record.CreatedAt)
	}
	if record.UpdatedAt.Before(created) {
		t.Errorf("UpdatedAt %v precedes CreatedAt %v", record.UpdatedAt, created)
	}
}
