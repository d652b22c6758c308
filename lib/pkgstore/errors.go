// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"errors"
	"fmt"
)

// ErrCorruptedIndex is returned by Open when the index file exists but
// is smaller than its fixed header. A truncated index is never
// silently discarded or "recovered" — guessing at a corrupted format
// risks masking data loss.
var ErrCorruptedIndex = errors.New("index file smaller than header")

// NotFoundError is returned by Get for a hash absent from the index.
// Callers are expected to treat it as "fetch the package from
// elsewhere", not as a fatal condition.
type NotFoundError struct {
	Hash ContentHash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Hash)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// InvalidMagicError is returned when the index file does not begin
// with the expected magic bytes.
type InvalidMagicError struct {
	Expected [8]byte
	Found    [8]byte
}

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("invalid index magic: got %q, want %q", e.Found[:], e.Expected[:])
}

// VersionMismatchError is returned when the index file carries a
// format version this code does not support.
type VersionMismatchError struct {
	Expected uint32
	Found    uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("unsupported index version %d (this code supports %d)", e.Found, e.Expected)
}
