// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package pkgstore

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm used to encode a blob on disk.
// The tag is stored in the low byte of the index entry's flags field.
// These values are protocol constants — changing them breaks stores
// written by earlier versions.
type Compression uint8

const (
	// CompressionNone stores the blob bytes verbatim. This is the
	// default: the blob file is then byte-identical to the content
	// that was put.
	CompressionNone Compression = 0

	// CompressionLZ4 stores the blob as a single LZ4 block. Fast
	// default for binary package payloads.
	CompressionLZ4 Compression = 1

	// CompressionZstd stores the blob zstd-compressed at the default
	// level. Better ratios for text-heavy payloads.
	CompressionZstd Compression = 2
)

// flagsCompressionMask selects the compression tag within an index
// entry's flags word.
const flagsCompressionMask = 0xff

// errIncompressible is returned by the compressors when the output
// would be no smaller than the input; callers fall back to raw
// storage.
var errIncompressible = errors.New("data is incompressible")

// String returns the human-readable name of the compression tag.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression tag from its string form.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// zstdEncoder and zstdDecoder are shared across all stores in the
// process. Both are safe for concurrent use; EncodeAll/DecodeAll do
// not mutate encoder state.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("pkgstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("pkgstore: zstd decoder initialization failed: " + err.Error())
	}
}

// compressBlob encodes content with the requested algorithm, falling
// back to raw storage when the output would not shrink. Returns the
// bytes to write and the tag that was actually used.
func compressBlob(content []byte, requested Compression) ([]byte, Compression, error) {
	if requested == CompressionNone || len(content) == 0 {
		return content, CompressionNone, nil
	}

	var (
		compressed []byte
		err        error
	)
	switch requested {
	case CompressionLZ4:
		compressed, err = compressLZ4(content)
	case CompressionZstd:
		compressed, err = compressZstd(content)
	default:
		return nil, 0, fmt.Errorf("unsupported compression tag: %d", requested)
	}

	if errors.Is(err, errIncompressible) {
		return content, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, requested, nil
}

// lz4MaxExpansion is the worst-case decompressed-to-compressed ratio
// of an LZ4 block (the format encodes at most 255 output bytes per
// input byte). A size claim beyond this bound cannot be produced by a
// valid block.
const lz4MaxExpansion = 255

// decompressBlob decodes stored blob bytes back into content.
// contentSize must be the exact original length (from the index
// entry); a mismatch is an error, never silently padded or truncated.
// contentSize is untrusted (a corrupted index entry could carry any
// value), so it is sanity-checked before sizing any allocation by it.
func decompressBlob(stored []byte, tag Compression, contentSize int) ([]byte, error) {
	if contentSize < 0 {
		return nil, fmt.Errorf("blob size %d out of range", contentSize)
	}

	switch tag {
	case CompressionNone:
		if len(stored) != contentSize {
			return nil, fmt.Errorf("raw blob: size %d does not match index size %d", len(stored), contentSize)
		}
		return stored, nil

	case CompressionLZ4:
		if contentSize > len(stored)*lz4MaxExpansion {
			return nil, fmt.Errorf("lz4 blob: size %d exceeds the %dx expansion bound of %d stored bytes",
				contentSize, lz4MaxExpansion, len(stored))
		}
		destination := make([]byte, contentSize)
		read, err := lz4.UncompressBlock(stored, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != contentSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, contentSize)
		}
		return destination, nil

	case CompressionZstd:
		// No capacity hint from contentSize: zstd has no fixed
		// expansion bound (run-length content compresses arbitrarily
		// well), so the output buffer grows with the actual stream and
		// the length is checked after the fact.
		result, err := zstdDecoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != contentSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), contentSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(content []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(content)))
	written, err := lz4.CompressBlock(content, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 when it judges the data incompressible.
	if written == 0 || written >= len(content) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(content []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(content, nil)
	if len(compressed) >= len(content) {
		return nil, errIncompressible
	}
	return compressed, nil
}
