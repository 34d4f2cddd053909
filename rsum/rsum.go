// Package rsum wraps the checksum primitives used for page and frame
// integrity (CRC32C, Adler-32; callers that want a keyed hash use
// github.com/OneOfOne/xxhash directly, as the cache's striping does).
//
// CRC32C and Adler-32 are exact, fixed algorithms with a single correct
// implementation; the standard library's hash/crc32 (Castagnoli table) and
// hash/adler32 implement precisely that algorithm with no behavior a
// third-party package would change.
package rsum

import (
	"hash/adler32"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the Castagnoli CRC32 checksum used by bucket headers
// to detect page corruption.
func CRC32C(data []byte) uint32 { return crc32.Checksum(data, crc32cTable) }

// Adler32 computes the Adler-32 checksum, offered alongside CRC32C for
// callers that want the cheaper rolling variant.
func Adler32(data []byte) uint32 { return adler32.Checksum(data) }
