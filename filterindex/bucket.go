// Package filterindex implements the block-filter index (spec.md §4.7): a
// per-block-file pool of 32-bit transaction-hash-prefix buckets, and a
// multithreaded prefix scanner that returns block-file candidate sets for
// a set of full transaction hashes.
//
// The on-disk bucket/pool encoding is little-endian throughout, matching
// spec.md §9's note that the reference implementation serializes this
// structure host-endian via a raw memcpy; this module commits to
// little-endian rather than leaving it host-dependent (see DESIGN.md).
package filterindex

import (
	"encoding/binary"

	"armorycore/pkg/utils"
)

// Bucket holds one block's transaction short-hashes. Bucket index within
// the pool's Buckets slice is unconstrained, but within a single block the
// position of a short hash in ShortHashes equals that transaction's index
// in the block.
type Bucket struct {
	BlockKey    uint32
	ShortHashes []uint32
}

// ShortHash returns the little-endian uint32 formed from the first 4
// bytes of the full transaction hash, per spec.md §8 scenario 4.
func ShortHash(fullHash [32]byte) uint32 {
	return binary.LittleEndian.Uint32(fullHash[:4])
}

// EncodeBucket renders b as `u32 total_size ‖ u32 block_key ‖ u32 count ‖
// count × u32 short_hash`. total_size covers every byte following the
// total_size field itself, so a reader can skip a bucket without parsing
// its count.
func EncodeBucket(b Bucket) []byte {
	rest := make([]byte, 8+4*len(b.ShortHashes))
	binary.LittleEndian.PutUint32(rest[0:4], b.BlockKey)
	binary.LittleEndian.PutUint32(rest[4:8], uint32(len(b.ShortHashes)))
	for i, sh := range b.ShortHashes {
		binary.LittleEndian.PutUint32(rest[8+4*i:12+4*i], sh)
	}
	out := make([]byte, 4+len(rest))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(rest)))
	copy(out[4:], rest)
	return out
}

// DecodeBucket parses one bucket from the front of buf, returning the
// bucket and the number of bytes consumed.
func DecodeBucket(buf []byte) (Bucket, int, error) {
	if len(buf) < 4 {
		return Bucket{}, 0, utils.NewKind(utils.InvalidArgument, "filterindex: bucket too short for total_size")
	}
	totalSize := binary.LittleEndian.Uint32(buf[0:4])
	if len(buf) < 4+int(totalSize) || totalSize < 8 {
		return Bucket{}, 0, utils.NewKind(utils.InvalidArgument, "filterindex: bucket truncated")
	}
	rest := buf[4 : 4+int(totalSize)]
	blockKey := binary.LittleEndian.Uint32(rest[0:4])
	count := binary.LittleEndian.Uint32(rest[4:8])
	if uint32(len(rest)-8) != count*4 {
		return Bucket{}, 0, utils.NewKind(utils.InvalidArgument, "filterindex: bucket count/size mismatch")
	}
	shortHashes := make([]uint32, count)
	for i := range shortHashes {
		shortHashes[i] = binary.LittleEndian.Uint32(rest[8+4*i : 12+4*i])
	}
	return Bucket{BlockKey: blockKey, ShortHashes: shortHashes}, 4 + int(totalSize), nil
}
