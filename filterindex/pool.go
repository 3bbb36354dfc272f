package filterindex

import (
	"encoding/binary"

	"armorycore/pkg/utils"
)

// Pool is the ordered set of buckets for one block file.
type Pool struct {
	Buckets []Bucket
}

// EncodePool renders p as `u32 bucket_count ‖ concatenated buckets`.
func EncodePool(p Pool) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(len(p.Buckets)))
	for _, b := range p.Buckets {
		out = append(out, EncodeBucket(b)...)
	}
	return out
}

// DecodePool parses a whole pool.
func DecodePool(buf []byte) (Pool, error) {
	if len(buf) < 4 {
		return Pool{}, utils.NewKind(utils.InvalidArgument, "filterindex: pool too short for bucket_count")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	buckets := make([]Bucket, 0, count)
	pos := 4
	for i := uint32(0); i < count; i++ {
		b, n, err := DecodeBucket(buf[pos:])
		if err != nil {
			return Pool{}, err
		}
		buckets = append(buckets, b)
		pos += n
	}
	return Pool{Buckets: buckets}, nil
}

// AppendBucket adds a new block's bucket to the pool. Existing buckets are
// never rewritten, per spec.md §4.7's "Incremental update" rule — this is
// purely additive.
func (p *Pool) AppendBucket(b Bucket) {
	p.Buckets = append(p.Buckets, b)
}
