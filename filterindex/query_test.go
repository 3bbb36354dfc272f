package filterindex

import (
	"crypto/sha256"
	"testing"
)

func h(x string) [32]byte {
	return sha256.Sum256([]byte(x))
}

// TestFilterQueryScenario matches spec.md §8 scenario 4: a pool with
// buckets {(0, [h(a), h(b)]), (1, [h(c)])}, queried with {full(a), full(c),
// full(z)}. Expected: a -> (file,0,0), c -> (file,1,0), z -> nothing.
func TestFilterQueryScenario(t *testing.T) {
	a, b, c, z := h("a"), h("b"), h("c"), h("z")
	pool := Pool{Buckets: []Bucket{
		{BlockKey: 0, ShortHashes: []uint32{ShortHash(a), ShortHash(b)}},
		{BlockKey: 1, ShortHashes: []uint32{ShortHash(c)}},
	}}
	raw := EncodePool(pool)

	needles := [][32]byte{a, c, z}
	results, err := Query(needles, []string{"file-0"}, func(fileID string) ([]byte, error) {
		return raw, nil
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	fr, ok := results["file-0"]
	if !ok {
		t.Fatalf("expected a result for file-0")
	}

	hitsA, ok := fr[a]
	if !ok || len(hitsA) != 1 || hitsA[0] != (Hit{BlockKey: 0, TxIndex: 0}) {
		t.Fatalf("unexpected hits for a: %+v ok=%v", hitsA, ok)
	}
	hitsC, ok := fr[c]
	if !ok || len(hitsC) != 1 || hitsC[0] != (Hit{BlockKey: 1, TxIndex: 0}) {
		t.Fatalf("unexpected hits for c: %+v ok=%v", hitsC, ok)
	}
	if _, ok := fr[z]; ok {
		t.Fatalf("expected no hits for z")
	}
}

func TestBucketPoolEncodeDecodeRoundTrip(t *testing.T) {
	pool := Pool{Buckets: []Bucket{
		{BlockKey: 7, ShortHashes: []uint32{1, 2, 3}},
		{BlockKey: 8, ShortHashes: []uint32{}},
		{BlockKey: 9, ShortHashes: []uint32{42}},
	}}
	raw := EncodePool(pool)
	got, err := DecodePool(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(got.Buckets))
	}
	for i, b := range got.Buckets {
		want := pool.Buckets[i]
		if b.BlockKey != want.BlockKey || len(b.ShortHashes) != len(want.ShortHashes) {
			t.Fatalf("bucket %d mismatch: %+v vs %+v", i, b, want)
		}
	}
}

func TestChooseScanModeThresholds(t *testing.T) {
	cases := []struct {
		n    int
		want ScanMode
	}{
		{1, ScanBucketVector},
		{200, ScanBucketVector},
		{201, ScanBucketMap},
		{2300, ScanBucketMap},
		{2301, ScanPoolMap},
	}
	for _, c := range cases {
		if got := ChooseScanMode(c.n); got != c.want {
			t.Fatalf("ChooseScanMode(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestScanModesAgreeOnResults(t *testing.T) {
	a, b, c := h("a"), h("b"), h("c")
	pool := Pool{Buckets: []Bucket{
		{BlockKey: 0, ShortHashes: []uint32{ShortHash(a), ShortHash(b)}},
		{BlockKey: 1, ShortHashes: []uint32{ShortHash(c)}},
	}}
	needles := [][32]byte{a, b, c}
	v := scanPool(pool, needles, ScanBucketVector)
	m := scanPool(pool, needles, ScanBucketMap)
	p := scanPool(pool, needles, ScanPoolMap)

	for _, needle := range needles {
		if len(v[needle]) != len(m[needle]) || len(v[needle]) != len(p[needle]) {
			t.Fatalf("scan modes disagree for needle %x: vector=%v map=%v poolmap=%v", needle, v[needle], m[needle], p[needle])
		}
	}
}

func TestAppendBucketIsAdditive(t *testing.T) {
	var p Pool
	p.AppendBucket(Bucket{BlockKey: 0, ShortHashes: []uint32{1}})
	p.AppendBucket(Bucket{BlockKey: 1, ShortHashes: []uint32{2}})
	if len(p.Buckets) != 2 {
		t.Fatalf("expected 2 buckets after two appends")
	}
	if p.Buckets[0].BlockKey != 0 {
		t.Fatalf("existing bucket was mutated")
	}
}
