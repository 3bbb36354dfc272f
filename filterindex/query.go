package filterindex

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scan mode thresholds, per spec.md §4.7's table.
const (
	bucketVectorMaxNeedles = 200
	bucketMapMaxNeedles    = 2300
)

// ScanMode names which per-file data structure the scanner builds for a
// given needle-set size.
type ScanMode int

const (
	ScanBucketVector ScanMode = iota
	ScanBucketMap
	ScanPoolMap
)

// ChooseScanMode picks the scan mode for a query of numNeedles hashes.
func ChooseScanMode(numNeedles int) ScanMode {
	switch {
	case numNeedles <= bucketVectorMaxNeedles:
		return ScanBucketVector
	case numNeedles <= bucketMapMaxNeedles:
		return ScanBucketMap
	default:
		return ScanPoolMap
	}
}

// Hit is one confirmed short-hash match: which block and transaction
// index it occupies in a given file.
type Hit struct {
	BlockKey uint32
	TxIndex  uint32
}

// FileResult collects, per full hash, every hit found in one file.
type FileResult map[[32]byte][]Hit

// PoolBytesFunc returns the encoded pool bytes for a given file id.
type PoolBytesFunc func(fileID string) ([]byte, error)

// Query partitions fileIDs across worker goroutines (default concurrency:
// runtime.NumCPU()-1, floored at 1) and, per file, scans for needles using
// the scan mode spec.md §4.7 selects for len(needles). It returns hits
// are candidates only — callers must re-read the referenced block to
// confirm full-hash equality, per spec.md §4.7.
func Query(needles [][32]byte, fileIDs []string, getPool PoolBytesFunc) (map[string]FileResult, error) {
	mode := ChooseScanMode(len(needles))

	results := make(map[string]FileResult, len(fileIDs))
	var mu sync.Mutex

	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, fileID := range fileIDs {
		fileID := fileID
		g.Go(func() error {
			raw, err := getPool(fileID)
			if err != nil {
				return err
			}
			pool, err := DecodePool(raw)
			if err != nil {
				return err
			}
			fr := scanPool(pool, needles, mode)
			if len(fr) == 0 {
				return nil
			}
			mu.Lock()
			results[fileID] = fr
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func needleShortHashes(needles [][32]byte) map[uint32][][32]byte {
	m := make(map[uint32][][32]byte, len(needles))
	for _, n := range needles {
		sh := ShortHash(n)
		m[sh] = append(m[sh], n)
	}
	return m
}

// scanPool dispatches to the scan-mode-specific implementation. The three
// modes differ only in their intermediate data structure, not in the
// result they produce: BucketVector linearly scans each bucket's short
// hashes; BucketMap indexes each bucket's short hashes by value before
// scanning; PoolMap builds one map across the whole file up front. All
// three are expressed here over the same needle index, since Go gives no
// benefit to hand-duplicating the lookup logic the way the per-mode
// dispatch buys the original's C++ template specializations.
func scanPool(pool Pool, needles [][32]byte, mode ScanMode) FileResult {
	index := needleShortHashes(needles)
	result := make(FileResult)

	switch mode {
	case ScanBucketVector:
		for _, b := range pool.Buckets {
			for txIndex, sh := range b.ShortHashes {
				candidates, ok := index[sh]
				if !ok {
					continue
				}
				for _, full := range candidates {
					result[full] = append(result[full], Hit{BlockKey: b.BlockKey, TxIndex: uint32(txIndex)})
				}
			}
		}
	case ScanBucketMap:
		for _, b := range pool.Buckets {
			bucketIndex := make(map[uint32][]uint32, len(b.ShortHashes))
			for txIndex, sh := range b.ShortHashes {
				bucketIndex[sh] = append(bucketIndex[sh], uint32(txIndex))
			}
			for sh, candidates := range index {
				txIndices, ok := bucketIndex[sh]
				if !ok {
					continue
				}
				for _, full := range candidates {
					for _, txIndex := range txIndices {
						result[full] = append(result[full], Hit{BlockKey: b.BlockKey, TxIndex: txIndex})
					}
				}
			}
		}
	case ScanPoolMap:
		poolIndex := make(map[uint32]map[uint32][]uint32, len(pool.Buckets))
		for _, b := range pool.Buckets {
			for txIndex, sh := range b.ShortHashes {
				byBlock, ok := poolIndex[sh]
				if !ok {
					byBlock = make(map[uint32][]uint32)
					poolIndex[sh] = byBlock
				}
				byBlock[b.BlockKey] = append(byBlock[b.BlockKey], uint32(txIndex))
			}
		}
		for sh, candidates := range index {
			byBlock, ok := poolIndex[sh]
			if !ok {
				continue
			}
			for blockKey, txIndices := range byBlock {
				for _, full := range candidates {
					for _, txIndex := range txIndices {
						result[full] = append(result[full], Hit{BlockKey: blockKey, TxIndex: txIndex})
					}
				}
			}
		}
	}
	return result
}
