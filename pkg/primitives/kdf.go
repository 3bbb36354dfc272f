package primitives

import (
	"crypto/sha512"
	"encoding/binary"
	"time"

	"armorycore/pkg/utils"
)

// Memory bounds for ROMix calibration (spec.md §4.1).
const (
	ROMixMinMemoryBytes = 128 * 1024
	ROMixMaxMemoryBytes = 32 * 1024 * 1024
	romixHashSize       = sha512.Size
)

// KDFParams is the content-derived, content-addressable parameter record for
// a single ROMix derivation. Same parameters + passphrase always yield the
// same key: the derivation is pure.
type KDFParams struct {
	ID          []byte
	MemoryBytes int
	Iterations  int
	Salt        []byte
}

// ComputeKDFID derives the KDF identifier as an HMAC over the three
// parameters, per spec.md §3.
func ComputeKDFID(memoryBytes, iterations int, salt []byte) []byte {
	buf := make([]byte, 16+len(salt))
	binary.BigEndian.PutUint64(buf[0:8], uint64(memoryBytes))
	binary.BigEndian.PutUint64(buf[8:16], uint64(iterations))
	copy(buf[16:], salt)
	sum := HMAC256(salt, buf)
	return sum[:16]
}

// ROMix is Percival's sequential-memory-hard derivation, Armory's KDF of
// choice. It builds a lookup table of romixHashSize chunks seeded from
// salt||passphrase, then performs Iterations data-dependent lookups into that
// table, each step re-hashing the running state XORed against the looked-up
// chunk. The whole table must be held in memory for the lookups to be
// data-dependent, which is what makes the function memory-hard.
func ROMix(passphrase []byte, p KDFParams) ([]byte, error) {
	if p.MemoryBytes < romixHashSize || p.MemoryBytes > ROMixMaxMemoryBytes {
		return nil, utils.NewKind(utils.ResourceExhausted, "kdf memory request out of range")
	}
	if p.Iterations <= 0 {
		return nil, utils.NewKind(utils.InvalidArgument, "kdf iterations must be positive")
	}
	if len(p.Salt) == 0 {
		return nil, utils.NewKind(utils.InvalidArgument, "kdf salt required")
	}

	numElems := p.MemoryBytes / romixHashSize
	if numElems < 1 {
		numElems = 1
	}

	table := make([][romixHashSize]byte, numElems)
	seedInput := make([]byte, 0, len(p.Salt)+len(passphrase))
	seedInput = append(seedInput, p.Salt...)
	seedInput = append(seedInput, passphrase...)
	table[0] = sha512.Sum512(seedInput)
	for i := 1; i < numElems; i++ {
		table[i] = sha512.Sum512(table[i-1][:])
	}

	x := table[numElems-1]
	mixed := make([]byte, romixHashSize)
	for iter := 0; iter < p.Iterations; iter++ {
		idx := binary.LittleEndian.Uint64(x[:8]) % uint64(numElems)
		entry := table[idx]
		for i := 0; i < romixHashSize; i++ {
			mixed[i] = x[i] ^ entry[i]
		}
		x = sha512.Sum512(mixed)
	}
	out := make([]byte, 32)
	copy(out, x[:32])
	return out, nil
}

// CalibrateROMix picks memory_bytes/iterations such that one derivation runs
// for approximately targetSeconds of wall-clock time (default 0.25s per
// spec.md §4.1), never accepting a calibration that would run in under half
// the target. It records {memory_bytes, iterations, salt} and returns the
// id alongside.
func CalibrateROMix(targetSeconds float64, salt []byte) (KDFParams, error) {
	if targetSeconds <= 0 {
		targetSeconds = 0.25
	}
	if len(salt) == 0 {
		return KDFParams{}, utils.NewKind(utils.InvalidArgument, "salt required for calibration")
	}

	memoryBytes := ROMixMinMemoryBytes
	const probeIterations = 1
	dummy := []byte("calibration-probe")

	var perIterSeconds float64
	for {
		start := time.Now()
		if _, err := ROMix(dummy, KDFParams{MemoryBytes: memoryBytes, Iterations: probeIterations, Salt: salt}); err != nil {
			return KDFParams{}, err
		}
		elapsed := time.Since(start).Seconds()
		perIterSeconds = elapsed / probeIterations
		if elapsed >= targetSeconds/2 || memoryBytes >= ROMixMaxMemoryBytes {
			break
		}
		memoryBytes *= 2
		if memoryBytes > ROMixMaxMemoryBytes {
			memoryBytes = ROMixMaxMemoryBytes
		}
	}

	iterations := 1
	if perIterSeconds > 0 {
		iterations = int(targetSeconds / perIterSeconds)
	}
	if iterations < 1 {
		iterations = 1
	}

	p := KDFParams{MemoryBytes: memoryBytes, Iterations: iterations, Salt: salt}
	p.ID = ComputeKDFID(p.MemoryBytes, p.Iterations, p.Salt)
	return p, nil
}
