package primitives

import (
	"bytes"
	"errors"
	"testing"

	"armorycore/pkg/utils"
)

func TestROMixDeterministic(t *testing.T) {
	salt := []byte("fixed-salt")
	p := KDFParams{MemoryBytes: ROMixMinMemoryBytes, Iterations: 4, Salt: salt}
	out1, err := ROMix([]byte("passphrase"), p)
	if err != nil {
		t.Fatalf("romix 1: %v", err)
	}
	out2, err := ROMix([]byte("passphrase"), p)
	if err != nil {
		t.Fatalf("romix 2: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("ROMix not deterministic for identical parameters")
	}

	different, err := ROMix([]byte("other-passphrase"), p)
	if err != nil {
		t.Fatalf("romix different: %v", err)
	}
	if bytes.Equal(out1, different) {
		t.Fatalf("ROMix produced identical output for different passphrases")
	}
}

func TestROMixRejectsMemoryOverCap(t *testing.T) {
	p := KDFParams{MemoryBytes: ROMixMaxMemoryBytes * 2, Iterations: 1, Salt: []byte("salt")}
	_, err := ROMix([]byte("pw"), p)
	if err == nil {
		t.Fatalf("expected error for over-cap memory request")
	}
	if !errors.Is(err, utils.NewKind(utils.ResourceExhausted, "")) {
		t.Fatalf("expected ResourceExhausted kind, got %v", err)
	}
}

func TestCalibrateROMixHalfTargetFloor(t *testing.T) {
	salt := []byte("calibration-salt")
	p, err := CalibrateROMix(0.01, salt)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if p.MemoryBytes < ROMixMinMemoryBytes || p.MemoryBytes > ROMixMaxMemoryBytes {
		t.Fatalf("calibrated memory out of range: %d", p.MemoryBytes)
	}
	if p.Iterations < 1 {
		t.Fatalf("calibrated iterations must be positive, got %d", p.Iterations)
	}
	if len(p.ID) != 16 {
		t.Fatalf("expected 16-byte kdf id, got %d", len(p.ID))
	}
}

func TestComputeKDFIDStable(t *testing.T) {
	salt := []byte("id-salt")
	id1 := ComputeKDFID(ROMixMinMemoryBytes, 4, salt)
	id2 := ComputeKDFID(ROMixMinMemoryBytes, 4, salt)
	if !bytes.Equal(id1, id2) {
		t.Fatalf("ComputeKDFID not stable for identical inputs")
	}
	id3 := ComputeKDFID(ROMixMinMemoryBytes, 5, salt)
	if bytes.Equal(id1, id3) {
		t.Fatalf("ComputeKDFID collided across differing iterations")
	}
}
