package walletstore

import (
	"fmt"
	"path/filepath"
	"testing"
)

func openTestEnv(t *testing.T) (*Env, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.db")
	env, err := OpenEnv(path)
	if err != nil {
		t.Fatalf("open env: %v", err)
	}
	t.Cleanup(func() { env.Close() })
	return env, path
}

func TestSubspacePutGetRoundTrip(t *testing.T) {
	env, _ := openTestEnv(t)
	master := []byte("master-secret-for-subspace-one")
	s, err := OpenSubspace(env, "assets", master)
	if err != nil {
		t.Fatalf("open subspace: %v", err)
	}
	if err := s.Put([]byte("asset-1"), []byte("value-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := s.Get([]byte("asset-1"))
	if !ok {
		t.Fatalf("expected to find asset-1")
	}
	if string(got) != "value-1" {
		t.Fatalf("got %q, want %q", got, "value-1")
	}
}

func TestStorageKeyStabilityOnOverwrite(t *testing.T) {
	env, _ := openTestEnv(t)
	master := []byte("stability-master-secret")
	s, err := OpenSubspace(env, "assets", master)
	if err != nil {
		t.Fatalf("open subspace: %v", err)
	}
	if err := s.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put v1: %v", err)
	}
	storageKeyBefore := s.dataKeyToStorage["k"]
	if err := s.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("put v2: %v", err)
	}
	storageKeyAfter := s.dataKeyToStorage["k"]
	if storageKeyBefore != storageKeyAfter {
		t.Fatalf("overwrite reassigned storage key: %d -> %d", storageKeyBefore, storageKeyAfter)
	}
	got, _ := s.Get([]byte("k"))
	if string(got) != "v2" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
}

func TestEraseThenWriteAssignsFreshStorageKey(t *testing.T) {
	env, _ := openTestEnv(t)
	master := []byte("erase-master-secret")
	s, err := OpenSubspace(env, "assets", master)
	if err != nil {
		t.Fatalf("open subspace: %v", err)
	}
	if err := s.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	oldKey := s.dataKeyToStorage["k"]
	if err := s.Erase([]byte("k")); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if _, ok := s.Get([]byte("k")); ok {
		t.Fatalf("expected erased key to be absent")
	}
	if err := s.Put([]byte("k"), []byte("v3")); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	newKey := s.dataKeyToStorage["k"]
	if newKey <= oldKey {
		t.Fatalf("expected fresh storage key strictly greater than %d, got %d", oldKey, newKey)
	}
}

func TestKeyRotationAcrossReopen(t *testing.T) {
	env, path := openTestEnv(t)
	master := []byte("rotation-master-secret")

	s, err := OpenSubspace(env, "assets", master)
	if err != nil {
		t.Fatalf("open subspace: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v")); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if s.Cycle() != 1 {
		t.Fatalf("expected cycle 1 after first open, got %d", s.Cycle())
	}
	env.Close()

	env2, err := OpenEnv(path)
	if err != nil {
		t.Fatalf("reopen env: %v", err)
	}
	defer env2.Close()
	s2, err := OpenSubspace(env2, "assets", master)
	if err != nil {
		t.Fatalf("reopen subspace: %v", err)
	}
	if s2.Cycle() != 2 {
		t.Fatalf("expected cycle 2 after second open, got %d", s2.Cycle())
	}
	for i := 0; i < 10; i++ {
		v, ok := s2.Get([]byte(fmt.Sprintf("k%d", i)))
		if !ok || string(v) != "v" {
			t.Fatalf("record k%d missing or wrong after reopen", i)
		}
	}

	// overwrite 3, erase 2
	for i := 0; i < 3; i++ {
		if err := s2.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v2")); err != nil {
			t.Fatalf("overwrite %d: %v", i, err)
		}
	}
	for i := 8; i < 10; i++ {
		if err := s2.Erase([]byte(fmt.Sprintf("k%d", i))); err != nil {
			t.Fatalf("erase %d: %v", i, err)
		}
	}
	env2.Close()

	env3, err := OpenEnv(path)
	if err != nil {
		t.Fatalf("reopen env 3: %v", err)
	}
	defer env3.Close()
	s3, err := OpenSubspace(env3, "assets", master)
	if err != nil {
		t.Fatalf("reopen subspace 3: %v", err)
	}
	if s3.Cycle() != 3 {
		t.Fatalf("expected cycle 3 after third open, got %d", s3.Cycle())
	}
	liveCount := 0
	for i := 0; i < 10; i++ {
		_, ok := s3.Get([]byte(fmt.Sprintf("k%d", i)))
		if ok {
			liveCount++
		}
	}
	if liveCount != 8 {
		t.Fatalf("expected 8 live records (10 - 2 erased), got %d", liveCount)
	}
	if s3.GapCount() != 2 {
		t.Fatalf("expected gap set of size 2, got %d", s3.GapCount())
	}
}

func TestOpenSubspaceWithWrongMasterKeyFails(t *testing.T) {
	env, path := openTestEnv(t)
	master := []byte("correct-master-secret")
	s, err := OpenSubspace(env, "assets", master)
	if err != nil {
		t.Fatalf("open subspace: %v", err)
	}
	if err := s.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	env.Close()

	env2, err := OpenEnv(path)
	if err != nil {
		t.Fatalf("reopen env: %v", err)
	}
	defer env2.Close()
	if _, err := OpenSubspace(env2, "assets", []byte("wrong-master-secret")); err == nil {
		t.Fatalf("expected fatal error opening subspace under wrong master key")
	}
}

func TestOverlayTxPendingOpsShadowSnapshot(t *testing.T) {
	env, _ := openTestEnv(t)
	s, err := OpenSubspace(env, "assets", []byte("overlay-master-secret"))
	if err != nil {
		t.Fatalf("open subspace: %v", err)
	}
	if err := s.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put a: %v", err)
	}

	tx := s.BeginWrite()
	if err := tx.Put([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("tx put: %v", err)
	}
	got, ok := tx.Get([]byte("a"))
	if !ok || string(got) != "2" {
		t.Fatalf("expected pending op to shadow snapshot, got %q ok=%v", got, ok)
	}
	tx.Rollback()

	got2, ok2 := s.Get([]byte("a"))
	if !ok2 || string(got2) != "1" {
		t.Fatalf("expected rollback to leave snapshot untouched, got %q", got2)
	}
}
