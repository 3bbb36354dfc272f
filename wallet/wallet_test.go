package wallet

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"armorycore/hat"
	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
)

func fixedPassphrase(pass string) hat.PassphrasePrompt {
	return func(keyID []byte) ([]byte, error) {
		return []byte(pass), nil
	}
}

// TestCreateOpenReadRoundTrip matches spec.md §8 scenario 1: create a
// wallet, close it, reopen it under the same passphrase, and read back both
// its root and an asset written before close.
func TestCreateOpenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")

	w, err := CreateWallet(path, wire.Mainnet, fixedPassphrase("correct horse battery staple"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantRoot := w.Root()
	wantPub := append([]byte(nil), wantRoot.Single.PubKey.Compressed...)

	leaf := &hat.SingleEntry{ID: []byte("leaf-0"), PubKey: hat.PubKeyEntry{Compressed: wantPub}}
	if err := w.PutAsset([]byte("leaf-0"), leaf); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w2, err := Open(path, wire.Mainnet, fixedPassphrase("correct horse battery staple"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w2.Close()

	gotRoot := w2.Root()
	if !bytes.Equal(gotRoot.Single.PubKey.Compressed, wantPub) {
		t.Fatalf("root pubkey mismatch after reopen")
	}
	if w2.Header().WalletID != w.Header().WalletID {
		t.Fatalf("wallet id mismatch after reopen: got %q want %q", w2.Header().WalletID, w.Header().WalletID)
	}

	entry, ok, err := w2.GetAsset([]byte("leaf-0"))
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if !ok {
		t.Fatalf("expected leaf-0 to be present")
	}
	single, ok := entry.(*hat.SingleEntry)
	if !ok {
		t.Fatalf("expected *hat.SingleEntry, got %T", entry)
	}
	if !bytes.Equal(single.PubKey.Compressed, wantPub) {
		t.Fatalf("leaf pubkey mismatch")
	}
}

// TestOpenWrongPassphraseFails matches spec.md §8 scenario 2: reopening a
// wallet file under the wrong passphrase must fail, not silently produce
// garbage data.
func TestOpenWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")

	w, err := CreateWallet(path, wire.Mainnet, fixedPassphrase("correct horse battery staple"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = Open(path, wire.Mainnet, fixedPassphrase("wrong passphrase entirely"))
	if err == nil {
		t.Fatalf("expected an error opening with the wrong passphrase")
	}
	if !errors.Is(err, utils.NewKind(utils.IntegrityFailure, "")) {
		t.Fatalf("expected an IntegrityFailure kind, got %v", err)
	}
}

// TestRootPrivateKeyDecryptsUnderPassphrase exercises the encryption-key
// wiring end to end: the root's private key is stored encrypted under the
// wallet's master encryption key, which is itself wrapped under the
// passphrase; Unlock must derive both before the plaintext key becomes
// available, and it must match the private key the root was created from.
func TestRootPrivateKeyDecryptsUnderPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	seed := bytes.Repeat([]byte{0x22}, 32)

	master, err := hat.NewMasterNode(seed)
	if err != nil {
		t.Fatalf("master node: %v", err)
	}

	w, err := createWalletFromSeed(path, seed, wire.Mainnet, fixedPassphrase("hunter2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	if err := w.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	defer w.Lock()

	got, err := w.RootPrivateKey()
	if err != nil {
		t.Fatalf("root private key: %v", err)
	}
	if !bytes.Equal(got.Bytes(), master.PrivKey) {
		t.Fatalf("decrypted root private key mismatch")
	}
}

// TestResolvePrivateKeyViaAddressAccount exercises the script-to-key
// resolver: a leaf asset written through PutAsset must be reachable by its
// pubkey's hash160 via ResolvePrivateKey, decrypting to the same private key
// it was stored with.
func TestResolvePrivateKeyViaAddressAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")

	w, err := CreateWallet(path, wire.Mainnet, fixedPassphrase("hunter2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	if err := w.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	defer w.Lock()

	leafPriv, err := primitives.CryptoRandBytes(32)
	if err != nil {
		t.Fatalf("leaf priv: %v", err)
	}
	leafPub, err := primitives.PubkeyFromPriv(leafPriv)
	if err != nil {
		t.Fatalf("leaf pub: %v", err)
	}
	master, err := w.masterKey()
	if err != nil {
		t.Fatalf("master key: %v", err)
	}
	iv, err := primitives.CryptoRandBytes(16)
	if err != nil {
		t.Fatalf("iv: %v", err)
	}
	ciphertext, err := primitives.AES256CBCEncrypt(master.Bytes(), iv, leafPriv)
	if err != nil {
		t.Fatalf("encrypt leaf priv: %v", err)
	}
	leaf := &hat.SingleEntry{
		ID:     []byte("leaf-1"),
		PubKey: hat.PubKeyEntry{Compressed: leafPub},
		PrivKey: &hat.PrivKeyEntry{
			Ciphertext:      ciphertext,
			EncryptionKeyID: w.encKey.ID,
			KDFID:           w.kdfParams.ID,
			IV:              iv,
		},
	}
	if err := w.PutAsset([]byte("leaf-1"), leaf); err != nil {
		t.Fatalf("put asset: %v", err)
	}

	scriptHash := primitives.Hash160(leafPub)
	resolved, addrType, err := w.ResolvePrivateKey(scriptHash)
	if err != nil {
		t.Fatalf("resolve private key: %v", err)
	}
	if addrType != hat.AddressTypeP2PKH {
		t.Fatalf("expected P2PKH address type, got %v", addrType)
	}
	if !bytes.Equal(resolved.Bytes(), leafPriv) {
		t.Fatalf("resolved private key mismatch")
	}
}

// TestUnlockLockReentrant exercises the container scope's depth counter
// directly through the wallet's Unlock/Lock methods.
func TestUnlockLockReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	w, err := CreateWallet(path, wire.Mainnet, fixedPassphrase("passphrase"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	if err := w.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := w.Unlock(); err != nil {
		t.Fatalf("reentrant unlock: %v", err)
	}
	if err := w.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := w.Lock(); err != nil {
		t.Fatalf("final lock: %v", err)
	}
	if err := w.Lock(); err == nil {
		t.Fatalf("expected an error locking past depth zero")
	}
}

// TestBackupRestoreRoundTrip exercises the Easy16/SecurePrint backup data
// flow: a 32-byte seed survives BackupRootSeed -> RestoreRootSeed, and a
// wallet rebuilt from the restored seed derives the same root as one built
// directly from that seed.
func TestBackupRestoreRoundTrip(t *testing.T) {
	seed := bytes.Repeat([]byte{0x11}, 32)

	lines, err := BackupRootSeed(seed)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	restored, err := RestoreRootSeed(lines)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !bytes.Equal(seed, restored) {
		t.Fatalf("restored seed mismatch")
	}

	direct, err := createWalletFromSeed(filepath.Join(t.TempDir(), "direct.db"), seed, wire.Mainnet, fixedPassphrase("p"))
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	defer direct.Close()

	fromBackup, err := CreateFromBackup(filepath.Join(t.TempDir(), "restored.db"), lines, wire.Mainnet, fixedPassphrase("p"))
	if err != nil {
		t.Fatalf("create from backup: %v", err)
	}
	defer fromBackup.Close()

	if !bytes.Equal(direct.Root().Single.PubKey.Compressed, fromBackup.Root().Single.PubKey.Compressed) {
		t.Fatalf("root pubkey mismatch between direct seed and restored-backup wallets")
	}
}

// TestCreateWalletWithBackupThenRestore exercises the realistic create flow:
// the seed only ever exists in memory at creation time, so its backup lines
// must be captured then, not read back out of the file afterward.
func TestCreateWalletWithBackupThenRestore(t *testing.T) {
	created, lines, err := CreateWalletWithBackup(filepath.Join(t.TempDir(), "wallet.db"), wire.Mainnet, fixedPassphrase("p"))
	if err != nil {
		t.Fatalf("create with backup: %v", err)
	}
	defer created.Close()
	if len(lines) == 0 {
		t.Fatalf("expected at least one backup line")
	}

	restored, err := CreateFromBackup(filepath.Join(t.TempDir(), "restored.db"), lines, wire.Mainnet, fixedPassphrase("p"))
	if err != nil {
		t.Fatalf("create from backup: %v", err)
	}
	defer restored.Close()

	if !bytes.Equal(created.Root().Single.PubKey.Compressed, restored.Root().Single.PubKey.Compressed) {
		t.Fatalf("root pubkey mismatch between created and backup-restored wallets")
	}
}
