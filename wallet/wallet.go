// Package wallet binds the encrypted wallet store, the asset tree, and the
// backup codec into the end-to-end operations a caller actually performs:
// create a wallet, open and unlock it, read and write assets, and
// back up / restore a wallet's root from its printable Easy16/SecurePrint
// form. It is the data-flow glue spec.md §2 describes between HAT, EWS and
// C1, not a new component of its own.
package wallet

import (
	"encoding/binary"
	"errors"

	"armorycore/backup"
	"armorycore/hat"
	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
	"armorycore/walletstore"
)

const (
	subspaceControl   = "control"
	subspaceAssetTree = "assettree"

	controlKeyHeader = "header"
	controlKeyEncKey = "enckey"
	metaKeyKDF       = "kdfparams"
	masterKeyID      = "wallet-master"

	assetKeyRoot = "root"

	unlockToken uint64 = 1

	kdfTargetSeconds = 0.25
	kdfSaltBytes     = 16
)

// defaultAccountPolicy admits every address type the asset tree's resolver
// currently instantiates, so any Single/root asset registered via PutAsset
// can be looked up regardless of which script form a caller queries for.
var defaultAccountPolicy = hat.AddressAccountPolicy{
	AddressTypes: []hat.AddressType{hat.AddressTypeP2PKH, hat.AddressTypeP2SH, hat.AddressTypeP2WPKH},
}

// Header is the on-disk wallet header record (spec.md §6 prefix 0x01).
type Header struct {
	WalletID string
	Network  wire.Network
}

// Wallet is an opened wallet file: its physical store, its control and
// asset-tree subspaces, the address account indexing its assets for
// script-to-key resolution, and the in-memory container holding the
// unwrapped master encryption key between Unlock and Lock.
type Wallet struct {
	env       *walletstore.Env
	control   *walletstore.Subspace
	assetTree *walletstore.Subspace
	container *hat.DecryptedDataContainer
	account   *hat.AddressAccount
	header    Header
	root      *hat.Bip32RootEntry
	encKey    *hat.EncryptionKey
	kdfParams primitives.KDFParams
	prompt    hat.PassphrasePrompt
}

// encodeKDFParams renders the work-factor and salt of a ROMix calibration as
// `u64 memory_bytes ‖ u64 iterations ‖ u32 salt_len ‖ salt`. The id is not
// stored: it is cheaply recomputed from the other three fields on load via
// primitives.ComputeKDFID.
func encodeKDFParams(p primitives.KDFParams) []byte {
	out := make([]byte, 8+8+4+len(p.Salt))
	binary.BigEndian.PutUint64(out[0:8], uint64(p.MemoryBytes))
	binary.BigEndian.PutUint64(out[8:16], uint64(p.Iterations))
	binary.BigEndian.PutUint32(out[16:20], uint32(len(p.Salt)))
	copy(out[20:], p.Salt)
	return out
}

func decodeKDFParams(buf []byte) (primitives.KDFParams, error) {
	if len(buf) < 20 {
		return primitives.KDFParams{}, utils.NewKind(utils.InvalidArgument, "wallet: kdf params record too short")
	}
	memoryBytes := int(binary.BigEndian.Uint64(buf[0:8]))
	iterations := int(binary.BigEndian.Uint64(buf[8:16]))
	saltLen := int(binary.BigEndian.Uint32(buf[16:20]))
	if len(buf[20:]) != saltLen {
		return primitives.KDFParams{}, utils.NewKind(utils.InvalidArgument, "wallet: kdf params salt length mismatch")
	}
	salt := append([]byte(nil), buf[20:]...)
	p := primitives.KDFParams{MemoryBytes: memoryBytes, Iterations: iterations, Salt: salt}
	p.ID = primitives.ComputeKDFID(p.MemoryBytes, p.Iterations, p.Salt)
	return p, nil
}

// deriveMasterSecret asks prompt for the wallet passphrase and runs it
// through ROMix under params. The EWS master secret is never the wallet's
// seed itself (that would make the file unreadable without already knowing
// the secret it stores) — it is always a passphrase-derived key, per
// spec.md §4.1/§4.3.
func deriveMasterSecret(prompt hat.PassphrasePrompt, params primitives.KDFParams) ([]byte, error) {
	passphrase, err := prompt([]byte(masterKeyID))
	if err != nil {
		return nil, err
	}
	return primitives.ROMix(passphrase, params)
}

// CreateWallet generates a fresh BIP-32 root from 32 bytes of secure
// randomness, wraps it as a Bip32RootEntry, and persists the encrypted
// wallet file at path. The passphrase obtained from prompt is run through a
// freshly calibrated ROMix to derive the master secret that protects the
// file's subspaces; the calibration's KDF parameters are stored alongside
// the file in plaintext so a later Open can reproduce the same derivation.
func CreateWallet(path string, network wire.Network, prompt hat.PassphrasePrompt) (*Wallet, error) {
	seed, err := primitives.CryptoRandBytes(32)
	if err != nil {
		return nil, err
	}
	return createWalletFromSeed(path, seed, network, prompt)
}

func createWalletFromSeed(path string, seed []byte, network wire.Network, prompt hat.PassphrasePrompt) (*Wallet, error) {
	master, err := hat.NewMasterNode(seed)
	if err != nil {
		return nil, err
	}
	root := &hat.Bip32RootEntry{
		Single: hat.SingleEntry{
			ID:     []byte(assetKeyRoot),
			PubKey: hat.PubKeyEntry{Compressed: master.PubKey},
		},
		Chaincode: master.Chaincode,
		Depth:     master.Depth,
		ChildNum:  master.ChildNum,
	}
	if err := root.Validate(); err != nil {
		return nil, err
	}
	walletID, err := root.WalletID()
	if err != nil {
		return nil, err
	}

	salt, err := primitives.CryptoRandBytes(kdfSaltBytes)
	if err != nil {
		return nil, err
	}
	params, err := primitives.CalibrateROMix(kdfTargetSeconds, salt)
	if err != nil {
		return nil, err
	}
	masterSecret, err := deriveMasterSecret(prompt, params)
	if err != nil {
		return nil, err
	}

	// The master encryption key is a physical symmetric key, independent of
	// the EWS master secret above, that wraps every asset's private key.
	// It is itself wrapped under the passphrase-derived key so that a
	// passphrase change only requires re-wrapping this one key (spec.md §3
	// lifecycle note), not re-encrypting every asset.
	physicalKey, err := primitives.CryptoRandBytes(32)
	if err != nil {
		return nil, err
	}
	encKey, err := hat.WrapEncryptionKey(physicalKey, masterSecret, params.ID)
	if err != nil {
		return nil, err
	}
	privIV, err := primitives.CryptoRandBytes(16)
	if err != nil {
		return nil, err
	}
	privCiphertext, err := primitives.AES256CBCEncrypt(physicalKey, privIV, master.PrivKey)
	if err != nil {
		return nil, err
	}
	root.Single.PrivKey = &hat.PrivKeyEntry{
		Ciphertext:      privCiphertext,
		EncryptionKeyID: encKey.ID,
		KDFID:           params.ID,
		IV:              privIV,
	}

	env, err := walletstore.OpenEnv(path)
	if err != nil {
		return nil, err
	}
	if err := env.PutMeta(metaKeyKDF, encodeKDFParams(params)); err != nil {
		env.Close()
		return nil, err
	}

	control, err := walletstore.OpenSubspace(env, subspaceControl, masterSecret)
	if err != nil {
		env.Close()
		return nil, err
	}
	assetTree, err := walletstore.OpenSubspace(env, subspaceAssetTree, masterSecret)
	if err != nil {
		env.Close()
		return nil, err
	}

	w := &Wallet{
		env:       env,
		control:   control,
		assetTree: assetTree,
		account:   hat.NewAddressAccount(defaultAccountPolicy),
		header:    Header{WalletID: walletID, Network: network},
		root:      root,
		encKey:    encKey,
		kdfParams: params,
		prompt:    prompt,
	}
	w.container = hat.NewDecryptedDataContainer(prompt)

	walletHeader := hat.WalletHeader{
		WalletID:               []byte(walletID),
		DBName:                 subspaceControl,
		DefaultEncryptionKeyID: encKey.ID,
		DefaultKDFID:           params.ID,
		MasterEncryptionKeyID:  encKey.ID,
		ControlSalt:            salt,
	}
	if err := control.Put([]byte(controlKeyHeader), hat.SerializeWalletHeader(walletHeader)); err != nil {
		env.Close()
		return nil, err
	}
	if err := control.Put([]byte(controlKeyEncKey), hat.SerializeEncryptionKey(encKey)); err != nil {
		env.Close()
		return nil, err
	}
	if err := w.PutAsset([]byte(assetKeyRoot), root); err != nil {
		env.Close()
		return nil, err
	}
	return w, nil
}

// Open loads an existing wallet file without unlocking it. The passphrase
// obtained from prompt is run through the file's stored KDF parameters to
// reproduce the master secret; an incorrect passphrase surfaces as an
// IntegrityFailure when the first stored packet fails to decrypt under it,
// rather than as a silent wrong result (spec.md §8 scenario 2).
func Open(path string, network wire.Network, prompt hat.PassphrasePrompt) (*Wallet, error) {
	env, err := walletstore.OpenEnv(path)
	if err != nil {
		return nil, err
	}
	kdfBytes, ok := env.GetMeta(metaKeyKDF)
	if !ok {
		env.Close()
		return nil, utils.NewKind(utils.NotFound, "wallet: kdf parameters missing from wallet file")
	}
	params, err := decodeKDFParams(kdfBytes)
	if err != nil {
		env.Close()
		return nil, err
	}
	masterSecret, err := deriveMasterSecret(prompt, params)
	if err != nil {
		env.Close()
		return nil, err
	}

	control, err := walletstore.OpenSubspace(env, subspaceControl, masterSecret)
	if err != nil {
		env.Close()
		return nil, err
	}
	assetTree, err := walletstore.OpenSubspace(env, subspaceAssetTree, masterSecret)
	if err != nil {
		env.Close()
		return nil, err
	}
	entryBytes, ok := assetTree.Get([]byte(assetKeyRoot))
	if !ok {
		env.Close()
		return nil, utils.NewKind(utils.NotFound, "wallet: root entry missing from asset tree")
	}
	entry, err := hat.Deserialize(entryBytes)
	if err != nil {
		env.Close()
		return nil, err
	}
	root, ok := entry.(*hat.Bip32RootEntry)
	if !ok {
		env.Close()
		return nil, utils.NewKind(utils.Unsupported, "wallet: root entry is not a BIP-32 root")
	}
	headerBytes, ok := control.Get([]byte(controlKeyHeader))
	if !ok {
		env.Close()
		return nil, utils.NewKind(utils.NotFound, "wallet: header missing from control subspace")
	}
	walletHeader, err := hat.DeserializeWalletHeader(headerBytes)
	if err != nil {
		env.Close()
		return nil, err
	}
	encKeyBytes, ok := control.Get([]byte(controlKeyEncKey))
	if !ok {
		env.Close()
		return nil, utils.NewKind(utils.NotFound, "wallet: encryption key missing from control subspace")
	}
	encKey, err := hat.DeserializeEncryptionKey(encKeyBytes)
	if err != nil {
		env.Close()
		return nil, err
	}

	w := &Wallet{
		env:       env,
		control:   control,
		assetTree: assetTree,
		account:   hat.NewAddressAccount(defaultAccountPolicy),
		header:    Header{WalletID: string(walletHeader.WalletID), Network: network},
		root:      root,
		encKey:    encKey,
		kdfParams: params,
		prompt:    prompt,
	}
	w.container = hat.NewDecryptedDataContainer(prompt)
	if err := w.rebuildAccountIndex(); err != nil {
		env.Close()
		return nil, err
	}
	return w, nil
}

// rebuildAccountIndex repopulates the address account's hash index from
// every asset currently in the asset tree. The index itself is never
// persisted: it is cheap to recompute and keeping it derived-only avoids a
// second on-disk copy of every asset's pubkey that could drift out of sync.
func (w *Wallet) rebuildAccountIndex() error {
	for _, key := range w.assetTree.Keys() {
		raw, ok := w.assetTree.Get(key)
		if !ok {
			continue
		}
		entry, err := hat.Deserialize(raw)
		if err != nil {
			return err
		}
		if err := w.registerAsset(key, entry); err != nil {
			return err
		}
	}
	return nil
}

// registerAsset indexes entry's pubkey into the wallet's address account
// under assetID, so it becomes reachable from ResolvePrivateKey. Entries
// with no single keyed pubkey (e.g. a bare PubKeyEntry or multisig) are not
// indexed; a duplicate pubkey hash across reopen's rebuildAccountIndex is
// expected, not an error.
func (w *Wallet) registerAsset(assetID []byte, entry hat.AssetEntry) error {
	var pub []byte
	switch e := entry.(type) {
	case *hat.SingleEntry:
		pub = e.PubKey.Compressed
	case *hat.Bip32RootEntry:
		pub = e.Single.PubKey.Compressed
	case *hat.LegacyRootEntry:
		pub = e.Single.PubKey.Compressed
	default:
		return nil
	}
	if len(pub) != 33 {
		return nil
	}
	err := w.account.AddAsset(assetID, pub, hat.AddressTypeP2PKH)
	if err != nil && errors.Is(err, utils.NewKind(utils.Conflict, "")) {
		return nil
	}
	return err
}

// Close releases the wallet's physical store handle.
func (w *Wallet) Close() error {
	return w.env.Close()
}

// Header returns the wallet's header record.
func (w *Wallet) Header() Header { return w.header }

// Root returns the wallet's BIP-32 root entry.
func (w *Wallet) Root() *hat.Bip32RootEntry { return w.root }

// Unlock acquires the wallet's decrypted-data container scope, invoking
// the passphrase prompt at most once per distinct key id (spec.md §4.4).
func (w *Wallet) Unlock() error {
	return w.container.Unlock(unlockToken)
}

// Lock releases the wallet's decrypted-data container scope, zeroising any
// cached key material.
func (w *Wallet) Lock() error {
	return w.container.Lock(unlockToken)
}

// masterKey returns the wallet's unwrapped master encryption key for the
// duration of the caller's unlock scope, deriving it from the passphrase at
// most once per scope via the decrypted-data container.
func (w *Wallet) masterKey() (*primitives.SecureBytes, error) {
	return w.container.Key(unlockToken, w.encKey.ID, func(passphrase []byte) ([]byte, error) {
		derivedKey, err := primitives.ROMix(passphrase, w.kdfParams)
		if err != nil {
			return nil, err
		}
		return w.encKey.Unwrap(w.kdfParams.ID, derivedKey)
	})
}

func (w *Wallet) decryptPrivKey(pk *hat.PrivKeyEntry) (*primitives.SecureBytes, error) {
	master, err := w.masterKey()
	if err != nil {
		return nil, err
	}
	plain, err := primitives.AES256CBCDecrypt(master.Bytes(), pk.IV, pk.Ciphertext)
	if err != nil {
		return nil, err
	}
	return primitives.NewSecureBytes(plain), nil
}

// RootPrivateKey decrypts the wallet's root private key under the unwrapped
// master encryption key. The caller must hold the container's unlock scope
// (Unlock/Lock).
func (w *Wallet) RootPrivateKey() (*primitives.SecureBytes, error) {
	if w.root.Single.PrivKey == nil {
		return nil, utils.NewKind(utils.NotFound, "wallet: root has no encrypted private key")
	}
	return w.decryptPrivKey(w.root.Single.PrivKey)
}

// ResolvePrivateKey is the wallet's script-to-key resolver (spec.md §4.4): it
// maps a pubkey script hash to its owning asset via the address account,
// then decrypts that asset's wrapped private key. This, not AddressAccount's
// own Resolve, is the single surface through which the rest of the system
// obtains private key material; the caller must hold the container's unlock
// scope.
func (w *Wallet) ResolvePrivateKey(scriptHash [20]byte) (*primitives.SecureBytes, hat.AddressType, error) {
	assetID, addrType, ok := w.account.Resolve(scriptHash)
	if !ok {
		return nil, 0, utils.NewKind(utils.NotFound, "wallet: no asset for script hash")
	}
	entry, ok, err := w.GetAsset(assetID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, utils.NewKind(utils.NotFound, "wallet: resolved asset missing from asset tree")
	}
	var pk *hat.PrivKeyEntry
	switch e := entry.(type) {
	case *hat.SingleEntry:
		pk = e.PrivKey
	case *hat.Bip32RootEntry:
		pk = e.Single.PrivKey
	case *hat.LegacyRootEntry:
		pk = e.Single.PrivKey
	}
	if pk == nil {
		return nil, 0, utils.NewKind(utils.NotFound, "wallet: resolved asset has no private key")
	}
	secret, err := w.decryptPrivKey(pk)
	if err != nil {
		return nil, 0, err
	}
	return secret, addrType, nil
}

// PutAsset writes an asset entry into the asset tree under key and indexes
// its pubkey into the address account.
func (w *Wallet) PutAsset(key []byte, entry hat.AssetEntry) error {
	encoded, err := hat.Serialize(entry)
	if err != nil {
		return err
	}
	if err := w.assetTree.Put(key, encoded); err != nil {
		return err
	}
	return w.registerAsset(key, entry)
}

// GetAsset reads and decodes an asset entry from the asset tree.
func (w *Wallet) GetAsset(key []byte) (hat.AssetEntry, bool, error) {
	raw, ok := w.assetTree.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry, err := hat.Deserialize(raw)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// BackupRootSeed renders a raw 32-byte root seed as Easy16 lines under
// TypeBIP32RawRoot. This is the form spec.md's backup flow actually
// exercises: the seed, not a derived node, is what SecurePrint and Easy16
// protect.
func BackupRootSeed(seed []byte) ([]string, error) {
	return backup.Encode(seed, backup.TypeBIP32RawRoot)
}

// RestoreRootSeed reverses BackupRootSeed, repairing single-byte line
// corruption per spec.md §4.5.
func RestoreRootSeed(lines []string) ([]byte, error) {
	data, typ, err := backup.Decode(lines)
	if err != nil {
		return nil, err
	}
	if typ != backup.TypeBIP32RawRoot {
		return nil, utils.NewKind(utils.Unsupported, "wallet: unexpected backup type for a raw root seed")
	}
	return data, nil
}

// CreateWalletWithBackup generates a fresh wallet exactly as CreateWallet
// does, but also returns its root seed's Easy16 backup lines. This is the
// only point in a wallet's lifecycle where the raw seed exists in memory to
// be backed up at all: the asset tree stores only the derived root node (its
// public key and its encrypted private key), never the seed itself, so a
// backup taken after Close has nothing to read it from.
func CreateWalletWithBackup(path string, network wire.Network, prompt hat.PassphrasePrompt) (*Wallet, []string, error) {
	seed, err := primitives.CryptoRandBytes(32)
	if err != nil {
		return nil, nil, err
	}
	lines, err := BackupRootSeed(seed)
	if err != nil {
		return nil, nil, err
	}
	w, err := createWalletFromSeed(path, seed, network, prompt)
	if err != nil {
		return nil, nil, err
	}
	return w, lines, nil
}

// CreateFromBackup reconstructs a wallet from a restored root seed,
// completing the backup/restore data flow: HAT -> Easy16 decode -> HAT
// reconstruct -> EWS create.
func CreateFromBackup(path string, lines []string, network wire.Network, prompt hat.PassphrasePrompt) (*Wallet, error) {
	seed, err := RestoreRootSeed(lines)
	if err != nil {
		return nil, err
	}
	return createWalletFromSeed(path, seed, network, prompt)
}
