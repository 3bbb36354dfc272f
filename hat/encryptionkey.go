package hat

import (
	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
)

// encryptionKeyIDDomainTag is the fixed HMAC message spec.md §3 uses to turn
// a KDF-derived key into a content-derived encryption-key id.
const encryptionKeyIDDomainTag = "encryptionkeys"

// encryptionKeyIDLen is the truncation length of the HMAC256 output used as
// an encryption key's id.
const encryptionKeyIDLen = 8

// EncryptionKeyID computes the content-derived id for a physical key wrapped
// under derivedKey: HMAC256(derivedKey, "encryptionkeys"), truncated.
func EncryptionKeyID(derivedKey []byte) []byte {
	full := primitives.HMAC256(derivedKey, []byte(encryptionKeyIDDomainTag))
	return append([]byte(nil), full[:encryptionKeyIDLen]...)
}

// CipherData is one KDF-wrapped encoding of an EncryptionKey's physical key:
// the physical key AES-256-CBC-encrypted under a passphrase-derived key.
type CipherData struct {
	IV         []byte
	Ciphertext []byte
}

// EncryptionKey is spec.md §3's `{id, map<kdf_id, cipher_data>}` record: one
// physical symmetric key, independently wrapped under one or more KDFs so the
// same key can be unwrapped by any passphrase that wraps it.
type EncryptionKey struct {
	ID      []byte
	Ciphers map[string]CipherData
}

// WrapEncryptionKey creates a new EncryptionKey wrapping physicalKey under
// derivedKey (the output of running a passphrase through the KDF named by
// kdfID). The id is fixed at creation from this first wrapping's derived key
// and does not change on subsequent re-wraps.
func WrapEncryptionKey(physicalKey, derivedKey, kdfID []byte) (*EncryptionKey, error) {
	iv, err := primitives.CryptoRandBytes(16)
	if err != nil {
		return nil, err
	}
	ct, err := primitives.AES256CBCEncrypt(derivedKey, iv, physicalKey)
	if err != nil {
		return nil, err
	}
	return &EncryptionKey{
		ID: EncryptionKeyID(derivedKey),
		Ciphers: map[string]CipherData{
			string(kdfID): {IV: iv, Ciphertext: ct},
		},
	}, nil
}

// Unwrap decrypts the physical key wrapped under kdfID using derivedKey.
func (ek *EncryptionKey) Unwrap(kdfID, derivedKey []byte) ([]byte, error) {
	cd, ok := ek.Ciphers[string(kdfID)]
	if !ok {
		return nil, utils.NewKind(utils.NotFound, "hat: no cipher data for kdf id")
	}
	return primitives.AES256CBCDecrypt(derivedKey, cd.IV, cd.Ciphertext)
}

// Rewrap re-encrypts physicalKey under a new KDF/derived-key pair, per
// spec.md §3's lifecycle note that re-wrapping under a new passphrase
// produces a new cipher_data entry and erases the old one.
func (ek *EncryptionKey) Rewrap(physicalKey, newKDFID, newDerivedKey []byte) error {
	iv, err := primitives.CryptoRandBytes(16)
	if err != nil {
		return err
	}
	ct, err := primitives.AES256CBCEncrypt(newDerivedKey, iv, physicalKey)
	if err != nil {
		return err
	}
	ek.Ciphers = map[string]CipherData{string(newKDFID): {IV: iv, Ciphertext: ct}}
	return nil
}

// SerializeEncryptionKey renders ek as id ‖ count(kdf_id ‖ iv ‖ ciphertext).
func SerializeEncryptionKey(ek *EncryptionKey) []byte {
	out := writeBytes(nil, ek.ID)
	out = wire.PutVarInt(out, uint64(len(ek.Ciphers)))
	for kdfID, cd := range ek.Ciphers {
		out = writeBytes(out, []byte(kdfID))
		out = writeBytes(out, cd.IV)
		out = writeBytes(out, cd.Ciphertext)
	}
	return out
}

// DeserializeEncryptionKey reverses SerializeEncryptionKey.
func DeserializeEncryptionKey(b []byte) (*EncryptionKey, error) {
	id, n, err := readBytes(b)
	if err != nil {
		return nil, err
	}
	offset := n
	count, n2, err := wire.ReadVarInt(b[offset:])
	if err != nil {
		return nil, err
	}
	offset += n2
	ciphers := make(map[string]CipherData, count)
	for i := uint64(0); i < count; i++ {
		kdfID, n3, err := readBytes(b[offset:])
		if err != nil {
			return nil, err
		}
		offset += n3
		iv, n4, err := readBytes(b[offset:])
		if err != nil {
			return nil, err
		}
		offset += n4
		ct, n5, err := readBytes(b[offset:])
		if err != nil {
			return nil, err
		}
		offset += n5
		ciphers[string(kdfID)] = CipherData{IV: iv, Ciphertext: ct}
	}
	return &EncryptionKey{ID: id, Ciphers: ciphers}, nil
}

// SerializeWalletHeader renders h as its on-disk control-subspace record.
func SerializeWalletHeader(h WalletHeader) []byte {
	out := writeBytes(nil, h.WalletID)
	out = writeBytes(out, []byte(h.DBName))
	out = writeBytes(out, h.DefaultEncryptionKeyID)
	out = writeBytes(out, h.DefaultKDFID)
	out = writeBytes(out, h.MasterEncryptionKeyID)
	out = writeBytes(out, h.ControlSalt)
	return out
}

// DeserializeWalletHeader reverses SerializeWalletHeader.
func DeserializeWalletHeader(b []byte) (WalletHeader, error) {
	walletID, n, err := readBytes(b)
	if err != nil {
		return WalletHeader{}, err
	}
	offset := n
	dbName, n2, err := readBytes(b[offset:])
	if err != nil {
		return WalletHeader{}, err
	}
	offset += n2
	defaultEncKeyID, n3, err := readBytes(b[offset:])
	if err != nil {
		return WalletHeader{}, err
	}
	offset += n3
	defaultKDFID, n4, err := readBytes(b[offset:])
	if err != nil {
		return WalletHeader{}, err
	}
	offset += n4
	masterEncKeyID, n5, err := readBytes(b[offset:])
	if err != nil {
		return WalletHeader{}, err
	}
	offset += n5
	controlSalt, _, err := readBytes(b[offset:])
	if err != nil {
		return WalletHeader{}, err
	}
	return WalletHeader{
		WalletID:               walletID,
		DBName:                 string(dbName),
		DefaultEncryptionKeyID: defaultEncKeyID,
		DefaultKDFID:           defaultKDFID,
		MasterEncryptionKeyID:  masterEncKeyID,
		ControlSalt:            controlSalt,
	}, nil
}
