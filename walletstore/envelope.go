package walletstore

import (
	"crypto/hmac"
	"crypto/sha512"
	"io"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
	"golang.org/x/crypto/hkdf"
)

const aesBlockSize = 16

// cycleKeys is one session's derived key-pair: a decryption scalar whose
// public counterpart is the subspace's IES recipient key, and a MAC key.
// Both are rederived deterministically from the subspace's master secret and
// cycle index, never stored on disk.
type cycleKeys struct {
	decryptPriv [32]byte
	macKey      [32]byte
}

// deriveCycleKeys implements the rotating session-key schedule of spec.md
// §4.3: an HKDF-SHA512 (RFC 5869) expansion of masterSecret, with the cycle
// index folded into the info parameter as its domain-tag-prefixed varint, is
// read out as 64 bytes and split into a 32-byte decryption scalar and a
// 32-byte MAC key. HKDF's extract step needs no salt here: masterSecret is
// already uniformly random subspace key material, not a low-entropy
// passphrase.
func deriveCycleKeys(masterSecret []byte, k uint64) cycleKeys {
	info := wire.PutVarInt([]byte("armorycore-subspace-cycle"), k)
	reader := hkdf.New(sha512.New, masterSecret, nil, info)
	h := make([]byte, 64)
	if _, err := io.ReadFull(reader, h); err != nil {
		panic("walletstore: hkdf expand failed: " + err.Error())
	}
	var out cycleKeys
	copy(out.decryptPriv[:], h[0:32])
	copy(out.macKey[:], h[32:64])
	return out
}

func (c cycleKeys) subspacePub() ([]byte, error) {
	return primitives.PubkeyFromPriv(c.decryptPriv[:])
}

func pkcs7Pad(b []byte) []byte {
	padLen := aesBlockSize - len(b)%aesBlockSize
	if padLen == 0 {
		padLen = aesBlockSize
	}
	out := make([]byte, len(b)+padLen)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aesBlockSize != 0 {
		return nil, utils.NewKind(utils.IntegrityFailure, "envelope: bad padded length")
	}
	padLen := int(b[len(b)-1])
	if padLen <= 0 || padLen > aesBlockSize || padLen > len(b) {
		return nil, utils.NewKind(utils.IntegrityFailure, "envelope: bad padding")
	}
	for _, p := range b[len(b)-padLen:] {
		if int(p) != padLen {
			return nil, utils.NewKind(utils.IntegrityFailure, "envelope: bad padding bytes")
		}
	}
	return b[:len(b)-padLen], nil
}

// buildPayload encodes the normal data_key/value record shape:
// varint(len(data_key)) ‖ data_key ‖ varint(len(value)) ‖ value.
func buildPayload(dataKey, value []byte) []byte {
	buf := wire.PutVarInt(nil, uint64(len(dataKey)))
	buf = append(buf, dataKey...)
	buf = wire.PutVarInt(buf, uint64(len(value)))
	buf = append(buf, value...)
	return buf
}

const (
	cycleLiteral  = "cycle"
	erasedLiteral = "erased"
)

func buildErasedPayload(storageKey uint32) []byte {
	buf := append([]byte(erasedLiteral), wire.PutVarInt(nil, 4)...)
	buf = append(buf, beBytes(storageKey)...)
	return buf
}

// encodePacket produces the IES+HMAC packet for payload under the given
// cycle keys and storage key, per spec.md §4.3.
func encodePacket(payload []byte, storageKey uint32, keys cycleKeys) ([]byte, error) {
	mac := primitives.HMAC256(keys.macKey[:], append(payload, beBytes(storageKey)...))
	cleartext := append(append([]byte(nil), mac...), payload...)
	padded := pkcs7Pad(cleartext)

	ephemeralPriv, err := primitives.CryptoRandBytes(32)
	if err != nil {
		return nil, err
	}
	ephemeralPub, err := primitives.PubkeyFromPriv(ephemeralPriv)
	if err != nil {
		return nil, err
	}
	subPub, err := keys.subspacePub()
	if err != nil {
		return nil, err
	}
	shared, err := primitives.ECDHMul(ephemeralPriv, subPub)
	if err != nil {
		return nil, err
	}
	encKey := primitives.Hash256(shared)
	iv, err := primitives.CryptoRandBytes(16)
	if err != nil {
		return nil, err
	}
	ciphertext, err := primitives.AES256CBCEncrypt(encKey[:], iv, padded)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, len(ephemeralPub)+len(iv)+len(ciphertext))
	packet = append(packet, ephemeralPub...)
	packet = append(packet, iv...)
	packet = append(packet, ciphertext...)
	return packet, nil
}

// decodePacket reverses encodePacket, verifying the MAC against storageKey.
// A mismatch is reported as IntegrityFailure per spec.md §7.
func decodePacket(packet []byte, storageKey uint32, keys cycleKeys) ([]byte, error) {
	if len(packet) < 33+16+aesBlockSize {
		return nil, utils.NewKind(utils.IntegrityFailure, "envelope: packet too short")
	}
	ephemeralPub := packet[0:33]
	iv := packet[33:49]
	ciphertext := packet[49:]

	shared, err := primitives.ECDHMul(keys.decryptPriv[:], ephemeralPub)
	if err != nil {
		return nil, utils.NewKind(utils.IntegrityFailure, "envelope: bad ephemeral pubkey")
	}
	encKey := primitives.Hash256(shared)
	padded, err := primitives.AES256CBCDecrypt(encKey[:], iv, ciphertext)
	if err != nil {
		return nil, utils.Wrap(err, "envelope: decrypt")
	}
	cleartext, err := pkcs7Unpad(padded)
	if err != nil {
		return nil, err
	}
	if len(cleartext) < 32 {
		return nil, utils.NewKind(utils.IntegrityFailure, "envelope: cleartext too short for mac")
	}
	mac := cleartext[:32]
	payload := cleartext[32:]

	expected := primitives.HMAC256(keys.macKey[:], append(append([]byte(nil), payload...), beBytes(storageKey)...))
	if !hmac.Equal(mac, expected) {
		return nil, utils.NewKind(utils.IntegrityFailure, "envelope: mac mismatch")
	}
	return payload, nil
}
