// Package transport implements the Authenticated Transport Handshake
// (spec.md §4.6): per-direction ChaCha20-Poly1305 frame encryption, the
// two-stage key-agreement that establishes a session per direction, and
// the optional identity-authentication state machine layered on top.
//
// Grounded on the teacher's golang.org/x/crypto/chacha20poly1305 usage in
// core/security.go's Encrypt/Decrypt, adapted from XChaCha20's random
// 24-byte nonce to standard ChaCha20-Poly1305 with a 12-byte counter
// nonce, since spec.md binds the sequence number into the nonce rather
// than prefixing a random one to the ciphertext.
package transport

import (
	"crypto/cipher"
	"encoding/binary"

	"armorycore/pkg/utils"
	"golang.org/x/crypto/chacha20poly1305"
)

// FrameCipher encrypts or decrypts one direction of an established
// session's frame stream. The nonce is the frame counter zero-extended to
// 12 bytes, so the counter implicitly binds into (and is authenticated by)
// every frame's AEAD tag — an out-of-order or replayed frame fails to
// authenticate.
type FrameCipher struct {
	aead    cipher.AEAD
	counter uint64
}

func newFrameCipher(key []byte) (*FrameCipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, utils.Wrap(err, "transport: chacha20poly1305 init")
	}
	return &FrameCipher{aead: aead}, nil
}

func (f *FrameCipher) nonceBytes() []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(n[4:], f.counter)
	return n
}

// Seal encrypts plaintext as one frame: a 4-byte big-endian length prefix
// covering the ciphertext+tag, followed by the ciphertext and its 16-byte
// tag.
func (f *FrameCipher) Seal(plaintext []byte) []byte {
	nonce := f.nonceBytes()
	sealed := f.aead.Seal(nil, nonce, plaintext, nil)
	f.counter++
	out := make([]byte, 4+len(sealed))
	binary.BigEndian.PutUint32(out[:4], uint32(len(sealed)))
	copy(out[4:], sealed)
	return out
}

// Open consumes one frame from the front of buf. ok is false when buf does
// not yet hold a complete frame (the caller should read more and retry);
// err is non-nil only on authentication failure, which is fatal to the
// session per spec.md §5.
func (f *FrameCipher) Open(buf []byte) (plaintext []byte, consumed int, ok bool, err error) {
	if len(buf) < 4 {
		return nil, 0, false, nil
	}
	frameLen := binary.BigEndian.Uint32(buf[:4])
	total := 4 + int(frameLen)
	if len(buf) < total {
		return nil, 0, false, nil
	}
	nonce := f.nonceBytes()
	pt, openErr := f.aead.Open(nil, nonce, buf[4:total], nil)
	if openErr != nil {
		return nil, 0, false, utils.NewKind(utils.IntegrityFailure, "transport: frame authentication failed")
	}
	f.counter++
	return pt, total, true, nil
}

// replaceKey swaps in a new AEAD key (used by rekey) and resets the frame
// counter, since the new key starts a fresh nonce space.
func (f *FrameCipher) replaceKey(key []byte) error {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return utils.Wrap(err, "transport: chacha20poly1305 rekey")
	}
	f.aead = aead
	f.counter = 0
	return nil
}
