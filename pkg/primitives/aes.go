package primitives

import (
	"crypto/aes"
	"crypto/cipher"

	"armorycore/pkg/utils"
)

// AES256CBCEncrypt encrypts plaintext with AES-256 in CBC mode and no
// padding. plaintext must already be a multiple of the 16-byte block size:
// the wallet store only ever encrypts fixed-length payloads (32-byte keys,
// IES packets padded by the caller), so ciphertext length reveals nothing
// beyond what the caller chose to pad to.
func AES256CBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "aes key must be 32 bytes")
	}
	if len(iv) != aes.BlockSize {
		return nil, utils.NewKind(utils.InvalidArgument, "aes iv must be 16 bytes")
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, utils.NewKind(utils.InvalidArgument, "plaintext must be a multiple of the block size; no padding is applied")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, utils.Wrap(err, "aes new cipher")
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// AES256CBCDecrypt reverses AES256CBCEncrypt. ciphertext must be a multiple
// of the block size.
func AES256CBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "aes key must be 32 bytes")
	}
	if len(iv) != aes.BlockSize {
		return nil, utils.NewKind(utils.InvalidArgument, "aes iv must be 16 bytes")
	}
	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, utils.NewKind(utils.InvalidArgument, "ciphertext must be a non-zero multiple of the block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, utils.Wrap(err, "aes new cipher")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}
