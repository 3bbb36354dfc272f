package primitives

import (
	"bytes"
	"testing"
)

func TestAES256CBCRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range iv {
		iv[i] = byte(i * 3)
	}
	plaintext := bytes.Repeat([]byte{0xAB}, 64)

	ct, err := AES256CBCEncrypt(key, iv, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := AES256CBCDecrypt(key, iv, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestAES256CBCRejectsUnalignedInput(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 16)
	if _, err := AES256CBCEncrypt(key, iv, []byte("not block aligned")); err == nil {
		t.Fatalf("expected error for non-block-aligned plaintext")
	}
}
