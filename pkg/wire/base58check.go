package wire

import (
	"bytes"

	"github.com/mr-tron/base58"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
)

// Base58CheckEncode appends a 4-byte double-SHA256 checksum to payload and
// base58-encodes the result. Grounded on the same version-byte + payload +
// checksum layout used by the example base58CheckEncode helper, adapted to
// use primitives.Hash256 for the double hash instead of two literal
// sha256.Sum256 calls.
func Base58CheckEncode(payload []byte) string {
	sum := primitives.Hash256(payload)
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, payload...)
	buf = append(buf, sum[:4]...)
	return base58.Encode(buf)
}

// Base58CheckDecode reverses Base58CheckEncode, verifying the checksum.
// Empty input is rejected rather than silently decoding to an empty payload.
func Base58CheckDecode(s string) ([]byte, error) {
	if s == "" {
		return nil, utils.NewKind(utils.InvalidArgument, "base58check: empty input")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, utils.Wrap(err, "base58check: decode")
	}
	if len(raw) < 4 {
		return nil, utils.NewKind(utils.IntegrityFailure, "base58check: too short for checksum")
	}
	payload := raw[:len(raw)-4]
	checksum := raw[len(raw)-4:]
	sum := primitives.Hash256(payload)
	if !bytes.Equal(sum[:4], checksum) {
		return nil, utils.NewKind(utils.IntegrityFailure, "base58check: checksum mismatch")
	}
	return payload, nil
}
